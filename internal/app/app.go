// Package app builds the assistant's components from a loaded
// configuration and owns their lifetimes. The command line entry point
// creates one App and hands it the goroutines it runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nugget/chatur/internal/activation"
	"github.com/nugget/chatur/internal/activation/hotkey"
	"github.com/nugget/chatur/internal/api"
	"github.com/nugget/chatur/internal/apps"
	"github.com/nugget/chatur/internal/assistant"
	"github.com/nugget/chatur/internal/calendar"
	"github.com/nugget/chatur/internal/classifier"
	"github.com/nugget/chatur/internal/config"
	"github.com/nugget/chatur/internal/connwatch"
	"github.com/nugget/chatur/internal/conversation"
	"github.com/nugget/chatur/internal/database"
	"github.com/nugget/chatur/internal/desktop"
	"github.com/nugget/chatur/internal/email"
	"github.com/nugget/chatur/internal/events"
	"github.com/nugget/chatur/internal/handlers"
	"github.com/nugget/chatur/internal/httpkit"
	"github.com/nugget/chatur/internal/intent"
	"github.com/nugget/chatur/internal/llm"
	"github.com/nugget/chatur/internal/metrics"
	"github.com/nugget/chatur/internal/mqtt"
	"github.com/nugget/chatur/internal/notes"
	"github.com/nugget/chatur/internal/notify"
	"github.com/nugget/chatur/internal/processor"
	"github.com/nugget/chatur/internal/qa"
	"github.com/nugget/chatur/internal/reminder"
	"github.com/nugget/chatur/internal/settings"
	"github.com/nugget/chatur/internal/speech"
	"github.com/nugget/chatur/internal/supervisor"
	"github.com/nugget/chatur/internal/tasks"
	"github.com/nugget/chatur/internal/weather"
)

// ServiceName identifies the supervised activation service.
const ServiceName = "activation"

// Options adjusts how New wires the process.
type Options struct {
	// Stdin and Stdout back the console activation source.
	Stdin  io.Reader
	Stdout io.Writer
	// Silent disables speech output regardless of configuration. The
	// one-shot subcommands use it.
	Silent bool
	// Registry receives the metrics collectors. Nil creates a private
	// registry with the Go and process collectors.
	Registry *prometheus.Registry
}

// App is the application context. Exported fields are ready to use
// after New returns; Close releases them.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Bus      *events.Bus
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Reminders *reminder.Store
	Notes     *notes.Store
	Apps      *apps.Store
	Tasks     *tasks.Store
	History   *conversation.Store
	Settings  *settings.Store

	Classifier *classifier.Classifier
	Handlers   *handlers.Registry
	Processor  *processor.Processor
	Machine    *assistant.Machine
	Cycle      *assistant.Cycle
	Scheduler  *reminder.Scheduler
	Deps       *connwatch.Manager

	// SessionID tags the exchanges of this process.
	SessionID string

	speaker  speech.Speaker
	listener assistant.Listener
	ollama   *llm.OllamaClient
	timers   *handlers.Timers
	desktop  *notify.Desktop
	mail     *email.Client
	stdin    io.Reader
	stdout   io.Writer
	closers  []io.Closer
}

// New opens every store under the data directory and wires the
// processing pipeline. It starts no goroutines.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Bus:       events.New(),
		SessionID: database.NewID(),
		stdin:     opts.Stdin,
		stdout:    opts.Stdout,
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}
	if err := a.openStores(); err != nil {
		return nil, err
	}

	a.Registry = opts.Registry
	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	a.Metrics = metrics.MustNew(a.Registry, a.Bus.SubscriberCount)

	if cfg.Speech.TTS.Enabled && !opts.Silent {
		a.speaker = speech.NewCommandSpeaker(speech.CommandConfig{
			Command: cfg.Speech.TTS.Command,
			Voices:  cfg.Speech.TTS.Voices,
			Rate:    cfg.Speech.TTS.Rate,
			Volume:  cfg.Speech.TTS.Volume,
			Logger:  logger,
		})
	}
	if cfg.Speech.STT.Endpoint != "" {
		a.listener = speech.NewSafeListener(speech.NewFFmpegListener(speech.FFmpegConfig{
			Command:     cfg.Speech.STT.FFmpeg,
			InputFormat: cfg.Speech.STT.InputFormat,
			InputDevice: cfg.Speech.STT.InputDevice,
			Duration:    cfg.Speech.STT.Duration(),
			Endpoint:    cfg.Speech.STT.Endpoint,
			Client:      httpkit.NewClient(),
			Logger:      logger,
		}), logger)
	}

	a.Classifier = classifier.New(classifier.Config{
		RecognizedApps:     cfg.Apps.Recognized,
		DefaultApp:         cfg.Apps.DefaultBrowser,
		TLDs:               cfg.Vocabulary.SupportedTLDs,
		Extensions:         cfg.Vocabulary.SupportedExtensions,
		Language:           cfg.Language.Default,
		DetectLanguage:     cfg.Language.Detect,
		HindiCharThreshold: cfg.Language.HindiCharThreshold,
	}, logger)

	if err := a.registerHandlers(); err != nil {
		return nil, err
	}

	a.Processor = processor.New(processor.Config{
		Classifier: a.Classifier,
		Registry:   a.Handlers,
		History:    a.History,
		Speaker:    a.speaker,
		Bus:        a.Bus,
		Metrics:    a.Metrics,
		Logger:     logger,
		SessionID:  a.SessionID,
		Language:   cfg.Language.Default,
	})
	a.Machine = assistant.NewMachine(a.Bus, logger)
	a.Cycle = assistant.NewCycle(assistant.CycleConfig{
		Machine:   a.Machine,
		Listener:  a.listener,
		Processor: a.Processor,
		Metrics:   a.Metrics,
		Logger:    logger,
	})

	a.Scheduler = reminder.NewScheduler(reminder.SchedulerConfig{
		Store:    a.Reminders,
		Speaker:  a.speaker,
		Notifier: a.notifier(events.SourceScheduler),
		Bus:      a.Bus,
		Logger:   logger,
		Interval: cfg.Scheduler.CheckInterval(),
		Window:   cfg.Scheduler.Window(),
		OnFire:   a.Metrics.ReminderFired,
	})
	a.Deps = connwatch.NewManager(logger)

	return a, nil
}

func (a *App) openStores() error {
	var err error
	if a.Reminders, err = reminder.NewStore(a.Config.DataPath("reminders.db")); err != nil {
		return fmt.Errorf("open reminder store: %w", err)
	}
	a.closers = append(a.closers, a.Reminders)
	if a.Notes, err = notes.NewStore(a.Config.DataPath("notes.db")); err != nil {
		return fmt.Errorf("open note store: %w", err)
	}
	a.closers = append(a.closers, a.Notes)
	if a.Apps, err = apps.NewStore(a.Config.DataPath("apps.db")); err != nil {
		return fmt.Errorf("open app registry: %w", err)
	}
	a.closers = append(a.closers, a.Apps)
	if a.Tasks, err = tasks.NewStore(a.Config.DataPath("tasks.db")); err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	a.closers = append(a.closers, a.Tasks)
	if a.History, err = conversation.NewStore(a.Config.DataPath("conversations.db")); err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	a.closers = append(a.closers, a.History)
	if a.Settings, err = settings.NewStore(a.Config.DataPath("settings.db")); err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	a.closers = append(a.closers, a.Settings)
	a.Logger.Debug("stores opened", "data_dir", a.Config.DataDir)
	return nil
}

// notifier fans out to the desktop and to the event bus.
func (a *App) notifier(source string) notify.Notifier {
	if a.desktop == nil {
		a.desktop = notify.NewDesktop(a.Config.Desktop.Notifier, "Chatur", a.Logger)
	}
	return notify.Multi{a.desktop, notify.NewBus(a.Bus, source)}
}

func (a *App) registerHandlers() error {
	cfg := a.Config
	logger := a.Logger

	sys := desktop.New(desktop.Config{
		Opener: cfg.Desktop.Opener,
		Killer: cfg.Desktop.Killer,
		Logger: logger,
	})

	// Interface values stay nil when a backend is not configured so the
	// handlers report it as unavailable.
	var client llm.Client
	if cfg.LLM.OllamaURL != "" {
		a.ollama = llm.NewOllamaClient(cfg.LLM.OllamaURL, logger)
		client = a.ollama
	}
	answerer := qa.New(qa.Config{
		Client:           client,
		Model:            cfg.LLM.Model,
		MaxTokens:        cfg.LLM.MaxTokens,
		History:          a.History,
		ContextExchanges: cfg.History.ContextExchanges,
		Attempts:         cfg.LLM.Retries,
		Logger:           logger,
	})

	var mailbox handlers.Mailbox
	if cfg.Email.Configured() {
		a.mail = email.NewClient(cfg.Email, logger)
		a.closers = append(a.closers, a.mail)
		mailbox = a.mail
	}

	var cal handlers.CalendarClient
	if cfg.Calendar.Configured() {
		c, err := calendar.NewClient(cfg.Calendar, logger)
		if err != nil {
			return fmt.Errorf("calendar client: %w", err)
		}
		cal = c
	}

	a.timers = handlers.NewTimers(a.notifier(events.SourceTimer), a.speaker, logger)

	r := handlers.NewRegistry()
	r.Register(intent.Reminder, handlers.NewReminders(a.Reminders, logger))
	r.Register(intent.Timer, a.timers)
	r.Register(intent.Note, handlers.NewNotes(a.Notes))
	r.Register(intent.Question, handlers.NewQuestions(answerer))
	r.Register(intent.AppLaunch, handlers.NewApps(a.Apps, sys, cfg.Apps.DefaultBrowser, logger))
	r.Register(intent.MediaControl, handlers.NewMedia(cfg.Media.Commands, sys, logger))
	r.Register(intent.FileSearch, handlers.NewFiles(handlers.FileSearchConfig{
		Locations:  cfg.FileSearch.Locations,
		MaxResults: cfg.FileSearch.MaxResults,
		MaxDepth:   cfg.FileSearch.MaxDepth,
	}, sys, logger))
	r.Register(intent.Weather, handlers.NewWeather(weather.NewClient(cfg.Weather, logger)))
	r.Register(intent.SystemInfo, handlers.NewSystemInfo())
	r.Register(intent.Math, handlers.NewMath())
	r.Register(intent.Calendar, handlers.NewCalendar(cal))
	r.Register(intent.Email, handlers.NewEmail(mailbox))
	r.Register(intent.Task, handlers.NewTasks(a.Tasks))
	a.Handlers = r

	logger.Debug("handlers registered",
		"kinds", len(r.Kinds()),
		"llm", client != nil,
		"email", mailbox != nil,
		"calendar", cal != nil,
	)
	return nil
}

// Speaker returns the configured speech output, nil when speech is off.
func (a *App) Speaker() speech.Speaker { return a.speaker }

// Source builds the configured activation source. Every source drives
// the same cycle.
func (a *App) Source() (activation.Source, error) {
	cfg := a.Config.Activation
	switch cfg.Source {
	case config.SourceConsole:
		return activation.NewConsole(activation.ConsoleConfig{
			In:      a.stdin,
			Out:     a.stdout,
			Submit:  a.Cycle.Submit,
			Speaker: a.speaker,
			Logger:  a.Logger,
		}), nil
	case config.SourceWakeWord:
		return activation.NewWakeWord(activation.WakeWordConfig{
			Endpoint:  cfg.WakeWord.Endpoint,
			Words:     cfg.WakeWord.Words,
			Threshold: cfg.WakeWord.Threshold,
			Cooldown:  cfg.WakeWord.Cooldown(),
			Logger:    a.Logger,
		}, a.Cycle.Activate), nil
	case config.SourceHotkey:
		return hotkey.New(cfg.Hotkey, a.Cycle.Activate, a.Logger)
	default:
		return nil, fmt.Errorf("unknown activation source %q", cfg.Source)
	}
}

// Supervise wraps the activation source in a managed service. onQuit is
// called when the user ends a console session, which is not a crash.
func (a *App) Supervise(src activation.Source, onQuit func()) *supervisor.Managed {
	svc := supervisor.NewService(supervisor.ServiceConfig{
		Name: ServiceName,
		Run: func(ctx context.Context) error {
			err := src.Run(ctx)
			if errors.Is(err, activation.ErrQuit) {
				a.Logger.Info("console session ended")
				if onQuit != nil {
					onQuit()
				}
				return nil
			}
			return err
		},
		Bus:    a.Bus,
		Logger: a.Logger,
	})
	return supervisor.NewManaged(supervisor.ManagedConfig{
		Service:      svc,
		AutoRestart:  a.Config.Supervisor.AutoRestart,
		RestartDelay: a.Config.Supervisor.RestartDelay,
		StopTimeout:  a.Config.Supervisor.StopTimeout,
		Metrics:      a.Metrics,
		Logger:       a.Logger,
	})
}

// WatchDependencies starts health watchers for the external services
// the configuration names.
func (a *App) WatchDependencies(ctx context.Context) {
	if a.ollama != nil {
		a.Deps.Watch(ctx, connwatch.WatcherConfig{
			Name:    "ollama",
			Probe:   a.ollama.Ping,
			Backoff: connwatch.DefaultBackoffConfig(),
			Bus:     a.Bus,
			Logger:  a.Logger,
		})
	}
	if ep := a.Config.Speech.STT.Endpoint; ep != "" {
		a.Deps.Watch(ctx, connwatch.WatcherConfig{
			Name:    "stt",
			Probe:   connwatch.HTTPProbe(httpkit.NewClient(), ep),
			Backoff: connwatch.DefaultBackoffConfig(),
			Bus:     a.Bus,
			Logger:  a.Logger,
		})
	}
}

// APIServer builds the HTTP server. service may be nil when nothing is
// supervised.
func (a *App) APIServer(service api.ServiceController) *api.Server {
	return api.NewServer(api.Config{
		Address:      a.Config.Listen.Address,
		Port:         a.Config.Listen.Port,
		Commands:     a.Processor,
		History:      a.History,
		State:        a.Machine,
		Settings:     a.Settings,
		Dependencies: a.Deps,
		Bus:          a.Bus,
		Service:      service,
		Gatherer:     a.Registry,
		Logger:       a.Logger,
	})
}

// MQTT builds the broker bridge and watches its connection, or returns
// nil when no broker is configured.
func (a *App) MQTT(ctx context.Context, commands mqtt.CommandSink) (*mqtt.Publisher, error) {
	if !a.Config.MQTT.Configured() {
		return nil, nil
	}
	id, err := mqtt.LoadOrCreateInstanceID(a.Config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load mqtt instance id: %w", err)
	}
	a.Logger.Info("mqtt instance ID loaded", "instance_id", id)
	pub := mqtt.New(a.Config.MQTT, id, mqtt.Options{
		Bus:      a.Bus,
		Commands: commands,
		State:    func() string { return string(a.Machine.State()) },
		Logger:   a.Logger,
	})

	a.Deps.Watch(ctx, connwatch.WatcherConfig{
		Name: "mqtt",
		Probe: func(pCtx context.Context) error {
			awaitCtx, cancel := context.WithTimeout(pCtx, 2*time.Second)
			defer cancel()
			return pub.AwaitConnection(awaitCtx)
		},
		Backoff: connwatch.DefaultBackoffConfig(),
		Bus:     a.Bus,
		Logger:  a.Logger,
	})
	return pub, nil
}

// PurgeHistory drops exchanges older than the configured retention.
func (a *App) PurgeHistory() (int64, error) {
	n, err := a.History.Purge(a.Config.History.Retention())
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	if n > 0 {
		a.Logger.Info("conversation history purged", "removed", n, "retention_days", a.Config.History.RetentionDays)
	}
	return n, nil
}

// Close stops outstanding timers, waits for pending notifications and
// closes every store. It is safe to call on a partially built App.
func (a *App) Close() error {
	if a.timers != nil {
		a.timers.Stop()
	}
	if a.Deps != nil {
		a.Deps.Stop()
	}
	if a.desktop != nil {
		a.desktop.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
