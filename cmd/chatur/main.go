// Chatur is a bilingual (English and Hindi) desktop voice assistant.
//
// It listens for a hotkey, a wake word or typed console lines, turns
// each utterance into an intent, runs the matching handler and speaks
// the reply. serve also exposes a local HTTP API and an optional MQTT
// bridge. Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]); without one the
// built-in defaults are used.
//
// Usage:
//
//	chatur serve              Run the assistant
//	chatur init [dir]         Write an example config.yaml into dir
//	chatur ask <text>         Process one command and print the reply
//	chatur classify <text>    Print the intent for text
//	chatur history [n]        Show the last n exchanges
//	chatur purge [days]       Delete exchanges older than days
//	chatur version            Print version and build information
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.design/x/hotkey/mainthread"
	"golang.org/x/sync/errgroup"

	"github.com/nugget/chatur/internal/app"
	"github.com/nugget/chatur/internal/buildinfo"
	"github.com/nugget/chatur/internal/classifier"
	"github.com/nugget/chatur/internal/config"
	"github.com/nugget/chatur/internal/conversation"
	"github.com/nugget/chatur/internal/supervisor"
)

// main hands the main goroutine to mainthread so the hotkey source can
// receive key events on platforms that deliver them there, then
// delegates to [run].
func main() {
	mainthread.Init(func() {
		ctx := context.Background()
		if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			os.Exit(1)
		}
	})
}

// run is the real entry point. Arguments are parsed by hand so that run
// holds no package-level state and tests can call it concurrently.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdin, stdout, stderr, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: chatur ask <text>")
		}
		return runAsk(ctx, stdout, stderr, configPath, outputFmt, strings.Join(cmdArgs, " "))
	case "classify":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: chatur classify <text>")
		}
		return runClassify(stdout, stderr, configPath, strings.Join(cmdArgs, " "))
	case "history":
		n, err := optionalInt(cmdArgs, 10)
		if err != nil {
			return fmt.Errorf("usage: chatur history [n]: %w", err)
		}
		return runHistory(stdout, configPath, outputFmt, n)
	case "purge":
		days, err := optionalInt(cmdArgs, 0)
		if err != nil {
			return fmt.Errorf("usage: chatur purge [days]: %w", err)
		}
		return runPurge(stdout, configPath, days)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func optionalInt(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return n, nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.BuildInfo()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Chatur - Desktop Voice Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: chatur [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve            Run the assistant, API and scheduler")
	fmt.Fprintln(w, "  init [dir]       Write an example config.yaml (default: .)")
	fmt.Fprintln(w, "  ask <text>       Process one command and print the reply")
	fmt.Fprintln(w, "  classify <text>  Print the intent for text")
	fmt.Fprintln(w, "  history [n]      Show the last n exchanges (default 10)")
	fmt.Fprintln(w, "  purge [days]     Delete exchanges older than days (default: history.retention_days)")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/chatur/config.yaml, /etc/chatur/config.yaml")
	return nil
}

// runServe runs the assistant until a signal arrives, the console user
// quits or a shutdown command reaches the supervisor.
func runServe(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Chatur", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// The console source owns stdout for prompts and replies, so logs
	// move to stderr.
	logOut := stdout
	if cfg.Activation.Source == config.SourceConsole {
		logOut = stderr
	}
	level, _ := config.ParseLogLevel(cfg.LogLevel) // validated by Load
	logger = newLogger(logOut, level, cfg.LogFormat)

	logger.Info("config loaded",
		"path", cfgPath,
		"activation", cfg.Activation.Source,
		"port", cfg.Listen.Port,
		"data_dir", cfg.DataDir,
		"language", cfg.Language.Default,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg, logger, app.Options{Stdin: stdin, Stdout: stdout})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.PurgeHistory(); err != nil {
		logger.Warn("history purge failed", "error", err)
	}

	src, err := a.Source()
	if err != nil {
		return err
	}
	service := a.Supervise(src, cancel)
	a.WatchDependencies(ctx)

	g, ctx := errgroup.WithContext(ctx)

	// --- Supervised activation service ---
	// A shutdown command ends the control loop and with it the process.
	g.Go(func() error {
		err := service.Run(ctx)
		cancel()
		return err
	})
	if _, err := service.Send(ctx, supervisor.CmdStart); err != nil {
		return fmt.Errorf("start activation service: %w", err)
	}

	// --- Reminder scheduler ---
	g.Go(func() error {
		if err := a.Scheduler.Run(ctx); err != nil {
			return fmt.Errorf("reminder scheduler: %w", err)
		}
		return nil
	})

	// --- API server ---
	if cfg.Listen.Port != 0 {
		server := a.APIServer(service)
		g.Go(func() error {
			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		})
	} else {
		logger.Info("api server disabled (listen.port is 0)")
	}

	// --- MQTT bridge ---
	pub, err := a.MQTT(ctx, service)
	if err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	if pub != nil {
		g.Go(func() error {
			if err := pub.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer offlineCancel()
			if err := pub.Stop(offlineCtx); err != nil {
				logger.Warn("mqtt shutdown failed", "error", err)
			}
			return nil
		})
		logger.Info("mqtt bridge enabled", "broker", cfg.MQTT.Broker, "device_name", cfg.MQTT.DeviceName)
	} else {
		logger.Info("mqtt bridge disabled (not configured)")
	}

	err = g.Wait()
	logger.Info("Chatur stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runAsk processes one command without speech and prints the reply.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt, text string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, slog.LevelWarn, cfg.LogFormat)

	a, err := app.New(cfg, logger, app.Options{Silent: true})
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Processor.Run(ctx, text)
	if outputFmt == "json" {
		out := map[string]any{
			"response": res.Response,
			"intent":   res.Intent,
		}
		if res.Err != nil {
			out["error"] = res.Err.Error()
		}
		return json.NewEncoder(stdout).Encode(out)
	}
	fmt.Fprintln(stdout, res.Response)
	return nil
}

// runClassify prints the intent for text as JSON. It opens no stores.
func runClassify(stdout, stderr io.Writer, configPath, text string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	c := classifier.New(classifier.Config{
		RecognizedApps:     cfg.Apps.Recognized,
		DefaultApp:         cfg.Apps.DefaultBrowser,
		TLDs:               cfg.Vocabulary.SupportedTLDs,
		Extensions:         cfg.Vocabulary.SupportedExtensions,
		Language:           cfg.Language.Default,
		DetectLanguage:     cfg.Language.Detect,
		HindiCharThreshold: cfg.Language.HindiCharThreshold,
	}, newLogger(stderr, slog.LevelWarn, cfg.LogFormat))

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Classify(text))
}

func openHistory(configPath string) (*config.Config, *conversation.Store, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}
	store, err := conversation.NewStore(cfg.DataPath("conversations.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open conversation store: %w", err)
	}
	return cfg, store, nil
}

// runHistory prints the last n exchanges, oldest first.
func runHistory(stdout io.Writer, configPath, outputFmt string, n int) error {
	_, store, err := openHistory(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	exchanges, err := store.Recent(n, "")
	if err != nil {
		return err
	}
	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(exchanges)
	}
	if len(exchanges) == 0 {
		fmt.Fprintln(stdout, "No conversation history.")
		return nil
	}
	for _, ex := range exchanges {
		kind := ex.IntentKind
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(stdout, "[%s] (%s)\n  You:    %s\n  Chatur: %s\n",
			ex.Timestamp.Local().Format("2006-01-02 15:04:05"), kind, ex.UserInput, ex.AssistantResponse)
	}
	return nil
}

// runPurge deletes old exchanges. Zero days means the configured
// retention.
func runPurge(stdout io.Writer, configPath string, days int) error {
	cfg, store, err := openHistory(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	retention := cfg.History.Retention()
	if days > 0 {
		retention = time.Duration(days) * 24 * time.Hour
	}
	n, err := store.Purge(retention)
	if err != nil {
		return fmt.Errorf("purge history: %w", err)
	}
	fmt.Fprintf(stdout, "Removed %d exchange(s) older than %d day(s).\n", n, int(retention.Hours()/24))
	return nil
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Format must be "text" or "json"; any other value
// defaults to text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the configuration file. When no file is
// named and none is found, the built-in defaults are returned with an
// empty path.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}
