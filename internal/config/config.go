// Package config handles Chatur configuration loading.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nugget/chatur/internal/calendar"
	"github.com/nugget/chatur/internal/email"
	"github.com/nugget/chatur/internal/weather"
)

// DefaultSearchPaths returns the config file search order: ./config.yaml,
// ~/.config/chatur/config.yaml, /etc/chatur/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "chatur", "config.yaml"))
	}

	paths = append(paths, "/etc/chatur/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Activation sources.
const (
	SourceHotkey   = "hotkey"
	SourceWakeWord = "wake_word"
	SourceConsole  = "console"
)

// Config holds all Chatur configuration.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	DataDir    string           `yaml:"data_dir"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"`
	Language   LanguageConfig   `yaml:"language"`
	Activation ActivationConfig `yaml:"activation"`
	Speech     SpeechConfig     `yaml:"speech"`
	LLM        LLMConfig        `yaml:"llm"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Apps       AppsConfig       `yaml:"apps"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	FileSearch FileSearchConfig `yaml:"file_search"`
	Media      MediaConfig      `yaml:"media"`
	Desktop    DesktopConfig    `yaml:"desktop"`
	Email      email.Config     `yaml:"email"`
	Calendar   calendar.Config  `yaml:"calendar"`
	Weather    weather.Config   `yaml:"weather"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	History    HistoryConfig    `yaml:"history"`
}

// ListenConfig defines the API server settings. Port 0 disables the API.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "127.0.0.1")
	Port    int    `yaml:"port"`
}

// LanguageConfig controls reply language selection.
type LanguageConfig struct {
	// Default is "en" or "hi".
	Default string `yaml:"default"`
	// Detect enables per-utterance language detection.
	Detect bool `yaml:"detect"`
	// HindiCharThreshold is the Devanagari fraction that marks an
	// utterance as Hindi.
	HindiCharThreshold float64 `yaml:"hindi_char_threshold"`
}

// ActivationConfig selects what starts an interaction cycle.
type ActivationConfig struct {
	// Source is hotkey, wake_word or console.
	Source   string         `yaml:"source"`
	Hotkey   string         `yaml:"hotkey"`
	WakeWord WakeWordConfig `yaml:"wake_word"`
}

// WakeWordConfig points at the wake-word detector stream.
type WakeWordConfig struct {
	Endpoint    string   `yaml:"endpoint"`
	Words       []string `yaml:"words"`
	Threshold   float64  `yaml:"threshold"`
	CooldownSec int      `yaml:"cooldown_seconds"`
}

// Cooldown returns CooldownSec as a duration.
func (c WakeWordConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSec) * time.Second
}

// SpeechConfig covers both directions of audio.
type SpeechConfig struct {
	STT STTConfig `yaml:"stt"`
	TTS TTSConfig `yaml:"tts"`
}

// STTConfig configures microphone capture and transcription.
type STTConfig struct {
	// Endpoint is a whisper-compatible transcription URL. Empty disables
	// the microphone; the console source still works.
	Endpoint      string `yaml:"endpoint"`
	RecordSeconds int    `yaml:"record_seconds"`
	FFmpeg        string `yaml:"ffmpeg"`
	InputFormat   string `yaml:"input_format"`
	InputDevice   string `yaml:"input_device"`
}

// Duration returns RecordSeconds as a duration.
func (c STTConfig) Duration() time.Duration {
	return time.Duration(c.RecordSeconds) * time.Second
}

// TTSConfig configures speech output.
type TTSConfig struct {
	// Enabled false keeps replies text-only.
	Enabled bool              `yaml:"enabled"`
	Command string            `yaml:"command"`
	Rate    int               `yaml:"rate"`
	Volume  int               `yaml:"volume"`
	Voices  map[string]string `yaml:"voices"`
}

// LLMConfig configures the question-answering backend.
type LLMConfig struct {
	// OllamaURL empty disables question answering.
	OllamaURL string `yaml:"ollama_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	Retries   int    `yaml:"retries"`
}

// SchedulerConfig configures the reminder scheduler.
type SchedulerConfig struct {
	CheckIntervalSec  int `yaml:"check_interval_seconds"`
	ReminderWindowSec int `yaml:"reminder_window_seconds"`
}

// CheckInterval returns CheckIntervalSec as a duration.
func (c SchedulerConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSec) * time.Second
}

// Window returns ReminderWindowSec as a duration.
func (c SchedulerConfig) Window() time.Duration {
	return time.Duration(c.ReminderWindowSec) * time.Second
}

// SupervisorConfig configures the activation service supervisor.
type SupervisorConfig struct {
	AutoRestart  bool          `yaml:"auto_restart"`
	RestartDelay time.Duration `yaml:"restart_delay"`
	StopTimeout  time.Duration `yaml:"stop_timeout"`
}

// AppsConfig names the applications the classifier recognizes.
type AppsConfig struct {
	DefaultBrowser string   `yaml:"default_browser"`
	Recognized     []string `yaml:"recognized"`
}

// VocabularyConfig feeds the URL and file patterns.
type VocabularyConfig struct {
	SupportedTLDs       []string `yaml:"supported_tlds"`
	SupportedExtensions []string `yaml:"supported_extensions"`
}

// FileSearchConfig bounds the file search handler.
type FileSearchConfig struct {
	Locations  []string `yaml:"locations"`
	MaxResults int      `yaml:"max_results"`
	MaxDepth   int      `yaml:"max_depth"`
}

// MediaConfig overrides the per-action media commands.
type MediaConfig struct {
	Commands map[string]string `yaml:"commands"`
}

// DesktopConfig selects the helper programs used to open, close and
// notify.
type DesktopConfig struct {
	Opener   string `yaml:"opener"`
	Killer   string `yaml:"killer"`
	Notifier string `yaml:"notifier"`
}

// MQTTConfig configures the broker connection. An empty Broker disables
// MQTT.
type MQTTConfig struct {
	Broker          string `yaml:"broker"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	DeviceName      string `yaml:"device_name"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	// PublishIntervalSec is how often sensor states are refreshed.
	PublishIntervalSec int `yaml:"publish_interval"`
	// CommandRateLimit caps inbound command messages per minute.
	CommandRateLimit int `yaml:"command_rate_limit"`
}

// Configured reports whether a broker is set.
func (c MQTTConfig) Configured() bool {
	return c.Broker != ""
}

// HistoryConfig controls conversation retention.
type HistoryConfig struct {
	RetentionDays    int `yaml:"retention_days"`
	ContextExchanges int `yaml:"context_exchanges"`
}

// Retention returns RetentionDays as a duration.
func (c HistoryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Load reads configuration from a YAML file over [Default], expanding
// ${ENV} references, then applies defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration that runs without a file.
func Default() *Config {
	cfg := &Config{
		Listen:   ListenConfig{Address: "127.0.0.1", Port: 8765},
		Language: LanguageConfig{Default: "en", Detect: true},
		Activation: ActivationConfig{
			Source: SourceHotkey,
			Hotkey: "ctrl+space",
		},
		Speech: SpeechConfig{
			TTS: TTSConfig{Enabled: true},
		},
		Supervisor: SupervisorConfig{AutoRestart: true},
		Apps: AppsConfig{
			DefaultBrowser: "brave",
			Recognized: []string{
				"brave", "chrome", "firefox", "edge", "calculator", "notepad",
				"gmail", "explorer", "whatsapp", "spotify", "vscode", "terminal",
			},
		},
		Vocabulary: VocabularyConfig{
			SupportedTLDs:       []string{"com", "org", "net", "in", "io", "co", "edu", "gov"},
			SupportedExtensions: []string{"pdf", "docx", "doc", "xlsx", "pptx", "txt", "jpg", "png", "mp3", "mp4"},
		},
		FileSearch: FileSearchConfig{
			Locations: []string{"~/Desktop", "~/Documents", "~/Downloads"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "~/.local/share/chatur"
	}
	c.DataDir = ExpandHome(c.DataDir)
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Language.Default == "" {
		c.Language.Default = "en"
	}
	if c.Language.HindiCharThreshold <= 0 {
		c.Language.HindiCharThreshold = 0.3
	}
	if c.Activation.Source == "" {
		c.Activation.Source = SourceHotkey
	}
	if c.Activation.Hotkey == "" {
		c.Activation.Hotkey = "ctrl+space"
	}
	if len(c.Activation.WakeWord.Words) == 0 {
		c.Activation.WakeWord.Words = []string{"computer"}
	}
	if c.Activation.WakeWord.Threshold <= 0 {
		c.Activation.WakeWord.Threshold = 0.5
	}
	if c.Activation.WakeWord.CooldownSec <= 0 {
		c.Activation.WakeWord.CooldownSec = 2
	}
	if c.Speech.STT.RecordSeconds <= 0 {
		c.Speech.STT.RecordSeconds = 5
	}
	if c.Speech.TTS.Command == "" {
		c.Speech.TTS.Command = "espeak-ng"
	}
	if c.Speech.TTS.Voices == nil {
		c.Speech.TTS.Voices = map[string]string{"en": "en-us", "hi": "hi"}
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3.2"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.Retries <= 0 {
		c.LLM.Retries = 3
	}
	if c.Scheduler.CheckIntervalSec <= 0 {
		c.Scheduler.CheckIntervalSec = 30
	}
	if c.Scheduler.ReminderWindowSec <= 0 {
		c.Scheduler.ReminderWindowSec = 30
	}
	if c.Supervisor.RestartDelay <= 0 {
		c.Supervisor.RestartDelay = 2 * time.Second
	}
	if c.Supervisor.StopTimeout <= 0 {
		c.Supervisor.StopTimeout = 5 * time.Second
	}
	if c.FileSearch.MaxResults <= 0 {
		c.FileSearch.MaxResults = 5
	}
	if c.FileSearch.MaxDepth <= 0 {
		c.FileSearch.MaxDepth = 4
	}
	for i, loc := range c.FileSearch.Locations {
		c.FileSearch.Locations[i] = ExpandHome(loc)
	}
	if c.MQTT.DeviceName == "" {
		c.MQTT.DeviceName = "chatur"
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if c.MQTT.PublishIntervalSec <= 0 {
		c.MQTT.PublishIntervalSec = 60
	}
	if c.MQTT.CommandRateLimit <= 0 {
		c.MQTT.CommandRateLimit = 30
	}
	if c.History.RetentionDays <= 0 {
		c.History.RetentionDays = 30
	}
	if c.History.ContextExchanges <= 0 {
		c.History.ContextExchanges = 5
	}
	c.Email.ApplyDefaults()
	c.Weather.ApplyDefaults()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (0-65535)", c.Listen.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format %q must be text or json", c.LogFormat)
	}
	if c.Language.Default != "en" && c.Language.Default != "hi" {
		return fmt.Errorf("language.default %q must be en or hi", c.Language.Default)
	}
	if c.Language.HindiCharThreshold > 1 {
		return fmt.Errorf("language.hindi_char_threshold %v must be at most 1", c.Language.HindiCharThreshold)
	}
	if !slices.Contains([]string{SourceHotkey, SourceWakeWord, SourceConsole}, c.Activation.Source) {
		return fmt.Errorf("activation.source %q must be hotkey, wake_word or console", c.Activation.Source)
	}
	if c.Activation.Source == SourceWakeWord && c.Activation.WakeWord.Endpoint == "" {
		return fmt.Errorf("activation.wake_word.endpoint is required for the wake_word source")
	}
	if c.Activation.WakeWord.Threshold > 1 {
		return fmt.Errorf("activation.wake_word.threshold %v must be at most 1", c.Activation.WakeWord.Threshold)
	}
	if c.MQTT.Configured() {
		u, err := url.Parse(c.MQTT.Broker)
		if err != nil || u.Host == "" {
			return fmt.Errorf("mqtt.broker %q is not a URL", c.MQTT.Broker)
		}
	}
	if err := c.Email.Validate(); err != nil {
		return err
	}
	return nil
}

// DataPath returns the path of a database file under DataDir.
func (c *Config) DataPath(name string) string {
	return filepath.Join(c.DataDir, name)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
