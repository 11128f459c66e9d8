package activation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Detection is one wake-word event from the detector service.
type Detection struct {
	Type       string  `json:"type"`
	WakeWord   string  `json:"wake_word"`
	Confidence float64 `json:"confidence"`
	Timestamp  float64 `json:"timestamp"`
}

// wakeWordConfigMessage is sent once after connecting so the detector
// only reports the words we listen for.
type wakeWordConfigMessage struct {
	Type      string   `json:"type"`
	Enabled   bool     `json:"enabled"`
	WakeWords []string `json:"wake_words"`
	Threshold float64  `json:"threshold"`
	Timestamp float64  `json:"timestamp"`
}

// WakeWordConfig configures a WakeWord source.
type WakeWordConfig struct {
	// Endpoint is the detector's websocket URL.
	Endpoint string
	// Words are the accepted wake words. Empty accepts any.
	Words []string
	// Threshold is the minimum confidence that triggers a cycle.
	Threshold float64
	// Cooldown suppresses repeat detections of one utterance (default 2s).
	Cooldown time.Duration
	Header   http.Header
	Logger   *slog.Logger
}

// WakeWord listens to a microphone-side detector over a websocket and
// triggers a cycle on every accepted detection.
type WakeWord struct {
	cfg     WakeWordConfig
	trigger Trigger
	dialer  websocket.Dialer
	logger  *slog.Logger

	last time.Time
}

// NewWakeWord builds the source. Connection happens in Run.
func NewWakeWord(cfg WakeWordConfig, trigger Trigger) *WakeWord {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Second
	}
	words := make([]string, 0, len(cfg.Words))
	for _, w := range cfg.Words {
		if w = normalizeWakeWord(w); w != "" {
			words = append(words, w)
		}
	}
	cfg.Words = words
	return &WakeWord{
		cfg:     cfg,
		trigger: trigger,
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Run connects, sends the detector configuration and processes events
// until ctx is cancelled. A dropped connection is returned as an error
// so the supervisor can restart the source.
func (w *WakeWord) Run(ctx context.Context) error {
	conn, _, err := w.dialer.DialContext(ctx, w.cfg.Endpoint, w.cfg.Header)
	if err != nil {
		return fmt.Errorf("dial wake word detector: %w", err)
	}
	defer conn.Close()
	w.logger.Info("connected to wake word detector",
		"endpoint", w.cfg.Endpoint,
		"words", w.cfg.Words,
		"threshold", w.cfg.Threshold,
	)

	if err := conn.WriteJSON(wakeWordConfigMessage{
		Type:      "wake_word_config",
		Enabled:   true,
		WakeWords: w.cfg.Words,
		Threshold: w.cfg.Threshold,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}); err != nil {
		return fmt.Errorf("send wake word config: %w", err)
	}

	// Unblock the read loop on shutdown.
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	running := Inflight{Logger: w.logger}
	defer running.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Info("wake word stream closed")
				return nil
			}
			return fmt.Errorf("read wake word stream: %w", err)
		}
		if d, ok := w.accept(data, time.Now()); ok {
			w.logger.Info("wake word detected", "word", d.WakeWord, "confidence", d.Confidence)
			running.Fire(ctx, w.trigger, "wake_word")
		}
	}
}

// accept decodes one message and applies the word, threshold and
// cooldown filters. Messages other than detections are ignored.
func (w *WakeWord) accept(data []byte, now time.Time) (Detection, bool) {
	var d Detection
	if err := json.Unmarshal(data, &d); err != nil {
		w.logger.Debug("ignoring undecodable wake word message", "error", err)
		return d, false
	}
	if d.Type != "wake_word" {
		return d, false
	}
	if d.Confidence < w.cfg.Threshold {
		w.logger.Debug("wake word below threshold", "word", d.WakeWord, "confidence", d.Confidence)
		return d, false
	}
	if len(w.cfg.Words) > 0 && !slices.Contains(w.cfg.Words, normalizeWakeWord(d.WakeWord)) {
		return d, false
	}
	if !w.last.IsZero() && now.Sub(w.last) < w.cfg.Cooldown {
		return d, false
	}
	w.last = now
	return d, true
}

func normalizeWakeWord(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
