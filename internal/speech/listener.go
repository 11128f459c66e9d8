package speech

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nugget/chatur/internal/httpkit"
)

// FFmpegConfig configures an [FFmpegListener].
type FFmpegConfig struct {
	// Command is the ffmpeg binary; empty means "ffmpeg" on PATH.
	Command string
	// InputFormat and InputDevice select the capture source, e.g.
	// "pulse"/"default" or "alsa"/"hw:0".
	InputFormat string
	InputDevice string
	// Duration is how long to record per utterance.
	Duration time.Duration
	// Endpoint is a whisper-compatible transcription URL that accepts a
	// multipart "file" upload and answers {"text": "..."}.
	Endpoint string
	// Language is passed to the endpoint as a hint; empty lets it detect.
	Language string
	Client   *http.Client
	Logger   *slog.Logger
}

// FFmpegListener records a fixed-length clip with ffmpeg and sends it to
// a transcription service.
type FFmpegListener struct {
	cfg    FFmpegConfig
	client *http.Client
	logger *slog.Logger
}

// NewFFmpegListener applies defaults to cfg.
func NewFFmpegListener(cfg FFmpegConfig) *FFmpegListener {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = httpkit.NewClient(httpkit.WithTimeout(60 * time.Second))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegListener{cfg: cfg, client: client, logger: logger}
}

// Listen implements [Listener].
func (l *FFmpegListener) Listen(ctx context.Context) (string, error) {
	audio, err := l.record(ctx)
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", nil
	}
	return l.transcribe(ctx, audio)
}

func (l *FFmpegListener) record(ctx context.Context) ([]byte, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-f", l.cfg.InputFormat,
		"-i", l.cfg.InputDevice,
		"-t", strconv.FormatFloat(l.cfg.Duration.Seconds(), 'f', -1, 64),
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		"-",
	}
	cmd := exec.CommandContext(ctx, l.cfg.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("record audio: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	l.logger.Debug("audio captured", "bytes", stdout.Len(), "elapsed", time.Since(start))
	return stdout.Bytes(), nil
}

func (l *FFmpegListener) transcribe(ctx context.Context, audio []byte) (string, error) {
	if l.cfg.Endpoint == "" {
		return "", errors.New("no transcription endpoint configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if l.cfg.Language != "" {
		_ = mw.WriteField("language", l.cfg.Language)
	}
	_ = mw.WriteField("response_format", "json")
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe: status %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	l.logger.Info("transcribed", "text", text)
	return text, nil
}

// LineListener reads utterances as lines of text, one per Listen call.
// The console activation source uses it in place of a microphone.
type LineListener struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
}

// NewLineListener reads from r.
func NewLineListener(r io.Reader) *LineListener {
	return &LineListener{scanner: bufio.NewScanner(r)}
}

// Listen returns the next line, or io.EOF once the reader is exhausted.
func (l *LineListener) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(l.scanner.Text()), nil
}
