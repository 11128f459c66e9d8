package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nugget/chatur/internal/desktop"
	"github.com/nugget/chatur/internal/intent"
)

// DefaultMediaCommands drive MPRIS players through playerctl and the
// default PulseAudio/PipeWire sink through pactl. The set_volume command
// has {level} replaced with the requested percentage.
var DefaultMediaCommands = map[string]string{
	"play":        "playerctl play-pause",
	"pause":       "playerctl play-pause",
	"next":        "playerctl next",
	"previous":    "playerctl previous",
	"volume_up":   "pactl set-sink-volume @DEFAULT_SINK@ +10%",
	"volume_down": "pactl set-sink-volume @DEFAULT_SINK@ -10%",
	"mute":        "pactl set-sink-mute @DEFAULT_SINK@ toggle",
	"set_volume":  "pactl set-sink-volume @DEFAULT_SINK@ {level}%",
}

// Media controls playback and volume by running configured commands.
type Media struct {
	handles
	commands map[string]string
	sys      System
	logger   *slog.Logger
}

// NewMedia creates the media handler. Actions missing from commands use
// [DefaultMediaCommands]; an empty command disables that action.
func NewMedia(commands map[string]string, sys System, logger *slog.Logger) *Media {
	if logger == nil {
		logger = slog.Default()
	}
	merged := make(map[string]string, len(DefaultMediaCommands))
	for k, v := range DefaultMediaCommands {
		merged[k] = v
	}
	for k, v := range commands {
		merged[k] = v
	}
	return &Media{handles: handles(intent.MediaControl), commands: merged, sys: sys, logger: logger}
}

// Handle implements [Handler].
func (h *Media) Handle(ctx context.Context, in intent.Intent) (string, error) {
	lang := in.ResponseLanguage()
	action := in.Param(intent.ParamAction)
	if action == "" {
		action = "play"
	}

	command, ok := h.commands[action]
	if !ok || command == "" {
		if action == "set_volume" {
			return "", fail(ErrUnavailable, "exact volume control", nil)
		}
		return "", fail(ErrUnsupported, "control media playback", nil)
	}

	var level int
	if action == "set_volume" {
		raw := strings.TrimSpace(in.Param(intent.ParamVolumeLevel))
		if raw == "" {
			return say(lang, "What volume level?", "कितनी आवाज़?"), nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", fail(ErrInvalidInput, "set the volume", err)
		}
		level = min(max(n, 0), 100)
		command = strings.ReplaceAll(command, "{level}", strconv.Itoa(level))
	}

	name, args := desktop.Split(command)
	if _, err := h.sys.Run(ctx, name, args...); err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fail(nil, "control media playback", err)
	}
	h.logger.Info("media action", "action", action, "command", command)

	switch action {
	case "play", "pause":
		return say(lang, "Okay", "ठीक है"), nil
	case "next":
		return say(lang, "Done: Playing next track", "अगला गाना चला दिया"), nil
	case "previous":
		return say(lang, "Done: Playing previous track", "पिछला गाना चला दिया"), nil
	case "volume_up":
		return say(lang, "Done: Increasing volume", "आवाज़ बढ़ा दी"), nil
	case "volume_down":
		return say(lang, "Done: Decreasing volume", "आवाज़ कम कर दी"), nil
	case "mute":
		return say(lang, "Muted", "म्यूट किया"), nil
	case "set_volume":
		return say(lang,
			fmt.Sprintf("Volume set to %d", level),
			fmt.Sprintf("Volume %d पर सेट किया", level)), nil
	}
	return say(lang, "Okay", "ठीक है"), nil
}
