package mqtt

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nugget/chatur/internal/supervisor"
)

// CommandSink accepts supervisor commands. *supervisor.Managed
// satisfies it.
type CommandSink interface {
	Send(ctx context.Context, cmd supervisor.Command) (<-chan supervisor.Status, error)
}

// handleMessage dispatches one inbound message. Only the command topic
// is subscribed; anything else is logged and dropped. The returned
// status is published back by the caller.
func (p *Publisher) handleMessage(ctx context.Context, topic string, payload []byte) (supervisor.Status, bool) {
	if topic != p.commandTopic() {
		p.logger.Debug("mqtt message on unexpected topic", "topic", topic, "payload_size", len(payload))
		return supervisor.Status{}, false
	}
	if !p.limiter.allow() {
		return supervisor.Status{}, false
	}
	if p.commands == nil {
		p.logger.Warn("mqtt command ignored, no supervised service", "payload", string(payload))
		return supervisor.Status{}, false
	}

	cmd, err := supervisor.ParseCommand(strings.TrimSpace(string(payload)))
	if err != nil {
		p.logger.Warn("mqtt command rejected", "payload", string(payload), "error", err)
		return supervisor.Status{}, false
	}

	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	reply, err := p.commands.Send(sendCtx, cmd)
	if err != nil {
		if !errors.Is(err, supervisor.ErrClosed) {
			p.logger.Warn("mqtt command not delivered", "command", cmd, "error", err)
		}
		return supervisor.Status{}, false
	}
	select {
	case st := <-reply:
		p.logger.Info("mqtt command handled", "command", cmd, "state", st.State())
		return st, true
	case <-sendCtx.Done():
		p.logger.Warn("mqtt command timed out", "command", cmd)
		return supervisor.Status{}, false
	}
}

// messageRateLimiter drops inbound messages beyond limit per interval.
// Counters are atomic so the hot path takes no lock.
type messageRateLimiter struct {
	count    atomic.Int64
	dropped  atomic.Int64
	limit    int64
	interval time.Duration
	logger   *slog.Logger
}

func newMessageRateLimiter(limit int64, interval time.Duration, logger *slog.Logger) *messageRateLimiter {
	return &messageRateLimiter{
		limit:    limit,
		interval: interval,
		logger:   logger,
	}
}

// start resets the counter every interval until ctx is cancelled,
// warning when anything was dropped.
func (r *messageRateLimiter) start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := r.count.Swap(0)
			if dropped := r.dropped.Swap(0); dropped > 0 {
				r.logger.Warn("mqtt commands dropped due to rate limit",
					"received", count,
					"dropped", dropped,
					"interval", r.interval.String(),
					"limit", r.limit,
				)
			}
		}
	}
}

func (r *messageRateLimiter) allow() bool {
	if r.count.Add(1) > r.limit {
		r.dropped.Add(1)
		return false
	}
	return true
}
