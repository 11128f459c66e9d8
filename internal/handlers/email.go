package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/chatur/internal/email"
	"github.com/nugget/chatur/internal/intent"
)

const maxEmails = 3

// Mailbox lists and searches messages.
type Mailbox interface {
	Unread(ctx context.Context, limit int) ([]email.Envelope, error)
	Search(ctx context.Context, opts email.SearchOptions) ([]email.Envelope, error)
}

// Email reads out unread mail or the result of a search.
type Email struct {
	handles
	mailbox Mailbox
}

// NewEmail creates the email handler. A nil mailbox makes every request
// report email as unavailable.
func NewEmail(m Mailbox) *Email {
	return &Email{handles: handles(intent.Email), mailbox: m}
}

// Handle implements [Handler].
func (h *Email) Handle(ctx context.Context, in intent.Intent) (string, error) {
	if h.mailbox == nil {
		return "", fail(ErrUnavailable, "email", nil)
	}

	query := strings.TrimSpace(in.Param(intent.ParamQuery))
	if in.Param(intent.ParamAction) != "search" || query == "" {
		msgs, err := h.mailbox.Unread(ctx, maxEmails)
		if err != nil {
			return "", fail(ErrTransient, "checking your email", err)
		}
		if len(msgs) == 0 {
			return "You have no unread emails.", nil
		}
		return summarize(fmt.Sprintf("You have %s.", countOf(len(msgs), "unread email")), msgs), nil
	}

	opts := email.SearchOptions{Limit: maxEmails}
	if from, ok := strings.CutPrefix(query, "from:"); ok {
		opts.From = strings.TrimSpace(from)
	} else {
		opts.Text = query
	}
	msgs, err := h.mailbox.Search(ctx, opts)
	if err != nil {
		return "", fail(ErrTransient, "searching your email", err)
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("I couldn't find any emails matching '%s'.", query), nil
	}
	return summarize(fmt.Sprintf("I found %s matching '%s'.", countOf(len(msgs), "email"), query), msgs), nil
}

func summarize(lead string, msgs []email.Envelope) string {
	var b strings.Builder
	b.WriteString(lead)
	for _, m := range msgs {
		subject := m.Subject
		if subject == "" {
			subject = "no subject"
		}
		fmt.Fprintf(&b, " From %s: %s.", m.Sender, subject)
	}
	return b.String()
}

func countOf(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
