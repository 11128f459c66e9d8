// Package email reads the user's inbox over IMAP so the assistant can
// announce unread mail and search by sender or text. Sending is not
// supported.
package email

import (
	"io"
	"time"

	"github.com/emersion/go-imap/v2"
)

// Envelope is the summary of one message, enough to read aloud.
type Envelope struct {
	UID     uint32
	Date    time.Time
	From    string // "Name <addr>" or bare address
	Sender  string // display name, falling back to the address
	Subject string
	Seen    bool
}

// SearchOptions selects messages. Empty fields are ignored.
type SearchOptions struct {
	Folder string
	// Text matches anywhere in the message.
	Text string
	// From matches the From header.
	From   string
	Unseen bool
	// Limit caps the result; zero means 3.
	Limit int
}

// drainLiteral discards an unread body literal so the IMAP stream does
// not stall.
func drainLiteral(r imap.LiteralReader) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, r)
}
