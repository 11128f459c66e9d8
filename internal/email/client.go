package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"strconv"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"
)

// Client is a single-account IMAP reader. The connection is opened
// lazily, checked with NOOP before each use and re-established when
// stale. All methods are safe for concurrent use.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

// NewClient creates a client for cfg. No connection is made until the
// first call.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// connectLocked dials and logs in. Caller must hold c.mu.
func (c *Client) connectLocked() error {
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	opts := imapclient.Options{
		// Subjects and sender names arrive RFC 2047 encoded in whatever
		// charset the sender used.
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	}
	if c.cfg.TLS {
		opts.TLSConfig = &tls.Config{ServerName: c.cfg.Host}
	}

	c.logger.Debug("connecting to IMAP server", "host", c.cfg.Host, "port", c.cfg.Port, "tls", c.cfg.TLS)

	var (
		client *imapclient.Client
		err    error
	)
	if c.cfg.TLS {
		client, err = imapclient.DialTLS(addr, &opts)
	} else {
		client, err = imapclient.DialInsecure(addr, &opts)
	}
	if err != nil {
		return fmt.Errorf("dial IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return fmt.Errorf("login as %s: %w", c.cfg.Username, err)
	}

	c.client = client
	c.logger.Info("IMAP connected", "host", c.cfg.Host, "user", c.cfg.Username)
	return nil
}

// ensureConnected reconnects when the current session fails NOOP.
// Caller must hold c.mu.
func (c *Client) ensureConnected() error {
	if c.client != nil {
		if err := c.client.Noop().Wait(); err == nil {
			return nil
		}
		c.logger.Debug("IMAP connection stale, reconnecting", "host", c.cfg.Host)
	}
	return c.connectLocked()
}

// Close logs out and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// Unread returns up to limit unseen messages, newest first.
func (c *Client) Unread(ctx context.Context, limit int) ([]Envelope, error) {
	return c.Search(ctx, SearchOptions{Unseen: true, Limit: limit})
}

// Search returns messages matching opts, newest first.
func (c *Client) Search(ctx context.Context, opts SearchOptions) ([]Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	folder := opts.Folder
	if folder == "" {
		folder = c.cfg.Folder
	}
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := c.client.Select(folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}

	searchData, err := c.client.UIDSearch(buildCriteria(opts), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", folder, err)
	}

	uids := newest(searchData.AllUIDs(), opts.Limit)
	if len(uids) == 0 {
		return nil, nil
	}
	var set imap.UIDSet
	for _, uid := range uids {
		set.AddNum(uid)
	}
	return c.fetchEnvelopes(set)
}

func buildCriteria(opts SearchOptions) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}
	if opts.Unseen {
		criteria.NotFlag = append(criteria.NotFlag, imap.FlagSeen)
	}
	if opts.Text != "" {
		criteria.Text = append(criteria.Text, opts.Text)
	}
	if opts.From != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key:   "From",
			Value: opts.From,
		})
	}
	return criteria
}

// newest keeps the highest limit UIDs; UIDs ascend with arrival.
func newest(uids []imap.UID, limit int) []imap.UID {
	if limit <= 0 {
		limit = 3
	}
	if len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	return uids
}

// fetchEnvelopes fetches the given UIDs and returns them newest first.
// Caller must hold c.mu with a folder selected.
func (c *Client) fetchEnvelopes(set imap.UIDSet) ([]Envelope, error) {
	cmd := c.client.Fetch(set, &imap.FetchOptions{UID: true, Envelope: true, Flags: true})

	var out []Envelope
	for {
		msg := cmd.Next()
		if msg == nil {
			break
		}
		env, err := parseMessageData(msg)
		if err != nil {
			c.logger.Debug("skipping message", "error", err)
			continue
		}
		out = append(out, env)
	}
	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch envelopes: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func parseMessageData(msg *imapclient.FetchMessageData) (Envelope, error) {
	var env Envelope
	for {
		item := msg.Next()
		if item == nil {
			break
		}
		switch data := item.(type) {
		case imapclient.FetchItemDataUID:
			env.UID = uint32(data.UID)
		case imapclient.FetchItemDataFlags:
			for _, f := range data.Flags {
				if f == imap.FlagSeen {
					env.Seen = true
				}
			}
		case imapclient.FetchItemDataEnvelope:
			if data.Envelope != nil {
				env.Date = data.Envelope.Date
				env.Subject = data.Envelope.Subject
				if len(data.Envelope.From) > 0 {
					env.From = formatAddress(data.Envelope.From[0])
					env.Sender = senderName(data.Envelope.From[0])
				}
			}
		case imapclient.FetchItemDataBodySection:
			drainLiteral(data.Literal)
		}
	}
	if env.UID == 0 {
		return env, fmt.Errorf("message missing UID")
	}
	return env, nil
}

func formatAddress(addr imap.Address) string {
	if addr.Name != "" {
		return fmt.Sprintf("%s <%s>", addr.Name, addr.Addr())
	}
	return addr.Addr()
}

func senderName(addr imap.Address) string {
	if addr.Name != "" {
		return addr.Name
	}
	return addr.Addr()
}
