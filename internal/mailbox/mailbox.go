// Package mailbox fetches report messages from an IMAP mailbox.
package mailbox

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/mvdnes/dmarc-reporter/internal/config"
)

// Client is a logged-in IMAP connection.
type Client struct {
	c *client.Client
}

// Dial connects over TLS and logs in.
func Dial(cfg config.IMAP) (*Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return &Client{c: c}, nil
}

// Close logs out and disconnects.
func (m *Client) Close() error {
	return m.c.Logout()
}

// ForEachMessage selects the mailbox read-only, searches for matching
// messages and hands each raw message body to fn. Messages are fetched
// without setting the Seen flag. fn is responsible for swallowing
// per-message processing failures; an error from fn stops the iteration.
func (m *Client) ForEachMessage(mailbox, subject string, fn func(r io.Reader) error) error {
	if _, err := m.c.Select(mailbox, true); err != nil {
		return fmt.Errorf("selecting mailbox %q: %w", mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	if subject != "" {
		criteria.Header.Add("Subject", subject)
	}
	ids, err := m.c.Search(criteria)
	if err != nil {
		return fmt.Errorf("imap search: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 8)
	done := make(chan error, 1)
	go func() {
		done <- m.c.Fetch(seqset, items, messages)
	}()

	var fnErr error
	for msg := range messages {
		if fnErr != nil {
			continue // drain the channel so Fetch can finish
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		fnErr = fn(body)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("imap fetch: %w", err)
	}
	return fnErr
}
