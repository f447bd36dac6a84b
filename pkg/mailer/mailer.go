// Package mailer wraps an outbound mail channel behind a transport with
// single and best-effort bulk sends.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"go.uber.org/zap"
)

// ErrNotInitialized is returned by every send once verification has failed.
var ErrNotInitialized = errors.New("mail transport not initialized")

// TransportError reports a channel failure or a rejected message.
type TransportError struct {
	To  string
	Err error
}

func (e *TransportError) Error() string {
	if e.To == "" {
		return "mail transport: " + e.Err.Error()
	}
	return fmt.Sprintf("mail transport: send to %s: %v", e.To, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outbound email.
type Message struct {
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Sender is the raw channel a Mailer drives.
type Sender interface {
	// Verify checks connectivity and credentials once.
	Verify(ctx context.Context) error
	// Send delivers msg and returns the provider message id.
	Send(ctx context.Context, msg *Message) (string, error)
}

// Transport is what the newsletter services depend on.
type Transport interface {
	// Ready reports a failed construction-time verification. While it returns
	// non-nil every send fails with ErrNotInitialized.
	Ready() error
	SendEmail(ctx context.Context, msg *Message) (string, error)
	SendBulkEmails(ctx context.Context, msgs []*Message) *BulkResult
}

// BulkSuccess is one accepted message of a bulk send.
type BulkSuccess struct {
	To        string
	MessageID string
}

// BulkFailure is one rejected message of a bulk send.
type BulkFailure struct {
	To  string
	Err error
}

// BulkResult splits a bulk send into accepted and rejected items, each in input order.
type BulkResult struct {
	Results []BulkSuccess
	Errors  []BulkFailure
}

// Options tune a Mailer.
type Options struct {
	// SendDelay is the pause between consecutive items of a bulk send.
	SendDelay time.Duration
	// VerifyTimeout bounds the construction-time verification.
	VerifyTimeout time.Duration
}

// DefaultSendDelay smooths the outbound rate of bulk sends.
const DefaultSendDelay = 100 * time.Millisecond

// Mailer implements Transport on top of a Sender.
type Mailer struct {
	sender  Sender
	delay   time.Duration
	initErr error
	log     *zap.Logger

	sleep func(time.Duration)
}

var _ Transport = (*Mailer)(nil)

// New verifies sender once. A failed verification does not fail
// construction: the mailer is returned unusable and every send reports
// ErrNotInitialized.
func New(ctx context.Context, sender Sender, opts Options) *Mailer {
	m := &Mailer{
		sender: sender,
		delay:  opts.SendDelay,
		log:    logger.Named("mailer"),
		sleep:  time.Sleep,
	}
	if opts.VerifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.VerifyTimeout)
		defer cancel()
	}
	if err := sender.Verify(ctx); err != nil {
		m.initErr = fmt.Errorf("%w: %v", ErrNotInitialized, err)
		m.log.Error("mail transport verification failed; sends are disabled", logger.Err(err))
	} else {
		m.log.Info("mail transport ready")
	}
	return m
}

// Ready reports whether verification succeeded.
func (m *Mailer) Ready() error { return m.initErr }

// SendEmail delivers one message and returns its message id.
func (m *Mailer) SendEmail(ctx context.Context, msg *Message) (string, error) {
	if m.initErr != nil {
		return "", &TransportError{To: msg.To, Err: m.initErr}
	}
	if err := validate(msg); err != nil {
		return "", &TransportError{To: msg.To, Err: err}
	}
	id, err := m.sender.Send(ctx, msg)
	if err != nil {
		return "", &TransportError{To: msg.To, Err: err}
	}
	return id, nil
}

// SendBulkEmails sends msgs one after another, pausing between items.
// A failed item is recorded and the remaining items are still attempted.
func (m *Mailer) SendBulkEmails(ctx context.Context, msgs []*Message) *BulkResult {
	res := &BulkResult{
		Results: make([]BulkSuccess, 0, len(msgs)),
		Errors:  []BulkFailure{},
	}
	for i, msg := range msgs {
		if i > 0 && m.delay > 0 {
			m.sleep(m.delay)
		}
		id, err := m.SendEmail(ctx, msg)
		if err != nil {
			m.log.Warn("bulk item failed", logger.Email(msg.To), logger.Err(err))
			res.Errors = append(res.Errors, BulkFailure{To: msg.To, Err: err})
			continue
		}
		res.Results = append(res.Results, BulkSuccess{To: msg.To, MessageID: id})
	}
	return res
}

func validate(msg *Message) error {
	switch {
	case strings.TrimSpace(msg.To) == "":
		return errors.New("missing recipient")
	case strings.TrimSpace(msg.Subject) == "":
		return errors.New("missing subject")
	case msg.Text == "" && msg.HTML == "":
		return errors.New("empty body")
	}
	return nil
}
