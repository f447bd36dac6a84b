// Package mailertest provides a recording mailer.Sender for tests.
package mailertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ArowuTest/ecell-newsletter-backend/pkg/mailer"
)

// ErrRejected is returned for addresses registered with Reject.
var ErrRejected = errors.New("recipient rejected")

// Recorder captures every message it is asked to send.
type Recorder struct {
	mu       sync.Mutex
	sent     []mailer.Message
	attempts int
	reject   map[string]bool

	// VerifyErr is returned by Verify.
	VerifyErr error
	// OnSend runs before each send with the 1-based attempt number.
	OnSend func(attempt int, msg *mailer.Message)
}

func NewRecorder() *Recorder {
	return &Recorder{reject: make(map[string]bool)}
}

// Reject makes sends to the given addresses fail.
func (r *Recorder) Reject(addrs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range addrs {
		r.reject[a] = true
	}
}

func (r *Recorder) Verify(context.Context) error { return r.VerifyErr }

func (r *Recorder) Send(_ context.Context, msg *mailer.Message) (string, error) {
	r.mu.Lock()
	r.attempts++
	n := r.attempts
	hook := r.OnSend
	rejected := r.reject[msg.To]
	r.mu.Unlock()

	if hook != nil {
		hook(n, msg)
	}
	if rejected {
		return "", ErrRejected
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, *msg)
	return fmt.Sprintf("msg-%d", n), nil
}

// Attempts is the number of Send calls, successful or not.
func (r *Recorder) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Sent returns a copy of the accepted messages in send order.
func (r *Recorder) Sent() []mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailer.Message(nil), r.sent...)
}

// Recipients returns the accepted addresses in send order.
func (r *Recorder) Recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, m := range r.sent {
		out[i] = m.To
	}
	return out
}
