package mailer

import (
	"context"
	"fmt"

	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockSender logs messages instead of delivering them. Used in development.
type MockSender struct {
	Name string
}

func NewMockSender(name string) *MockSender {
	return &MockSender{Name: name}
}

func (s *MockSender) Verify(context.Context) error { return nil }

func (s *MockSender) Send(_ context.Context, msg *Message) (string, error) {
	id := fmt.Sprintf("%s-MOCK-%s", s.Name, uuid.NewString())
	logger.Named("mailer.mock").Info("simulated send",
		logger.Email(msg.To),
		zap.String("subject", msg.Subject),
		logger.Count("html_bytes", len(msg.HTML)),
	)
	return id, nil
}
