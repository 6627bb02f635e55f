// Package sms delivers pairing verification codes to phones.
package sms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/config"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

// LogSender writes messages to the log instead of a carrier. Used when SMS is
// disabled so the pairing flow stays testable locally.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, to, message string) error {
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"to": maskPhone(to), "message": message})
		s.logg.Info(ctx, "sms.send.skipped")
	}
	return nil
}

// NewFromConfig returns the SENS client behind a circuit breaker, or a
// LogSender when SMS is disabled.
func NewFromConfig(cfg config.SMSConfig, logg *logger.Logger) (Sender, error) {
	if !cfg.Enabled {
		return NewLogSender(logg), nil
	}
	client, err := NewSENSClient(SENSOptions{
		BaseURL:   cfg.BaseURL,
		ServiceID: cfg.ServiceID,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		From:      cfg.Sender,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return NewBreakerSender(client, NewBreaker(DefaultBreakerConfig(), time.Now)), nil
}

// BreakerSender fails fast while the carrier keeps erroring.
type BreakerSender struct {
	next    Sender
	breaker *Breaker
}

func NewBreakerSender(next Sender, breaker *Breaker) *BreakerSender {
	return &BreakerSender{next: next, breaker: breaker}
}

func (s *BreakerSender) Send(ctx context.Context, to, message string) error {
	err := s.breaker.Execute(func() error {
		return s.next.Send(ctx, to, message)
	})
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("sms carrier unavailable: %w", err)
	}
	return err
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:3] + "****" + phone[len(phone)-4:]
}
