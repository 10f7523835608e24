package lead

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/espasatel/espasatel/internal/metrics"
	"github.com/espasatel/espasatel/internal/resilience"
	"github.com/espasatel/espasatel/pkg/telegram"
)

// Relay delivers a rendered lead notification.
type Relay interface {
	Send(ctx context.Context, text string) error
}

// TelegramRelay posts leads to a chat. Each attempt has its own timeout;
// transient failures are retried and a failing Bot API trips the breaker.
// Permanent answers such as a revoked token or an unknown chat count as
// breaker failures too: they fail every lead until the configuration is
// fixed, and the open circuit raises the ops alert.
type TelegramRelay struct {
	client  telegram.Client
	chatID  string
	timeout time.Duration
	policy  resilience.Policy
	breaker *resilience.Breaker
}

// NewTelegramRelay wires a relay. A zero timeout means 10s.
func NewTelegramRelay(client telegram.Client, chatID string, timeout time.Duration, policy resilience.Policy, breaker *resilience.Breaker) *TelegramRelay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultBreakerConfig())
	}
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.LogRetries("telegram")
	}
	return &TelegramRelay{client: client, chatID: chatID, timeout: timeout, policy: policy, breaker: breaker}
}

// Send implements Relay.
func (r *TelegramRelay) Send(ctx context.Context, text string) error {
	start := time.Now()
	err := resilience.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.breaker.Execute(ctx, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			_, err := r.client.SendMessage(ctx, r.chatID, text)
			return err
		})
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, resilience.ErrOpen) {
			outcome = "circuit_open"
		}
	}
	metrics.RelayDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		zap.L().Error("lead: relay failed", zap.String("breaker", r.breaker.State().String()), zap.Error(err))
		return eris.Wrap(err, "lead: relay to telegram")
	}
	return nil
}
