package lead

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espasatel/espasatel/internal/resilience"
	"github.com/espasatel/espasatel/pkg/telegram"
)

type fakeClient struct {
	mu    sync.Mutex
	calls int
	texts []string
	errs  []error // returned in order, then success
	block bool
}

func (f *fakeClient) SendMessage(ctx context.Context, chatID, text string) (*telegram.Message, error) {
	f.mu.Lock()
	f.calls++
	f.texts = append(f.texts, chatID+"|"+text)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &telegram.Message{MessageID: 1}, nil
}

func quickPolicy() resilience.Policy {
	return resilience.Policy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}
}

func TestTelegramRelay_Delivers(t *testing.T) {
	fc := &fakeClient{}
	r := NewTelegramRelay(fc, "-100", time.Second, quickPolicy(), nil)

	require.NoError(t, r.Send(context.Background(), "hello"))
	assert.Equal(t, []string{"-100|hello"}, fc.texts)
}

func TestTelegramRelay_RetriesTransient(t *testing.T) {
	fc := &fakeClient{errs: []error{
		resilience.Transient(errors.New("502"), 502),
		resilience.Transient(errors.New("429"), 429),
	}}
	r := NewTelegramRelay(fc, "1", time.Second, quickPolicy(), nil)

	require.NoError(t, r.Send(context.Background(), "x"))
	assert.Equal(t, 3, fc.calls)
}

func TestTelegramRelay_PermanentFailsFast(t *testing.T) {
	fc := &fakeClient{errs: []error{&telegram.APIError{StatusCode: 400, Code: 400, Description: "Bad Request: chat not found"}}}
	r := NewTelegramRelay(fc, "1", time.Second, quickPolicy(), nil)

	err := r.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 1, fc.calls)

	var apiErr *telegram.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Bad Request: chat not found", apiErr.Description)
}

func TestTelegramRelay_AttemptTimeout(t *testing.T) {
	fc := &fakeClient{block: true}
	p := quickPolicy()
	p.Attempts = 2
	r := NewTelegramRelay(fc, "1", 20*time.Millisecond, p, nil)

	start := time.Now()
	err := r.Send(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, fc.calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTelegramRelay_PermanentAPIErrorsTripBreaker(t *testing.T) {
	chatNotFound := &telegram.APIError{StatusCode: 400, Code: 400, Description: "Bad Request: chat not found"}
	fc := &fakeClient{errs: []error{chatNotFound, chatNotFound}}
	br := resilience.NewBreaker(resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour})
	r := NewTelegramRelay(fc, "1", time.Second, quickPolicy(), br)

	require.Error(t, r.Send(context.Background(), "x"))
	assert.Equal(t, 1, fc.calls, "permanent errors are not retried")
	require.Error(t, r.Send(context.Background(), "x"))
	assert.Equal(t, resilience.Open, br.State())

	assert.ErrorIs(t, r.Send(context.Background(), "x"), resilience.ErrOpen)
	assert.Equal(t, 2, fc.calls)
}

func TestTelegramRelay_BreakerOpens(t *testing.T) {
	perm := errors.New("unauthorized")
	fc := &fakeClient{errs: []error{perm, perm}}
	br := resilience.NewBreaker(resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour})
	r := NewTelegramRelay(fc, "1", time.Second, quickPolicy(), br)

	require.Error(t, r.Send(context.Background(), "x"))
	require.Error(t, r.Send(context.Background(), "x"))
	err := r.Send(context.Background(), "x")
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, 2, fc.calls)
}
