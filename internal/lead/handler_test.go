package lead

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espasatel/espasatel/internal/catalog"
	"github.com/espasatel/espasatel/pkg/telegram"
)

type relayFunc func(ctx context.Context, text string) error

func (f relayFunc) Send(ctx context.Context, text string) error { return f(ctx, text) }

const fallback = "+7 800 123-45-67"

func newHandler(t *testing.T, relay Relay, limiter *Limiter) *Handler {
	t.Helper()
	h := NewHandler(relay, defaultPolicy(t), limiter, fallback)
	h.now = func() time.Time { return at }
	return h
}

func post(h http.Handler, body, origin string) (*httptest.ResponseRecorder, Response) {
	req := httptest.NewRequest(http.MethodPost, "/api/send-telegram", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

const site = "https://еспасатель.рф"

func TestHandler_Delivers(t *testing.T) {
	var sent string
	h := newHandler(t, relayFunc(func(_ context.Context, text string) error {
		sent = text
		return nil
	}), nil)

	rec, resp := post(h, `{"name":"*Иван*","phone":"+7 999","service":"ОСАГО","source":"Форма ОСАГО"}`, site)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Response{OK: true}, resp)
	assert.Contains(t, sent, "👤 *Имя:* Иван\n")
	assert.Contains(t, sent, "🔧 *Услуга:* ОСАГО")
	assert.Contains(t, sent, "🕐 05 марта, 14:07 (МСК)")
	assert.NotContains(t, sent, "Описание")
}

func TestHandler_Forbidden(t *testing.T) {
	called := false
	h := newHandler(t, relayFunc(func(context.Context, string) error { called = true; return nil }), nil)

	for _, origin := range []string{"", "https://evil.example"} {
		rec, resp := post(h, `{"name":"a","phone":"b"}`, origin)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, resp.OK)
		assert.Equal(t, "Forbidden", resp.Error)
		assert.Equal(t, fallback, resp.FallbackPhone)
	}
	assert.False(t, called)
}

func TestHandler_RefererFallback(t *testing.T) {
	h := newHandler(t, relayFunc(func(context.Context, string) error { return nil }), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/send-telegram", strings.NewReader(`{"name":"a","phone":"b"}`))
	req.Header.Set("Referer", "https://www.еспасатель.рф/evacuation-request")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_MissingFields(t *testing.T) {
	h := newHandler(t, relayFunc(func(context.Context, string) error {
		t.Error("relay must not be called")
		return nil
	}), nil)

	for _, body := range []string{`{"name":"Иван"}`, `{"phone":"+7"}`, `{"name":"***","phone":"+7"}`} {
		rec, resp := post(h, body, site)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Не заполнены обязательные поля", resp.Error)
		assert.Equal(t, fallback, resp.FallbackPhone)
	}
}

func TestHandler_BadJSON(t *testing.T) {
	h := newHandler(t, relayFunc(func(context.Context, string) error { return nil }), nil)
	rec, resp := post(h, `{"name":`, site)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.OK)
}

func TestHandler_RelayFailure(t *testing.T) {
	t.Run("api description", func(t *testing.T) {
		h := newHandler(t, relayFunc(func(context.Context, string) error {
			return &telegram.APIError{StatusCode: 400, Description: "Bad Request: chat not found"}
		}), nil)
		rec, resp := post(h, `{"name":"a","phone":"b"}`, site)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, RelayFailedText, resp.Error)
		assert.NotContains(t, rec.Body.String(), "chat not found")
		assert.Equal(t, fallback, resp.FallbackPhone)
	})

	t.Run("network", func(t *testing.T) {
		h := newHandler(t, relayFunc(func(context.Context, string) error { return errors.New("dial tcp: refused") }), nil)
		rec, resp := post(h, `{"name":"a","phone":"b"}`, site)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, RelayFailedText, resp.Error)
	})
}

func TestHandler_RateLimited(t *testing.T) {
	h := newHandler(t, relayFunc(func(context.Context, string) error { return nil }), NewLimiter(1, 1, 0))

	rec, _ := post(h, `{"name":"a","phone":"b"}`, site)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := post(h, `{"name":"a","phone":"b"}`, site)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, fallback, resp.FallbackPhone)
}

func TestHandler_Forms(t *testing.T) {
	var sent string
	base := newHandler(t, relayFunc(func(_ context.Context, text string) error {
		sent = text
		return nil
	}), nil)

	tests := []struct {
		name   string
		h      http.Handler
		body   string
		expect []string
	}{
		{
			name:   "calculator priced from catalog",
			h:      base.Form(CalculatorForm(catalog.Default())),
			body:   `{"name":"Иван","phone":"+7 999","product":"gap","provider":"Ингосстрах","price":1}`,
			expect: []string{"🔧 *Услуга:* GAP — Ингосстрах", "Выбранная цена: " + catalog.FormatRUB(11400) + "/год", "📍 *Источник:* " + SourceCalculator},
		},
		{
			name:   "help defaults service",
			h:      base.Form(DecodeHelp),
			body:   `{"name":"Иван","phone":"+7 999"}`,
			expect: []string{"🔧 *Услуга:* Срочная помощь", SourceHelp},
		},
		{
			name:   "evacuation address",
			h:      base.Form(DecodeEvacuation),
			body:   `{"name":"Иван","phone":"+7 999","city":"Москва","street":"Тверская","building":"1","reason":"ДТП"}`,
			expect: []string{"Адрес: Москва, ул. Тверская, д. 1 | Причина: ДТП", SourceEvacuation},
		},
		{
			name:   "consult source filled in",
			h:      base.Form(RawForm(SourceConsult)),
			body:   `{"name":"Иван","phone":"+7 999","service":"КАСКО"}`,
			expect: []string{"📍 *Источник:* Форма заявки Консультации"},
		},
		{
			name:   "osago keeps explicit source",
			h:      base.Form(RawForm(SourceOSAGO)),
			body:   `{"name":"Иван","phone":"+7 999","source":"Главная"}`,
			expect: []string{"📍 *Источник:* Главная"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sent = ""
			rec, resp := post(tt.h, tt.body, site)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.True(t, resp.OK)
			for _, want := range tt.expect {
				assert.Contains(t, sent, want)
			}
		})
	}
}

func TestHandler_CalculatorUnknownOffer(t *testing.T) {
	h := newHandler(t, relayFunc(func(context.Context, string) error {
		t.Error("relay must not be called")
		return nil
	}), nil).Form(CalculatorForm(catalog.Default()))

	for _, body := range []string{
		`{"name":"a","phone":"b","product":"gap","provider":"Нет такой"}`,
		`{"name":"a","phone":"b","product":"life","provider":"Ингосстрах"}`,
		`{"name":"a","phone":"b","product":"osago","power":"9000","provider":"Ингосстрах"}`,
	} {
		rec, resp := post(h, body, site)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, ErrUnknownOffer.Error(), resp.Error)
		assert.Equal(t, fallback, resp.FallbackPhone)
	}
}

func TestHandler_FormsShareLimiter(t *testing.T) {
	h := newHandler(t, relayFunc(func(context.Context, string) error { return nil }), NewLimiter(1, 1, 0))

	rec, _ := post(h.Form(DecodeHelp), `{"name":"a","phone":"b"}`, site)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = post(h, `{"name":"a","phone":"b"}`, site)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
