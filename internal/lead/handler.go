package lead

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/espasatel/espasatel/internal/metrics"
	"github.com/espasatel/espasatel/pkg/telegram"
)

const maxBody = 16 << 10

// Response is the JSON body of every lead answer.
type Response struct {
	OK            bool   `json:"ok"`
	Error         string `json:"error,omitempty"`
	FallbackPhone string `json:"fallback_phone,omitempty"`
}

// Handler serves POST /api/send-telegram and the form-specific lead
// endpoints.
type Handler struct {
	relay         Relay
	origins       *OriginPolicy
	limiter       *Limiter
	fallbackPhone string
	decode        Decoder
	now           func() time.Time
}

// NewHandler builds the lead endpoint for raw lead fields. limiter may be nil.
func NewHandler(relay Relay, origins *OriginPolicy, limiter *Limiter, fallbackPhone string) *Handler {
	return &Handler{
		relay:         relay,
		origins:       origins,
		limiter:       limiter,
		fallbackPhone: fallbackPhone,
		decode:        DecodeRequest,
		now:           time.Now,
	}
}

// Form returns a handler reading bodies with decode. It shares the relay,
// origin policy and limiter with h.
func (h *Handler) Form(decode Decoder) *Handler {
	c := *h
	c.decode = decode
	return &c
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	log := zap.L().With(zap.String("lead_id", id))

	if !h.origins.Allowed(r.Header.Get("Origin"), r.Header.Get("Referer")) {
		log.Warn("lead: origin rejected",
			zap.String("origin", r.Header.Get("Origin")),
			zap.String("referer", r.Header.Get("Referer")),
		)
		h.fail(w, http.StatusForbidden, "forbidden", "Forbidden")
		return
	}

	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		log.Warn("lead: rate limited", zap.String("client", clientKey(r)))
		h.fail(w, http.StatusTooManyRequests, "rate_limited", "Слишком много заявок, попробуйте позже")
		return
	}

	req, err := h.decode(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		log.Warn("lead: bad body", zap.Error(err))
		msg := "Некорректный запрос"
		if errors.Is(err, ErrUnknownOffer) {
			msg = ErrUnknownOffer.Error()
		}
		h.fail(w, http.StatusBadRequest, "invalid", msg)
		return
	}

	req = req.Sanitize()
	if err := req.Validate(); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	if err := h.relay.Send(r.Context(), Message(req, h.now())); err != nil {
		log.Error("lead: not delivered",
			zap.String("source", req.Source),
			zap.String("upstream", upstreamDescription(err)),
			zap.Error(err),
		)
		h.fail(w, http.StatusInternalServerError, "relay_error", RelayFailedText)
		return
	}

	log.Info("lead: delivered", zap.String("source", req.Source), zap.String("service", req.Service))
	metrics.LeadsTotal.WithLabelValues("sent").Inc()
	writeJSON(w, http.StatusOK, Response{OK: true})
}

func (h *Handler) fail(w http.ResponseWriter, code int, status, msg string) {
	metrics.LeadsTotal.WithLabelValues(status).Inc()
	writeJSON(w, code, Response{Error: msg, FallbackPhone: h.fallbackPhone})
}

// RelayFailedText is shown to the visitor next to the fallback phone when the
// relay fails. Upstream details only go to the log.
const RelayFailedText = "Не удалось отправить заявку. Позвоните нам напрямую"

func upstreamDescription(err error) string {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Description
	}
	return ""
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
