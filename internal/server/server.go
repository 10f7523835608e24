// Package server exposes the decision components and the lead relay over
// HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/espasatel/espasatel/internal/advisor"
	"github.com/espasatel/espasatel/internal/catalog"
	"github.com/espasatel/espasatel/internal/lead"
	"github.com/espasatel/espasatel/internal/litemode"
)

// Deps are the components the router serves.
type Deps struct {
	Catalog        *catalog.Catalog
	Graph          *advisor.Graph
	Classifier     *litemode.Classifier
	Cookies        litemode.Cookies
	FailsafeBudget time.Duration
	Origins        *lead.OriginPolicy
	Leads          *lead.Handler
	BaseURL        string

	// Started is reported as the sitemap lastmod.
	Started time.Time

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool
}

type server struct {
	Deps
}

// New builds the router.
func New(d Deps) http.Handler {
	if d.FailsafeBudget <= 0 {
		d.FailsafeBudget = litemode.DefaultFailsafeBudget
	}
	if d.Started.IsZero() {
		d.Started = time.Now()
	}
	s := &server{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(litemode.Middleware(d.Classifier, d.Cookies))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/sitemap.xml", s.sitemap)
	r.Get("/robots.txt", s.robots)
	r.Get("/lite/failsafe.js", s.failsafeScript)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowOriginFunc: func(_ *http.Request, origin string) bool {
				return d.Origins.AllowOrigin(origin)
			},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		r.Method(http.MethodPost, "/send-telegram", d.Leads)
		r.Route("/leads", func(r chi.Router) {
			r.Method(http.MethodPost, "/calculator", d.Leads.Form(lead.CalculatorForm(d.Catalog)))
			r.Method(http.MethodPost, "/help", d.Leads.Form(lead.DecodeHelp))
			r.Method(http.MethodPost, "/evacuation", d.Leads.Form(lead.DecodeEvacuation))
			r.Method(http.MethodPost, "/consult", d.Leads.Form(lead.RawForm(lead.SourceConsult)))
			r.Method(http.MethodPost, "/osago", d.Leads.Form(lead.RawForm(lead.SourceOSAGO)))
		})
		r.Post("/triage", s.triage)
		r.Get("/advisor/nodes/{id}", s.advisorNode)
		r.Post("/advisor/advance", s.advisorAdvance)
		r.Post("/advisor/walk", s.advisorWalk)
		r.Get("/offers", s.offers)
		r.Get("/connection", s.connection)
		r.Post("/connection", s.connectionReport)
		r.Put("/lite-mode", s.setLiteMode)
		r.Delete("/lite-mode", s.clearLiteMode)
	})

	return r
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
