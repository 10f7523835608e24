package server

import (
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/espasatel/espasatel/internal/litemode"
	"github.com/espasatel/espasatel/internal/seo"
)

type connectionResponse struct {
	Decision       litemode.Decision       `json:"decision"`
	Classification litemode.Classification `json:"classification"`
}

// connection reports the mode chosen for this request and what the request
// hints alone would say.
func (s *server) connection(w http.ResponseWriter, r *http.Request) {
	d, ok := litemode.FromContext(r.Context())
	if !ok {
		d = litemode.Decision{Source: litemode.SourceDefault}
	}
	writeJSON(w, http.StatusOK, connectionResponse{
		Decision:       d,
		Classification: s.Classifier.Classify(litemode.HintsFromHeader(r.Header)),
	})
}

type reportResponse struct {
	Decision       litemode.Decision       `json:"decision"`
	Signal         litemode.Signal         `json:"signal"`
	Classification litemode.Classification `json:"classification"`
}

// connectionReport grades what the browser's Network Information API sees
// and resolves the client-side mode: override cookie, then auto marker, then
// the reading itself. The handler itself writes no cookies.
func (s *server) connectionReport(w http.ResponseWriter, r *http.Request) {
	var c litemode.ClientConnection
	if err := decode(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode connection"))
		return
	}
	live := s.Classifier.Classify(c.Hints())
	pref, marked := litemode.StateFromRequest(r)
	writeJSON(w, http.StatusOK, reportResponse{
		Decision:       litemode.Resolve(pref, marked, func() litemode.Classification { return live }),
		Signal:         litemode.Quality(c),
		Classification: live,
	})
}

type liteModeRequest struct {
	Lite bool `json:"lite"`
}

func (s *server) setLiteMode(w http.ResponseWriter, r *http.Request) {
	var req liteModeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode lite mode"))
		return
	}
	litemode.SetPreference(w, req.Lite, s.Cookies)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) clearLiteMode(w http.ResponseWriter, _ *http.Request) {
	litemode.ClearPreference(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) failsafeScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(litemode.FailsafeScript(s.FailsafeBudget)))
}

func (s *server) sitemap(w http.ResponseWriter, _ *http.Request) {
	out, err := seo.Sitemap(s.BaseURL, seo.Pages, s.Started)
	if err != nil {
		zap.L().Error("server: sitemap", zap.Error(err))
		http.Error(w, "sitemap unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(out)
}

func (s *server) robots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(seo.Robots(s.BaseURL)))
}
