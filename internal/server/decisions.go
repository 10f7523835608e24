package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/espasatel/espasatel/internal/advisor"
	"github.com/espasatel/espasatel/internal/catalog"
	"github.com/espasatel/espasatel/internal/metrics"
	"github.com/espasatel/espasatel/internal/triage"
)

func (s *server) triage(w http.ResponseWriter, r *http.Request) {
	var a triage.Answers
	if err := decode(w, r, &a); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode answers"))
		return
	}
	facts, err := a.Facts()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res := triage.Classify(facts)
	procedure := "police"
	if res.SimplifiedProcedure {
		procedure = "simplified"
	}
	metrics.TriageOutcomes.WithLabelValues(procedure).Inc()
	writeJSON(w, http.StatusOK, res)
}

// nodeView tags a graph node with its kind for clients.
type nodeView struct {
	Kind     string            `json:"kind"` // question | result
	Question *advisor.Question `json:"question,omitempty"`
	Result   *advisor.Result   `json:"result,omitempty"`
}

func viewOf(n advisor.Node) nodeView {
	switch n := n.(type) {
	case *advisor.Question:
		return nodeView{Kind: "question", Question: n}
	case *advisor.Result:
		return nodeView{Kind: "result", Result: n}
	}
	return nodeView{}
}

func advisorStatus(err error) int {
	switch {
	case errors.Is(err, advisor.ErrUnknownNode):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func (s *server) advisorNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.Graph.Resolve(advisor.NodeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, advisorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(n))
}

type advanceRequest struct {
	Node   advisor.NodeID `json:"node"`
	Answer string         `json:"answer"`
}

func (s *server) advisorAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode advance"))
		return
	}
	if req.Node == "" {
		req.Node = advisor.Start
	}
	next, err := s.Graph.Advance(req.Node, req.Answer)
	if err != nil {
		writeError(w, advisorStatus(err), err)
		return
	}
	n, err := s.Graph.Resolve(next)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if res, ok := n.(*advisor.Result); ok {
		metrics.AdvisorResults.WithLabelValues(string(res.Product)).Inc()
	}
	writeJSON(w, http.StatusOK, viewOf(n))
}

type walkRequest struct {
	Answers []string `json:"answers"`
}

type walkResponse struct {
	Result *advisor.Result  `json:"result"`
	Path   []advisor.NodeID `json:"path"`
	Offers []offerView      `json:"offers"`
}

func (s *server) advisorWalk(w http.ResponseWriter, r *http.Request) {
	var req walkRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode walk"))
		return
	}
	res, path, err := s.Graph.Walk(req.Answers...)
	if err != nil {
		writeError(w, advisorStatus(err), err)
		return
	}
	metrics.AdvisorResults.WithLabelValues(string(res.Product)).Inc()
	writeJSON(w, http.StatusOK, walkResponse{
		Result: res,
		Path:   path,
		Offers: views(s.Catalog.ComputeOffers(res.Product, "")),
	})
}

type offerView struct {
	Provider   string  `json:"provider"`
	Logo       string  `json:"logo"`
	Rating     float64 `json:"rating"`
	PayoutRate int     `json:"payout_rate"`
	Badge      string  `json:"badge,omitempty"`
	Price      int     `json:"price"`
	PriceText  string  `json:"price_text"`
}

func views(offers []catalog.Offer) []offerView {
	out := make([]offerView, 0, len(offers))
	for _, o := range offers {
		out = append(out, offerView{
			Provider:   o.Provider.Name,
			Logo:       o.Provider.Logo,
			Rating:     o.Provider.Rating,
			PayoutRate: o.Provider.PayoutRate,
			Badge:      o.Provider.Badge,
			Price:      o.Price,
			PriceText:  catalog.FormatRUB(o.Price),
		})
	}
	return out
}

type offersResponse struct {
	Product catalog.ProductCode `json:"product"`
	Title   string              `json:"title"`
	Power   catalog.PowerBand   `json:"power,omitempty"`
	Offers  []offerView         `json:"offers"`
}

func (s *server) offers(w http.ResponseWriter, r *http.Request) {
	product, err := catalog.ParseProduct(r.URL.Query().Get("product"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	band, err := catalog.ParsePowerBand(r.URL.Query().Get("power"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	metrics.OfferQueries.WithLabelValues(string(product)).Inc()
	writeJSON(w, http.StatusOK, offersResponse{
		Product: product,
		Title:   product.Title(),
		Power:   band,
		Offers:  views(s.Catalog.ComputeOffers(product, band)),
	})
}
