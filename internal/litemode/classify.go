// Package litemode decides whether a visitor gets the reduced-asset "lite"
// rendering of the site.
package litemode

import (
	"math"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Hints are the network signals a browser sends with a request.
type Hints struct {
	SaveData  bool
	ECT       string
	Downlink  *float64 // Mbps
	RTT       *int     // ms
	UserAgent string
}

// HintsFromHeader reads Save-Data, ECT, Downlink, RTT and User-Agent.
// Malformed numeric hints are treated as absent.
func HintsFromHeader(h http.Header) Hints {
	hints := Hints{
		SaveData:  strings.EqualFold(strings.TrimSpace(h.Get("Save-Data")), "on"),
		ECT:       strings.ToLower(strings.TrimSpace(h.Get("ECT"))),
		UserAgent: h.Get("User-Agent"),
	}
	if v, ok := parseHint(h.Get("Downlink")); ok {
		hints.Downlink = &v
	}
	if v, ok := parseHint(h.Get("RTT")); ok {
		rtt := int(min(v, maxRTTMs))
		hints.RTT = &rtt
	}
	return hints
}

// maxRTTMs bounds RTT before the int conversion.
const maxRTTMs = math.MaxInt32

// parseHint accepts finite, non-negative numbers only.
func parseHint(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// Classification is the outcome of the slow-connection heuristic. Reason names
// the rule that matched and is empty for fast connections.
type Classification struct {
	Slow   bool   `json:"slow"`
	Reason string `json:"reason,omitempty"`
}

// Config holds the heuristic thresholds.
type Config struct {
	SlowDownlinkMbps float64
	SlowRTTMs        int
	SlowECT          []string
	UAPatterns       []string
}

// DefaultUAPatterns are user-agent fragments of low-end and feature-phone
// browsers.
var DefaultUAPatterns = []string{"UCWEB", "UCBrowser", "NetFront", "Opera Mini", "MIDP", "CLDC", "Series60", "SymbOS"}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		SlowDownlinkMbps: 1.5,
		SlowRTTMs:        800,
		SlowECT:          []string{"slow-2g", "2g"},
		UAPatterns:       slices.Clone(DefaultUAPatterns),
	}
}

type rule func(Hints) (reason string, slow bool)

// Classifier evaluates an ordered list of slow-connection rules; the first
// match wins.
type Classifier struct {
	rules []rule
}

// NewClassifier builds a classifier. UA patterns are regular expressions
// matched case-insensitively.
func NewClassifier(cfg Config) (*Classifier, error) {
	var ua *regexp.Regexp
	if len(cfg.UAPatterns) > 0 {
		re, err := regexp.Compile("(?i)" + strings.Join(cfg.UAPatterns, "|"))
		if err != nil {
			return nil, eris.Wrap(err, "litemode: compile ua patterns")
		}
		ua = re
	}
	slowECT := make(map[string]bool, len(cfg.SlowECT))
	for _, e := range cfg.SlowECT {
		slowECT[strings.ToLower(e)] = true
	}

	return &Classifier{rules: []rule{
		func(h Hints) (string, bool) {
			return "save-data", h.SaveData
		},
		func(h Hints) (string, bool) {
			return "ect:" + h.ECT, slowECT[h.ECT]
		},
		func(h Hints) (string, bool) {
			if h.Downlink == nil || *h.Downlink >= cfg.SlowDownlinkMbps {
				return "", false
			}
			return "downlink:" + strconv.FormatFloat(*h.Downlink, 'f', -1, 64), true
		},
		func(h Hints) (string, bool) {
			if h.RTT == nil || *h.RTT <= cfg.SlowRTTMs {
				return "", false
			}
			return "rtt:" + strconv.Itoa(*h.RTT), true
		},
		func(h Hints) (string, bool) {
			return "ua-heuristic", ua != nil && ua.MatchString(h.UserAgent)
		},
	}}, nil
}

// Classify runs the rules against h.
func (c *Classifier) Classify(h Hints) Classification {
	for _, r := range c.rules {
		if reason, slow := r(h); slow {
			return Classification{Slow: true, Reason: reason}
		}
	}
	return Classification{}
}
