package litemode

import "strconv"

// ClientConnection mirrors the browser Network Information API. Available is
// false when the browser does not expose the API.
type ClientConnection struct {
	Available     bool     `json:"available"`
	SaveData      bool     `json:"save_data"`
	EffectiveType string   `json:"effective_type"`
	Downlink      *float64 `json:"downlink,omitempty"`
}

// Signal is the connection indicator shown in the lite page footer.
type Signal struct {
	Quality string `json:"quality"` // fast | medium | slow | unknown
	Bars    int    `json:"bars"`    // 1..4
	Label   string `json:"label"`
}

// Quality grades a client connection for display. Missing data is not taken
// as evidence of a slow link and grades as unknown with three bars.
func Quality(c ClientConnection) Signal {
	if !c.Available {
		return Signal{Quality: "unknown", Bars: 3, Label: "—"}
	}
	ect := c.EffectiveType
	switch {
	case c.SaveData || ect == "slow-2g":
		return Signal{Quality: "slow", Bars: 1, Label: "< 2G"}
	case ect == "2g":
		return Signal{Quality: "slow", Bars: 1, Label: "2G"}
	case ect == "3g" || (c.Downlink != nil && *c.Downlink < 1.5):
		return Signal{Quality: "medium", Bars: 2, Label: "3G"}
	case ect == "4g" || c.Downlink != nil:
		label := "4G Mbps"
		if c.Downlink != nil {
			label = strconv.FormatFloat(*c.Downlink, 'f', 1, 64) + " Mbps"
		}
		return Signal{Quality: "fast", Bars: 4, Label: label}
	}
	label := ect
	if label == "" {
		label = "—"
	}
	return Signal{Quality: "unknown", Bars: 3, Label: label}
}

// Hints converts the client view into request hints so the same classifier
// can run a live re-check.
func (c ClientConnection) Hints() Hints {
	if !c.Available {
		return Hints{}
	}
	return Hints{SaveData: c.SaveData, ECT: c.EffectiveType, Downlink: c.Downlink}
}
