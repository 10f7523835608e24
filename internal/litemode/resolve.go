package litemode

// Preference is the visitor's explicit choice, stored in the override cookie.
type Preference int

const (
	PrefNone Preference = iota
	PrefOn
	PrefOff
)

// ParsePreference maps an override cookie value to a Preference. Values other
// than "on" and "off" count as no preference.
func ParsePreference(v string) Preference {
	switch v {
	case "on":
		return PrefOn
	case "off":
		return PrefOff
	default:
		return PrefNone
	}
}

// String returns the cookie value for p.
func (p Preference) String() string {
	switch p {
	case PrefOn:
		return "on"
	case PrefOff:
		return "off"
	default:
		return ""
	}
}

// Source records which tier decided the mode.
type Source string

const (
	SourceOverride Source = "override"
	SourceAuto     Source = "auto"
	SourceLive     Source = "live"
	SourceDefault  Source = "default"
)

// Decision is the resolved rendering mode.
type Decision struct {
	Lite   bool   `json:"lite"`
	Source Source `json:"source"`
	Reason string `json:"reason,omitempty"`
}

// Resolve picks the mode from three tiers in strict order: the explicit
// override, then the server's auto marker, then a live classification. live
// is only called when neither cookie decided; a nil live yields full mode.
func Resolve(pref Preference, autoMarker bool, live func() Classification) Decision {
	switch pref {
	case PrefOn:
		return Decision{Lite: true, Source: SourceOverride}
	case PrefOff:
		return Decision{Lite: false, Source: SourceOverride}
	}
	if autoMarker {
		return Decision{Lite: true, Source: SourceAuto}
	}
	if live == nil {
		return Decision{Source: SourceDefault}
	}
	c := live()
	return Decision{Lite: c.Slow, Source: SourceLive, Reason: c.Reason}
}
