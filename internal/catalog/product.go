package catalog

import "github.com/rotisserie/eris"

// ProductCode identifies an insurance product.
type ProductCode string

const (
	OSAGO     ProductCode = "osago"
	KASKO     ProductCode = "kasko"
	KASKOLite ProductCode = "kasko-lite"
	DSAGO     ProductCode = "dsago"
	GAP       ProductCode = "gap"
	Green     ProductCode = "green"
	Accident  ProductCode = "accident"
)

// ErrUnknownProduct is returned when a product code is not one of the known codes.
var ErrUnknownProduct = eris.New("catalog: unknown product")

// ErrUnknownPowerBand is returned when a power band label is not recognised.
var ErrUnknownPowerBand = eris.New("catalog: unknown power band")

type productInfo struct {
	title string
	note  string
}

var products = map[ProductCode]productInfo{
	OSAGO:     {"ОСАГО", "Обязательное"},
	KASKO:     {"КАСКО", "Полное"},
	KASKOLite: {"КАСКО-лайт", "Угон + гибель"},
	DSAGO:     {"ДСАГО", "Доп. лимит"},
	GAP:       {"GAP", "Защита инвестиции"},
	Green:     {"Зелёная карта", "За рубеж"},
	Accident:  {"НС водителя", "Несчастный случай"},
}

// Products returns every product code in display order.
func Products() []ProductCode {
	return []ProductCode{OSAGO, KASKO, KASKOLite, DSAGO, GAP, Green, Accident}
}

// Valid reports whether p is a known product code.
func (p ProductCode) Valid() bool {
	_, ok := products[p]
	return ok
}

// Title returns the customer-facing product name, or the raw code if unknown.
func (p ProductCode) Title() string {
	if info, ok := products[p]; ok {
		return info.title
	}
	return string(p)
}

// Note returns the short product subtitle shown next to the title.
func (p ProductCode) Note() string {
	return products[p].note
}

// ParseProduct converts a raw code into a ProductCode.
func ParseProduct(s string) (ProductCode, error) {
	p := ProductCode(s)
	if !p.Valid() {
		return "", eris.Wrapf(ErrUnknownProduct, "%q", s)
	}
	return p, nil
}

// PowerBand is an engine-power bracket used to tier OSAGO premiums.
type PowerBand string

const (
	BandUpTo50   PowerBand = "до 50"
	Band51to70   PowerBand = "51–70"
	Band71to100  PowerBand = "71–100"
	Band101to120 PowerBand = "101–120"
	Band121to150 PowerBand = "121–150"
	BandOver150  PowerBand = "150+"
)

// PowerBands returns every band in ascending power order.
func PowerBands() []PowerBand {
	return []PowerBand{BandUpTo50, Band51to70, Band71to100, Band101to120, Band121to150, BandOver150}
}

// Valid reports whether b is a known power band.
func (b PowerBand) Valid() bool {
	for _, known := range PowerBands() {
		if b == known {
			return true
		}
	}
	return false
}

// ParsePowerBand converts a raw label into a PowerBand. The empty string is
// accepted and means "no band selected". A plain hyphen is accepted in place
// of the en dash used by the canonical labels.
func ParsePowerBand(s string) (PowerBand, error) {
	if s == "" {
		return "", nil
	}
	b := PowerBand(s)
	if b.Valid() {
		return b, nil
	}
	for _, known := range PowerBands() {
		if replaceDash(string(known)) == s {
			return known, nil
		}
	}
	return "", eris.Wrapf(ErrUnknownPowerBand, "%q", s)
}

func replaceDash(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '–' {
			r = '-'
		}
		out = append(out, r)
	}
	return string(out)
}
