// Package catalog holds the static provider price table and ranks offers for
// an insurance product.
package catalog

import (
	"bytes"
	_ "embed"
	"io"
	"math"
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultTable []byte

// Price is the wholesale price of one product at one provider.
type Price struct {
	Base       int               `yaml:"base" json:"base"`
	PowerBands map[PowerBand]int `yaml:"power_bands,omitempty" json:"power_bands,omitempty"`
}

// Provider is an insurance company in the price table.
type Provider struct {
	Name       string                `yaml:"name" json:"name"`
	Logo       string                `yaml:"logo" json:"logo"`
	Rating     float64               `yaml:"rating" json:"rating"`
	PayoutRate int                   `yaml:"payout_rate" json:"payout_rate"`
	Markup     float64               `yaml:"markup" json:"markup"`
	Badge      string                `yaml:"badge,omitempty" json:"badge,omitempty"`
	Prices     map[ProductCode]Price `yaml:"prices" json:"-"`
}

// Offer is a provider's customer-facing price for a product.
type Offer struct {
	Provider Provider `json:"provider"`
	Price    int      `json:"price"`
}

// Catalog is an immutable, validated price table. Safe for concurrent use.
type Catalog struct {
	providers []Provider
}

type table struct {
	Providers []Provider `yaml:"providers"`
}

// Default returns the compiled-in price table. It panics if the embedded
// table is invalid, which can only happen through a bad edit to catalog.yaml.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultTable))
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile reads and validates a price table from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Load(f)
}

// Load decodes and validates a price table.
func Load(r io.Reader) (*Catalog, error) {
	var t table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, eris.Wrap(err, "catalog: decode table")
	}
	if err := validate(t.Providers); err != nil {
		return nil, err
	}
	return &Catalog{providers: t.Providers}, nil
}

func validate(providers []Provider) error {
	if len(providers) == 0 {
		return eris.New("catalog: table has no providers")
	}
	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		if p.Name == "" {
			return eris.New("catalog: provider without a name")
		}
		if seen[p.Name] {
			return eris.Errorf("catalog: duplicate provider %q", p.Name)
		}
		seen[p.Name] = true

		if p.Rating < 1 || p.Rating > 5 {
			return eris.Errorf("catalog: %s: rating %.1f outside 1..5", p.Name, p.Rating)
		}
		if p.PayoutRate < 0 || p.PayoutRate > 100 {
			return eris.Errorf("catalog: %s: payout rate %d outside 0..100", p.Name, p.PayoutRate)
		}
		if p.Markup <= 1 {
			return eris.Errorf("catalog: %s: markup %.2f must be greater than 1", p.Name, p.Markup)
		}
		for code, price := range p.Prices {
			if !code.Valid() {
				return eris.Wrapf(ErrUnknownProduct, "catalog: %s: %q", p.Name, code)
			}
			if price.Base <= 0 {
				return eris.Errorf("catalog: %s/%s: base price must be positive", p.Name, code)
			}
			if len(price.PowerBands) > 0 && code != OSAGO {
				return eris.Errorf("catalog: %s/%s: power bands only apply to osago", p.Name, code)
			}
			for band, amount := range price.PowerBands {
				if !band.Valid() {
					return eris.Wrapf(ErrUnknownPowerBand, "catalog: %s/%s: %q", p.Name, code, band)
				}
				if amount <= 0 {
					return eris.Errorf("catalog: %s/%s: band %s amount must be positive", p.Name, code, band)
				}
			}
		}
	}
	return nil
}

// Providers returns a copy of the providers in table order.
func (c *Catalog) Providers() []Provider {
	return slices.Clone(c.providers)
}

// Price returns the marked-up price of product at the named provider. The
// band is only consulted for OSAGO; a band the provider does not price falls
// back to the base amount. ok is false when the provider does not carry the
// product.
func (c *Catalog) Price(provider string, product ProductCode, band PowerBand) (price int, ok bool) {
	for _, p := range c.providers {
		if p.Name == provider {
			return priceFor(p, product, band)
		}
	}
	return 0, false
}

// ComputeOffers prices product at every provider that carries it and returns
// the offers sorted by ascending price. Ties keep table order. A product no
// provider carries yields an empty slice.
func (c *Catalog) ComputeOffers(product ProductCode, band PowerBand) []Offer {
	offers := make([]Offer, 0, len(c.providers))
	for _, p := range c.providers {
		price, ok := priceFor(p, product, band)
		if !ok {
			continue
		}
		offers = append(offers, Offer{Provider: p, Price: price})
	}
	slices.SortStableFunc(offers, func(a, b Offer) int {
		return a.Price - b.Price
	})
	return offers
}

func priceFor(p Provider, product ProductCode, band PowerBand) (int, bool) {
	data, ok := p.Prices[product]
	if !ok {
		return 0, false
	}
	amount := data.Base
	if product == OSAGO && band != "" {
		if banded, ok := data.PowerBands[band]; ok {
			amount = banded
		}
	}
	return ApplyMarkup(amount, p.Markup), true
}

// ApplyMarkup multiplies amount by markup and rounds to whole rubles, half
// away from zero. The product is first settled to kopecks so that float noise
// in the markup cannot move an exact half down.
func ApplyMarkup(amount int, markup float64) int {
	kopecks := math.Round(float64(amount) * markup * 100)
	return int(math.Round(kopecks / 100))
}
