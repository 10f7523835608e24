package lead

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/espasatel/espasatel/internal/catalog"
)

// Sources name the form a lead came from.
const (
	SourceCalculator = "Калькулятор страхования"
	SourceHelp       = "🆘 Кнопка «Получить помощь»"
	SourceConsult    = "Форма заявки (Консультации)"
	SourceEvacuation = "Форма вызова эвакуатора"
	SourceOSAGO      = "Форма ОСАГО"
)

// ErrUnknownOffer is returned by the calculator form when the chosen
// provider does not price the product.
var ErrUnknownOffer = eris.New("Выбранное предложение недоступно")

// Decoder reads a form body into a lead request.
type Decoder func(body io.Reader) (Request, error)

// DecodeRequest reads the raw lead fields.
func DecodeRequest(body io.Reader) (Request, error) {
	var req Request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return Request{}, eris.Wrap(err, "lead: decode request")
	}
	return req, nil
}

// RawForm reads the raw lead fields and fills in source when the form left it
// empty.
func RawForm(source string) Decoder {
	return func(body io.Reader) (Request, error) {
		req, err := DecodeRequest(body)
		if err != nil {
			return Request{}, err
		}
		if strings.TrimSpace(req.Source) == "" {
			req.Source = source
		}
		return req, nil
	}
}

type calculatorForm struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Product  string `json:"product"`
	Power    string `json:"power"`
	Provider string `json:"provider"`
}

// CalculatorForm prices the chosen provider from cat, so the relayed price is
// never taken from the client.
func CalculatorForm(cat *catalog.Catalog) Decoder {
	return func(body io.Reader) (Request, error) {
		var f calculatorForm
		if err := json.NewDecoder(body).Decode(&f); err != nil {
			return Request{}, eris.Wrap(err, "lead: decode calculator form")
		}
		product, err := catalog.ParseProduct(f.Product)
		if err != nil {
			return Request{}, eris.Wrapf(ErrUnknownOffer, "lead: product %q", f.Product)
		}
		band, err := catalog.ParsePowerBand(f.Power)
		if err != nil {
			return Request{}, eris.Wrapf(ErrUnknownOffer, "lead: power band %q", f.Power)
		}
		price, ok := cat.Price(f.Provider, product, band)
		if !ok {
			return Request{}, eris.Wrapf(ErrUnknownOffer, "lead: %s at %q", product, f.Provider)
		}
		offer := catalog.Offer{Provider: catalog.Provider{Name: f.Provider}, Price: price}
		return CalculatorLead(f.Name, f.Phone, product, offer), nil
	}
}

// CalculatorLead builds the request sent when a visitor picks an offer in
// the price calculator.
func CalculatorLead(name, phone string, product catalog.ProductCode, offer catalog.Offer) Request {
	return Request{
		Name:    name,
		Phone:   phone,
		Service: product.Title() + " — " + offer.Provider.Name,
		Desc:    "Выбранная цена: " + catalog.FormatRUB(offer.Price) + "/год",
		Source:  SourceCalculator,
	}
}

type helpForm struct {
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Selected []string `json:"selected"`
	Desc     string   `json:"desc"`
}

// DecodeHelp reads the emergency help dialog.
func DecodeHelp(body io.Reader) (Request, error) {
	var f helpForm
	if err := json.NewDecoder(body).Decode(&f); err != nil {
		return Request{}, eris.Wrap(err, "lead: decode help form")
	}
	return HelpLead(f.Name, f.Phone, f.Selected, f.Desc), nil
}

// HelpLead builds the request from the emergency help dialog. With nothing
// selected the service reads "Срочная помощь".
func HelpLead(name, phone string, selected []string, desc string) Request {
	service := strings.Join(selected, ", ")
	if service == "" {
		service = "Срочная помощь"
	}
	return Request{Name: name, Phone: phone, Service: service, Desc: desc, Source: SourceHelp}
}

// Evacuation is the tow truck order form.
type Evacuation struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	Street   string `json:"street"`
	Building string `json:"building"`
	Landmark string `json:"landmark"`
	Reason   string `json:"reason"`
	CarType  string `json:"car_type"`
	CarBrand string `json:"car_brand"`
	Comment  string `json:"comment"`
}

// DecodeEvacuation reads the tow truck order form.
func DecodeEvacuation(body io.Reader) (Request, error) {
	var e Evacuation
	if err := json.NewDecoder(body).Decode(&e); err != nil {
		return Request{}, eris.Wrap(err, "lead: decode evacuation form")
	}
	return e.Lead(), nil
}

// Lead flattens the order into a single description line.
func (e Evacuation) Lead() Request {
	addr := []string{e.City, "ул. " + e.Street}
	if e.Building != "" {
		addr = append(addr, "д. "+e.Building)
	}
	if e.Landmark != "" {
		addr = append(addr, "("+e.Landmark+")")
	}

	parts := []string{"Адрес: " + strings.Join(addr, ", ")}
	for _, f := range []struct{ label, value string }{
		{"Причина", e.Reason},
		{"Тип авто", e.CarType},
		{"Марка", e.CarBrand},
		{"Комментарий", e.Comment},
	} {
		if f.value != "" {
			parts = append(parts, f.label+": "+f.value)
		}
	}

	return Request{
		Name:    e.Name,
		Phone:   e.Phone,
		Service: "🚛 Вызов эвакуатора",
		Desc:    strings.Join(parts, " | "),
		Source:  SourceEvacuation,
	}
}
