// Package lead accepts contact requests from the site forms and relays them
// to the operators' Telegram chat.
package lead

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// Field limits in runes, applied before markup characters are stripped.
const (
	MaxName    = 80
	MaxPhone   = 24
	MaxService = 120
	MaxDesc    = 500
	MaxSource  = 120
)

// ErrMissingFields is returned when name or phone is empty after sanitising.
// Its text is shown to the visitor.
var ErrMissingFields = eris.New("Не заполнены обязательные поля")

// Request is a lead as posted by a form.
type Request struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Service string `json:"service,omitempty"`
	Desc    string `json:"desc,omitempty"`
	Source  string `json:"source,omitempty"`
}

// Sanitize returns a copy with every field truncated, stripped of Markdown
// control characters and trimmed.
func (r Request) Sanitize() Request {
	return Request{
		Name:    sanitize(r.Name, MaxName),
		Phone:   sanitize(r.Phone, MaxPhone),
		Service: sanitize(r.Service, MaxService),
		Desc:    sanitize(r.Desc, MaxDesc),
		Source:  sanitize(r.Source, MaxSource),
	}
}

// Validate checks the required fields of a sanitised request.
func (r Request) Validate() error {
	if r.Name == "" || r.Phone == "" {
		return ErrMissingFields
	}
	return nil
}

var markup = strings.NewReplacer("*", "", "_", "", "`", "", "[", "", "]", "", "(", "", ")", "", "#", "")

func sanitize(s string, limit int) string {
	s = norm.NFC.String(s)
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit])
	}
	return strings.TrimSpace(markup.Replace(s))
}
