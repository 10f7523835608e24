package catalog

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ruPrinter = message.NewPrinter(language.Russian)

// FormatRUB renders a ruble amount with Russian digit grouping, e.g. "8 640 ₽".
func FormatRUB(amount int) string {
	return ruPrinter.Sprintf("%d ₽", amount)
}
