package lead

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

var moscow = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		panic(err)
	}
	return loc
}()

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// FormatMoscow renders t as "05 марта, 14:07" in Moscow time.
func FormatMoscow(t time.Time) string {
	t = t.In(moscow)
	return fmt.Sprintf("%02d %s, %02d:%02d", t.Day(), monthsGenitive[t.Month()-1], t.Hour(), t.Minute())
}

// Message renders the Markdown notification for a sanitised request. Optional
// fields are omitted when empty.
func Message(r Request, at time.Time) string {
	lines := []string{
		"🆕 *Новая заявка — Е-Спасатель*",
		"👤 *Имя:* " + r.Name,
		"📞 *Телефон:* " + r.Phone,
	}
	if r.Service != "" {
		lines = append(lines, "🔧 *Услуга:* "+r.Service)
	}
	if r.Desc != "" {
		lines = append(lines, "📝 *Описание:* "+r.Desc)
	}
	if r.Source != "" {
		lines = append(lines, "📍 *Источник:* "+r.Source)
	}
	lines = append(lines, "🕐 "+FormatMoscow(at)+" (МСК)")
	return strings.Join(lines, "\n")
}
