package lead

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/espasatel/espasatel/internal/catalog"
)

var at = time.Date(2025, time.March, 5, 11, 7, 0, 0, time.UTC)

func TestFormatMoscow(t *testing.T) {
	assert.Equal(t, "05 марта, 14:07", FormatMoscow(at))
	assert.Equal(t, "01 января, 02:30", FormatMoscow(time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC)))
}

func TestMessage_AllFields(t *testing.T) {
	got := Message(Request{
		Name: "Иван", Phone: "+7 999", Service: "ОСАГО", Desc: "Срочно", Source: SourceOSAGO,
	}, at)

	want := strings.Join([]string{
		"🆕 *Новая заявка — Е-Спасатель*",
		"👤 *Имя:* Иван",
		"📞 *Телефон:* +7 999",
		"🔧 *Услуга:* ОСАГО",
		"📝 *Описание:* Срочно",
		"📍 *Источник:* Форма ОСАГО",
		"🕐 05 марта, 14:07 (МСК)",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestMessage_OmitsEmptyOptionalFields(t *testing.T) {
	got := Message(Request{Name: "Иван", Phone: "+7"}, at)
	assert.NotContains(t, got, "Услуга")
	assert.NotContains(t, got, "Описание")
	assert.NotContains(t, got, "Источник")
	assert.Len(t, strings.Split(got, "\n"), 4)
}

func TestCalculatorLead(t *testing.T) {
	offer := catalog.Offer{Provider: catalog.Provider{Name: "Ингосстрах"}, Price: 8640}
	got := CalculatorLead("Иван", "+7", catalog.OSAGO, offer)

	assert.Equal(t, "ОСАГО — Ингосстрах", got.Service)
	assert.True(t, strings.HasPrefix(got.Desc, "Выбранная цена: "))
	assert.True(t, strings.HasSuffix(got.Desc, "₽/год"))
	assert.Contains(t, got.Desc, catalog.FormatRUB(8640))
	assert.Equal(t, SourceCalculator, got.Source)
	assert.NoError(t, got.Sanitize().Validate())
}

func TestHelpLead(t *testing.T) {
	assert.Equal(t, "Срочная помощь", HelpLead("a", "b", nil, "").Service)
	assert.Equal(t, "Эвакуатор, Аварком", HelpLead("a", "b", []string{"Эвакуатор", "Аварком"}, "").Service)
}

func TestEvacuationLead(t *testing.T) {
	got := Evacuation{
		Name: "Иван", Phone: "+7", City: "Москва", Street: "Тверская", Building: "1",
		Reason: "ДТП", CarBrand: "Lada",
	}.Lead()

	assert.Equal(t, "🚛 Вызов эвакуатора", got.Service)
	assert.Equal(t, "Адрес: Москва, ул. Тверская, д. 1 | Причина: ДТП | Марка: Lada", got.Desc)
	assert.Equal(t, SourceEvacuation, got.Source)
}
