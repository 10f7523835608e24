// Package triage decides whether a road accident can be settled with the
// simplified accident report (europrotocol) and lists what to do next.
package triage

import (
	"github.com/rotisserie/eris"
)

// ErrInvalidAnswer is returned when a questionnaire answer is missing or not
// one of the accepted values.
var ErrInvalidAnswer = eris.New("triage: invalid answer")

// VehicleCount is the number of vehicles involved.
type VehicleCount int

const (
	TwoVehicles VehicleCount = iota + 1
	ThreeOrMore
)

func (v VehicleCount) String() string {
	switch v {
	case TwoVehicles:
		return "two"
	case ThreeOrMore:
		return "more"
	default:
		return "unknown"
	}
}

// FactSet is the complete set of answers about one accident.
type FactSet struct {
	HasInjuries bool
	Vehicles    VehicleCount
	AllInsured  bool
	Disputed    bool
}

// Step is one instruction in the checklist.
type Step struct {
	Order    int    `json:"order"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
}

// Result is the outcome of Classify.
type Result struct {
	SimplifiedProcedure bool   `json:"simplified_procedure"`
	Steps               []Step `json:"steps"`
}

// Classify applies the europrotocol eligibility rule: no injuries, exactly two
// vehicles, everyone insured and no dispute. Anything else requires the
// traffic police.
func Classify(f FactSet) Result {
	if !f.HasInjuries && f.Vehicles == TwoVehicles && f.AllInsured && !f.Disputed {
		return Result{SimplifiedProcedure: true, Steps: simplifiedSteps()}
	}
	return Result{SimplifiedProcedure: false, Steps: policeSteps(f.HasInjuries)}
}

func simplifiedSteps() []Step {
	return numbered([]Step{
		{Category: "БЕЗОПАСНОСТЬ", Title: "Включите аварийку и выставьте знак",
			Detail: "Аварийная сигнализация — сразу. Знак — не менее 15 м в населённом пункте, 30 м вне его."},
		{Category: "ДОКУМЕНТЫ", Title: "Снимите место ДТП на фото/видео",
			Detail: "Снимайте со всех углов: расположение ТС, повреждения, следы торможения, разметку, знаки."},
		{Category: "ОБМЕН ДАННЫМИ", Title: "Обменяйтесь данными с участником",
			Detail: "ФИО, телефон, госномер, серия и номер полиса ОСАГО. Запишите данные свидетелей."},
		{Category: "ЕВРОПРОТОКОЛ", Title: "Заполните извещение о ДТП",
			Detail: "Оба участника заполняют одно извещение. Подписи обоих обязательны. Не оставляйте пустых граф."},
		{Category: "СТРАХОВАНИЕ", Title: "Уведомите страховую немедленно",
			Detail: "Позвоните в вашу страховую. Срок подачи заявления — 5 рабочих дней. Авто не ремонтировать."},
	})
}

func policeSteps(injuries bool) []Step {
	emergency := "Вызовите ГИБДД по номеру 102 или через приложение."
	if injuries {
		emergency = "⚠️ ЕСТЬ ПОСТРАДАВШИЕ — 103 (скорая) и 102 (полиция) немедленно!"
	}
	return numbered([]Step{
		{Category: "ЭКСТРЕННЫЕ СЛУЖБЫ", Title: "Вызовите ГИБДД, скорую (при необходимости)",
			Detail: emergency},
		{Category: "БЕЗОПАСНОСТЬ", Title: "Аварийка и знак аварийной остановки",
			Detail: "Включите аварийку. Знак — 15 м (город) / 30 м (трасса). Не перемещайте ТС."},
		{Category: "ФОТОФИКСАЦИЯ", Title: "Зафиксируйте место ДТП",
			Detail: "Сфотографируйте ТС, повреждения, следы, знаки, разметку. Снимите видео с регистратора."},
		{Category: "ОБМЕН ДАННЫМИ", Title: "Запишите данные всех участников",
			Detail: "ФИО, телефон, ВУ, госномер, полис ОСАГО. Запишите очевидцев. Не подписывайте ничего до ГИБДД."},
		{Category: "ДОКУМЕНТЫ", Title: "Оформите документы с инспектором",
			Detail: "Проверьте протокол. Если не согласны — укажите разногласия. Получите справку о ДТП и постановление."},
		{Category: "СТРАХОВАНИЕ", Title: "Обратитесь в страховую (до 5 дней)",
			Detail: "Уведомите свою страховую компанию. Не ремонтируйте ТС до осмотра страховщиком. Срок — 5 рабочих дней."},
	})
}

func numbered(steps []Step) []Step {
	for i := range steps {
		steps[i].Order = i + 1
	}
	return steps
}
