package triage

import "github.com/rotisserie/eris"

// Answers holds the raw questionnaire values as posted by the form.
type Answers struct {
	Injuries string `json:"injuries"` // "yes" | "no"
	Vehicles string `json:"vehicles"` // "two" | "more"
	Insured  string `json:"insured"`  // "yes" | "no"
	Disputed string `json:"disputed"` // "yes" | "no"
}

// Facts validates the answers and converts them into a FactSet. Every field
// must be present.
func (a Answers) Facts() (FactSet, error) {
	var f FactSet
	var err error

	if f.HasInjuries, err = yesNo("injuries", a.Injuries); err != nil {
		return FactSet{}, err
	}
	switch a.Vehicles {
	case "two":
		f.Vehicles = TwoVehicles
	case "more":
		f.Vehicles = ThreeOrMore
	default:
		return FactSet{}, eris.Wrapf(ErrInvalidAnswer, "vehicles: %q", a.Vehicles)
	}
	if f.AllInsured, err = yesNo("insured", a.Insured); err != nil {
		return FactSet{}, err
	}
	if f.Disputed, err = yesNo("disputed", a.Disputed); err != nil {
		return FactSet{}, err
	}
	return f, nil
}

func yesNo(field, v string) (bool, error) {
	switch v {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, eris.Wrapf(ErrInvalidAnswer, "%s: %q", field, v)
}
