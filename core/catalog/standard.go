package catalog

import "fortify/model"

// Rudiment families used for the standard set.
const (
	CategoryRoll   = "Roll Rudiments"
	CategoryDiddle = "Diddle Rudiments"
	CategoryFlam   = "Flam Rudiments"
	CategoryDrag   = "Drag Rudiments"
	CategoryCustom = "Custom"
)

var standardNames = []struct {
	category string
	names    []string
}{
	{CategoryRoll, []string{
		"Single Stroke Roll",
		"Single Stroke Four",
		"Single Stroke Seven",
		"Multiple Bounce Roll",
		"Triple Stroke Roll",
		"Double Stroke Open Roll",
		"Five Stroke Roll",
		"Six Stroke Roll",
		"Seven Stroke Roll",
		"Nine Stroke Roll",
		"Ten Stroke Roll",
		"Eleven Stroke Roll",
		"Thirteen Stroke Roll",
		"Fifteen Stroke Roll",
		"Seventeen Stroke Roll",
	}},
	{CategoryDiddle, []string{
		"Single Paradiddle",
		"Double Paradiddle",
		"Triple Paradiddle",
		"Paradiddle-Diddle",
	}},
	{CategoryFlam, []string{
		"Flam",
		"Flam Accent",
		"Flam Tap",
		"Flamacue",
		"Flam Paradiddle",
		"Single Flammed Mill",
		"Flam Paradiddle-Diddle",
		"Pataflafla",
		"Swiss Army Triplet",
		"Inverted Flam Tap",
		"Flam Drag",
	}},
	{CategoryDrag, []string{
		"Drag",
		"Single Drag Tap",
		"Double Drag Tap",
		"Lesson 25",
		"Single Dragadiddle",
		"Drag Paradiddle #1",
		"Drag Paradiddle #2",
		"Single Ratamacue",
		"Double Ratamacue",
		"Triple Ratamacue",
	}},
}

// StandardRudiments returns a fresh copy of the shared rudiment set.
func StandardRudiments() []model.Rudiment {
	var out []model.Rudiment
	for _, group := range standardNames {
		for _, name := range group.names {
			out = append(out, model.Rudiment{
				Name:           name,
				Category:       group.category,
				TempoIncrement: model.DefaultTempoIncrement,
				IsStandard:     true,
			})
		}
	}
	return out
}
