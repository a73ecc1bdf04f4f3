package core

// Color is a category badge color from a fixed palette.
type Color string

const (
	Red    Color = "red"
	Orange Color = "orange"
	Yellow Color = "yellow"
	Green  Color = "green"
	Teal   Color = "teal"
	Blue   Color = "blue"
	Indigo Color = "indigo"
	Purple Color = "purple"
	Pink   Color = "pink"
	Gray   Color = "gray"

	DefaultColor = Gray
)

// Palette is the full set of category colors in display order.
var Palette = []Color{Red, Orange, Yellow, Green, Teal, Blue, Indigo, Purple, Pink, Gray}

func (c Color) Valid() bool {
	for _, p := range Palette {
		if c == p {
			return true
		}
	}
	return false
}

// ColorOrDefault maps the empty color to DefaultColor.
func ColorOrDefault(c Color) Color {
	if c == "" {
		return DefaultColor
	}
	return c
}

func colorNames() []string {
	out := make([]string, len(Palette))
	for i, c := range Palette {
		out[i] = string(c)
	}
	return out
}
