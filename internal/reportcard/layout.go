package reportcard

// FontRole selects one of the three embedded fonts.
type FontRole int

const (
	FontHindi FontRole = iota
	FontBold
	FontMedium
)

func (r FontRole) family() string {
	switch r {
	case FontHindi:
		return "reportcard-hindi"
	case FontBold:
		return "reportcard-bold"
	default:
		return "reportcard-medium"
	}
}

// TextField places one line of text. X and Y are the baseline origin in
// PDF user space: points, origin at the bottom-left corner of the page.
type TextField struct {
	X, Y float64
	Size float64
	Font FontRole
}

// Rect is a rectangle in PDF user space, X and Y being its lower-left
// corner.
type Rect struct {
	X, Y, W, H float64
}

// Layout is the fixed position table for the report card template.
type Layout struct {
	Photo           Rect
	TranslatedName  TextField
	EnglishName     TextField
	DateOfBirth     TextField
	IdentifierFront TextField
	IdentifierBack  TextField
	FatherName      TextField
}

// DefaultLayout matches the artwork of the stock template.
var DefaultLayout = Layout{
	Photo:           Rect{X: 43, Y: 570, W: 120, H: 140},
	TranslatedName:  TextField{X: 190, Y: 700, Size: 12, Font: FontHindi},
	EnglishName:     TextField{X: 190, Y: 683, Size: 12, Font: FontMedium},
	DateOfBirth:     TextField{X: 290, Y: 662, Size: 15, Font: FontMedium},
	IdentifierFront: TextField{X: 180, Y: 480, Size: 25, Font: FontBold},
	IdentifierBack:  TextField{X: 190, Y: 105, Size: 25, Font: FontBold},
	FatherName:      TextField{X: 50, Y: 310, Size: 12, Font: FontMedium},
}

type placedText struct {
	field TextField
	text  string
}

// texts returns the six text placements in drawing order.
func (l Layout) texts(v values) []placedText {
	return []placedText{
		{l.TranslatedName, v.translatedName},
		{l.EnglishName, v.englishName},
		{l.DateOfBirth, v.dateOfBirth},
		{l.IdentifierFront, v.identifier},
		{l.IdentifierBack, v.identifier},
		{l.FatherName, v.fatherName},
	}
}
