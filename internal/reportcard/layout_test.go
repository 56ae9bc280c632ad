package reportcard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLayoutFatherNameUsesMedium(t *testing.T) {
	assert.Equal(t, FontMedium, DefaultLayout.FatherName.Font)
}

func TestLayoutTextsOrder(t *testing.T) {
	v := values{
		translatedName: "आशा",
		englishName:    "Asha",
		dateOfBirth:    "17/05/1990",
		identifier:     "1234 5678 9012",
		fatherName:     "Ravi",
	}
	got := DefaultLayout.texts(v)
	want := []string{"आशा", "Asha", "17/05/1990", "1234 5678 9012", "1234 5678 9012", "Ravi"}

	texts := make([]string, len(got))
	for i, p := range got {
		texts[i] = p.text
	}
	assert.Equal(t, want, texts)
	assert.Equal(t, FontHindi, got[0].field.Font)
	assert.Equal(t, FontBold, got[3].field.Font)
	assert.Equal(t, got[3].field.Font, got[4].field.Font)
}

func TestFontFamiliesDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range []FontRole{FontHindi, FontBold, FontMedium} {
		f := r.family()
		assert.False(t, seen[f], f)
		seen[f] = true
	}
}
