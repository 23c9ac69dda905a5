package quran

import "strings"

// Edition is a selectable translation or recitation.
type Edition struct {
	Code  string
	Label string
}

var TranslationEditions = []Edition{
	{"en.asad", "English (Asad)"},
	{"en.pickthall", "English (Pickthall)"},
	{"fr.hamidullah", "French (Hamidullah)"},
	{"ur.maududi", "Urdu (Maududi)"},
	{"es.bornez", "Spanish (Bornez)"},
	{"de.aburida", "German (Abu Rida)"},
	{"tr.yazir", "Turkish (Yazir)"},
}

var AudioEditions = []Edition{
	{"ar.alafasy", "Mishary Alafasy"},
	{"ar.abdulsamad", "Abdul Rahman Al-Sudais"},
	{"ar.husary", "Mahmoud Khalil Al-Husary"},
	{"ar.mahermuaiqly", "Maher Al Muaiqly"},
}

var languages = map[string]string{
	"en": "English",
	"ur": "Urdu",
	"fr": "French",
	"es": "Spanish",
	"de": "German",
	"tr": "Turkish",
	"ar": "Arabic",
}

// LanguageName maps an edition code such as "fr.hamidullah" to the name of
// its language. Unknown prefixes are returned upper-cased.
func LanguageName(edition string) string {
	prefix, _, _ := strings.Cut(edition, ".")
	if name, ok := languages[prefix]; ok {
		return name
	}
	return strings.ToUpper(prefix)
}

// ReciterName maps an audio edition code to the reciter's name, falling back
// to the code itself.
func ReciterName(edition string) string {
	for _, e := range AudioEditions {
		if e.Code == edition {
			return e.Label
		}
	}
	return edition
}

// NextEdition returns the edition after current in list, wrapping around.
func NextEdition(list []Edition, current string) Edition {
	for i, e := range list {
		if e.Code == current {
			return list[(i+1)%len(list)]
		}
	}
	return list[0]
}

// ValidEdition reports whether code is a plausible edition identifier such
// as "en.asad" or "quran-uthmani".
func ValidEdition(code string) bool {
	if code == "" || strings.HasPrefix(code, ".") || strings.HasSuffix(code, ".") {
		return false
	}
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Editions selects the text, translation and recitation a chapter is
// fetched with.
type Editions struct {
	Text        string `yaml:"text" json:"text"`
	Translation string `yaml:"translation" json:"translation"`
	Audio       string `yaml:"audio" json:"audio"`
}
