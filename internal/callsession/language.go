package callsession

import "fmt"

// LanguageCode is a BCP-47 tag for one of the supported call languages.
type LanguageCode string

const (
	LanguageTelugu  LanguageCode = "te-IN"
	LanguageHindi   LanguageCode = "hi-IN"
	LanguageEnglish LanguageCode = "en-IN"
)

// IsValid reports whether l is a supported language code.
func (l LanguageCode) IsValid() bool {
	switch l {
	case LanguageTelugu, LanguageHindi, LanguageEnglish:
		return true
	}
	return false
}

// Language pairs a code with its display name and the DTMF digit that
// selects it from the phone menu.
type Language struct {
	Code  LanguageCode `json:"code"`
	Name  string       `json:"name"`
	Digit string       `json:"digit"`
}

// Menu order matches the spoken prompt: "press 1 for Telugu, ...".
var languages = []Language{
	{Code: LanguageTelugu, Name: "Telugu", Digit: "1"},
	{Code: LanguageHindi, Name: "Hindi", Digit: "2"},
	{Code: LanguageEnglish, Name: "English", Digit: "3"},
}

// ByDigit resolves the DTMF digit a caller pressed to its Language.
func ByDigit(digit string) (Language, error) {
	for _, l := range languages {
		if l.Digit == digit {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("callsession: invalid language digit %q; must be 1, 2, or 3", digit)
}

// ByCode resolves a language code string (e.g. from a stream URL path).
func ByCode(code string) (Language, error) {
	for _, l := range languages {
		if string(l.Code) == code {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("callsession: unsupported language code %q", code)
}

// Supported returns the selectable languages in menu order.
func Supported() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}
