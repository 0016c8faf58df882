package tts

import (
	"sort"
	"strings"
)

// Language is a speakable language.
type Language struct {
	Code string
	Name string
}

// languages lists what Google Translate TTS speaks, keyed by lowercase code.
var languages = func() map[string]Language {
	list := []Language{
		{"af", "Afrikaans"}, {"ar", "Arabic"}, {"bg", "Bulgarian"},
		{"bn", "Bengali"}, {"bs", "Bosnian"}, {"ca", "Catalan"},
		{"cs", "Czech"}, {"cy", "Welsh"}, {"da", "Danish"},
		{"de", "German"}, {"el", "Greek"}, {"en", "English"},
		{"eo", "Esperanto"}, {"es", "Spanish"}, {"et", "Estonian"},
		{"fi", "Finnish"}, {"fr", "French"}, {"gu", "Gujarati"},
		{"hi", "Hindi"}, {"hr", "Croatian"}, {"hu", "Hungarian"},
		{"hy", "Armenian"}, {"id", "Indonesian"}, {"is", "Icelandic"},
		{"it", "Italian"}, {"iw", "Hebrew"}, {"ja", "Japanese"},
		{"jw", "Javanese"}, {"km", "Khmer"}, {"kn", "Kannada"},
		{"ko", "Korean"}, {"la", "Latin"}, {"lv", "Latvian"},
		{"mk", "Macedonian"}, {"ml", "Malayalam"}, {"mr", "Marathi"},
		{"my", "Myanmar (Burmese)"}, {"ne", "Nepali"}, {"nl", "Dutch"},
		{"no", "Norwegian"}, {"pl", "Polish"}, {"pt", "Portuguese"},
		{"ro", "Romanian"}, {"ru", "Russian"}, {"si", "Sinhala"},
		{"sk", "Slovak"}, {"sq", "Albanian"}, {"sr", "Serbian"},
		{"su", "Sundanese"}, {"sv", "Swedish"}, {"sw", "Swahili"},
		{"ta", "Tamil"}, {"te", "Telugu"}, {"th", "Thai"},
		{"tl", "Filipino"}, {"tr", "Turkish"}, {"uk", "Ukrainian"},
		{"ur", "Urdu"}, {"vi", "Vietnamese"},
		{"zh-CN", "Chinese (Simplified)"}, {"zh-TW", "Chinese (Traditional)"},
	}

	m := make(map[string]Language, len(list))
	for _, l := range list {
		m[strings.ToLower(l.Code)] = l
	}
	return m
}()

// aliases maps common codes to the ones gTTS expects.
var aliases = map[string]string{
	"he":  "iw",
	"zh":  "zh-cn",
	"nb":  "no",
	"fil": "tl",
}

// NormalizeLanguage returns the canonical code for lang. Region suffixes
// are dropped when only the base language is known ("en-US" becomes "en").
func NormalizeLanguage(lang string) (string, bool) {
	code := strings.ToLower(strings.TrimSpace(lang))
	code = strings.ReplaceAll(code, "_", "-")
	if code == "" {
		return "", false
	}

	if l, ok := lookupLanguage(code); ok {
		return l.Code, true
	}
	if base, _, found := strings.Cut(code, "-"); found {
		if l, ok := lookupLanguage(base); ok {
			return l.Code, true
		}
	}
	return "", false
}

func lookupLanguage(code string) (Language, bool) {
	if alias, ok := aliases[code]; ok {
		code = alias
	}
	l, ok := languages[code]
	return l, ok
}

// LanguageName returns the English name of lang, or lang itself when
// unknown.
func LanguageName(lang string) string {
	code, ok := NormalizeLanguage(lang)
	if !ok {
		return lang
	}
	return languages[strings.ToLower(code)].Name
}

// Languages returns every supported language sorted by code.
func Languages() []Language {
	out := make([]Language, 0, len(languages))
	for _, l := range languages {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
