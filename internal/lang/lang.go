// Package lang defines the fixed set of languages the chat assistant can
// answer in. Selection is pure UI state; nothing here is persisted.
package lang

// Language is one selectable reply language.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

// Supported lists every selectable language, English first.
var Supported = []Language{
	{Code: "en", Name: "English", NativeName: "English"},
	{Code: "es", Name: "Spanish", NativeName: "Español"},
	{Code: "fr", Name: "French", NativeName: "Français"},
	{Code: "de", Name: "German", NativeName: "Deutsch"},
	{Code: "pt", Name: "Portuguese", NativeName: "Português"},
	{Code: "hi", Name: "Hindi", NativeName: "हिन्दी"},
	{Code: "zh", Name: "Chinese", NativeName: "中文"},
	{Code: "ja", Name: "Japanese", NativeName: "日本語"},
	{Code: "ar", Name: "Arabic", NativeName: "العربية"},
}

// Default returns the default language (English).
func Default() Language {
	return Supported[0]
}

// Lookup returns the language for a code, or (Default(), false) for an
// unknown code.
func Lookup(code string) (Language, bool) {
	for _, l := range Supported {
		if l.Code == code {
			return l, true
		}
	}
	return Default(), false
}
