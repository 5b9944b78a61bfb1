package mapping

import "fmt"

// Language identifies which language owns a region of an authored document.
type Language int

const (
	// LanguageHost is the .gsx markup itself: anything not covered by a mapping.
	LanguageHost Language = iota
	// LanguageGo covers embedded Go expressions and statements.
	LanguageGo
	// LanguageTailwind covers class attribute values.
	LanguageTailwind
)

// Languages lists every language that can own a generated document.
var Languages = []Language{LanguageGo, LanguageTailwind}

// String returns the language name used for routing and configuration.
func (l Language) String() string {
	switch l {
	case LanguageHost:
		return "gsx"
	case LanguageGo:
		return "go"
	case LanguageTailwind:
		return "tailwind"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

// ParseLanguage parses a language name as produced by String.
func ParseLanguage(name string) (Language, error) {
	switch name {
	case "gsx":
		return LanguageHost, nil
	case "go":
		return LanguageGo, nil
	case "tailwind":
		return LanguageTailwind, nil
	}
	return LanguageHost, fmt.Errorf("unknown language %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (l Language) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Language) UnmarshalText(b []byte) error {
	parsed, err := ParseLanguage(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
