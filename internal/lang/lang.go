// Package lang normalizes the free-form language names and tags that users
// and language models produce to one of the supported BCP 47 tags.
package lang

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Default is used when nothing better can be determined.
const Default = "en"

// Supported lists the interface languages, in preference order.
var Supported = []language.Tag{
	language.English,
	language.French,
	language.Spanish,
	language.Arabic,
}

var matcher = language.NewMatcher(Supported)

// Normalize maps s to a supported base tag such as "fr". It accepts tags
// ("fr-CA", "ES"), English names ("French") and self names ("Français").
// The second result is false when s could not be recognized.
func Normalize(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Default, false
	}
	if tag, err := language.Parse(s); err == nil {
		if _, idx, conf := matcher.Match(tag); conf != language.No {
			return baseOf(Supported[idx]), true
		}
		return Default, false
	}
	for _, tag := range Supported {
		if strings.EqualFold(display.English.Languages().Name(tag), s) ||
			strings.EqualFold(display.Self.Name(tag), s) {
			return baseOf(tag), true
		}
	}
	return Default, false
}

// Name returns the English display name of a supported tag.
func Name(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	return display.English.Languages().Name(t)
}

func baseOf(t language.Tag) string {
	b, _ := t.Base()
	return b.String()
}
