// Package numfmt formats simulation counts for the user's locale, so that
// totals in the millions stay readable in command output.
package numfmt

import (
	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Fallback is the language used when the system locale is unknown.
var Fallback = language.AmericanEnglish

// New returns a printer for tag.
func New(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// Default returns a printer for the first system locale that parses, or for
// Fallback.
func Default() *message.Printer {
	return New(Detect())
}

// Detect returns the preferred system language.
func Detect() language.Tag {
	locales, err := locale.GetLocales()
	if err != nil {
		return Fallback
	}
	return Pick(locales)
}

// Pick returns the first of locales that parses as a BCP 47 tag.
func Pick(locales []string) language.Tag {
	for _, l := range locales {
		if tag, err := language.Parse(l); err == nil {
			return tag
		}
	}
	return Fallback
}
