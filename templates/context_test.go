package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiateLocaleQueryWins(t *testing.T) {
	locale := NegotiateLocale(NegotiationInput{Query: "fr", Cookie: "de", Default: "en"})
	assert.Equal(t, "fr", locale)
}

func TestNegotiateLocaleFallsBackToCookie(t *testing.T) {
	locale := NegotiateLocale(NegotiationInput{Cookie: "de", Default: "en"})
	assert.Equal(t, "de", locale)
}

func TestNegotiateLocaleAcceptLanguage(t *testing.T) {
	locale := NegotiateLocale(NegotiationInput{
		AcceptLanguage: "fr;q=0.8, en;q=0.9, de;q=1.0",
		Supported:      []string{"en", "fr"},
		Default:        "en",
	})
	assert.Equal(t, "en", locale)
}

func TestNegotiateLocaleDefaultWhenNothingMatches(t *testing.T) {
	locale := NegotiateLocale(NegotiationInput{
		AcceptLanguage: "ja;q=1.0",
		Supported:      []string{"en", "fr"},
		Default:        "en",
	})
	assert.Equal(t, "en", locale)
}

func TestNegotiateThemeExplicitBeatsSession(t *testing.T) {
	theme := NegotiateTheme(NegotiationInput{
		Query:      "corporate",
		SessionBag: "minimal",
		Default:    "base",
	})
	assert.Equal(t, "corporate", theme)
}

func TestNegotiateThemeSessionBeatsActiveDefault(t *testing.T) {
	theme := NegotiateTheme(NegotiationInput{
		SessionBag: "minimal",
		Default:    "base",
	})
	assert.Equal(t, "minimal", theme)
}

func TestNegotiateThemeFallsBackToActive(t *testing.T) {
	theme := NegotiateTheme(NegotiationInput{Default: "base"})
	assert.Equal(t, "base", theme)
}
