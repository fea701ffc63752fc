package assistant

import "github.com/mikrogrup/itbot/backend/internal/i18n"

// Profile captures the assistant branding exposed to the frontend.
type Profile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	OpeningLine string `json:"openingLine"`
	Vendor      string `json:"vendor"`
}

// Default returns the ITBOT profile rendered in the language of loc.
func Default(loc *i18n.Localizer) Profile {
	return Profile{
		ID:          "itbot",
		Name:        "Mikrogrup ITBOT",
		Title:       loc.Text(i18n.AssistantTitle),
		OpeningLine: loc.Text(i18n.AssistantGreeting),
		Vendor:      "TeamSystem & Mikrogrup",
	}
}
