// Package i18n holds the user-facing strings of the service and picks a language per request.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	AssistantTitle        = "assistant.title"
	AssistantGreeting     = "assistant.greeting"
	TechnicalDifficulty   = "chat.technical_difficulty"
	ComposerPlaceholder   = "chat.placeholder"
	ComposerSend          = "chat.send"
	LoginWelcome          = "login.welcome"
	LoginSubtitle         = "login.subtitle"
	LoginButton           = "login.button"
	LoginFooter           = "login.footer"
	SignInFailed          = "signin.failed"
	SignInCancelled       = "signin.cancelled"
	SignInConsentRequired = "signin.consent_required"
	SignInInvalidState    = "signin.invalid_state"
	Logout                = "logout"
)

var supported = []language.Tag{language.Turkish, language.English}

var matcher = language.NewMatcher(supported)

var entries = map[string]map[language.Tag]string{
	AssistantTitle: {
		language.Turkish: "TeamSystem Destekli AI Asistan",
		language.English: "TeamSystem-powered AI assistant",
	},
	AssistantGreeting: {
		language.Turkish: "Merhaba! Ben Mikrogrup ITBOT, TeamSystem destekli AI asistanınızım. Size nasıl yardımcı olabilirim?",
		language.English: "Hello! I am Mikrogrup ITBOT, your TeamSystem-powered AI assistant. How can I help you?",
	},
	TechnicalDifficulty: {
		language.Turkish: "Üzgünüm, şu anda bir teknik sorun yaşıyorum. Lütfen daha sonra tekrar deneyin.",
		language.English: "Sorry, I am having a technical problem right now. Please try again later.",
	},
	ComposerPlaceholder: {
		language.Turkish: "Mesajınızı yazın...",
		language.English: "Type your message...",
	},
	ComposerSend: {
		language.Turkish: "Gönder",
		language.English: "Send",
	},
	LoginWelcome: {
		language.Turkish: "Hoş Geldiniz",
		language.English: "Welcome",
	},
	LoginSubtitle: {
		language.Turkish: "Azure Active Directory hesabınızla giriş yapın",
		language.English: "Sign in with your Azure Active Directory account",
	},
	LoginButton: {
		language.Turkish: "Azure AD ile Giriş Yap",
		language.English: "Sign in with Azure AD",
	},
	LoginFooter: {
		language.Turkish: "Azure Active Directory ile korunmaktadır",
		language.English: "Protected by Azure Active Directory",
	},
	SignInFailed: {
		language.Turkish: "Giriş başarısız oldu. Lütfen tekrar deneyin.",
		language.English: "Login failed. Please try again.",
	},
	SignInCancelled: {
		language.Turkish: "Giriş iptal edildi.",
		language.English: "Sign-in was cancelled.",
	},
	SignInConsentRequired: {
		language.Turkish: "Bu uygulama için yönetici onayı gerekiyor. Lütfen BT ekibinizle iletişime geçin.",
		language.English: "This application requires consent. Please contact your IT team.",
	},
	SignInInvalidState: {
		language.Turkish: "Giriş oturumunun süresi doldu. Lütfen tekrar deneyin.",
		language.English: "The sign-in attempt expired. Please try again.",
	},
	Logout: {
		language.Turkish: "Çıkış",
		language.English: "Logout",
	},
}

var builder = newBuilder()

func newBuilder() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.Turkish))
	for key, translations := range entries {
		for tag, text := range translations {
			if err := b.SetString(tag, key, text); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Localizer renders message keys in a single language.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Localizer for tag, which should be one of the supported languages.
func New(tag language.Tag) *Localizer {
	return &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(builder)),
	}
}

// Tag returns the language of the Localizer.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// Text renders key.
func (l *Localizer) Text(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Parse resolves a configured locale such as "tr" or "en-US" to a supported language,
// defaulting to Turkish.
func Parse(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.Turkish
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return language.Turkish
	}
	return supported[index]
}

// Match picks the best supported language for an Accept-Language header.
func Match(acceptLanguage string, fallback language.Tag) language.Tag {
	if acceptLanguage == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	return supported[index]
}
