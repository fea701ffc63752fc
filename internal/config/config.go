package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Provider identifiers accepted by AI_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

const (
	defaultOpenAIModel   = "ft:gpt-3.5-turbo-0125:mikrogrup::Bz01EUG1"
	defaultClientID      = "e2169084-d5d5-4518-8269-5441b145cb8f"
	defaultTenantID      = "bb364f09-07cf-4eca-9b92-1f26a92d5f3f"
	defaultAuthorityHost = "https://login.microsoftonline.com"
	defaultGraphMe       = "https://graph.microsoft.com/v1.0/me"
)

// ChatModelFactory builds a provider-specific chat model. The OpenAI factory lives in the ai
// package and is injected to keep config free of service imports.
type ChatModelFactory func(ctx context.Context, cfg AIConfig) (model.BaseChatModel, error)

// Config aggregates every setting of the service.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Auth    AuthConfig
	Session SessionConfig
	Locale  LocaleConfig
}

// Load reads the configuration from environment variables once at start-up.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Auth:    auth,
		Session: session,
		Locale:  loadLocaleConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := parseListEnv("CORS_ALLOWED_ORIGINS")

	if strings.Contains(port, ":") {
		// ":8080" and "127.0.0.1:8080" are passed through.
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AIConfig describes the completion endpoint.
type AIConfig struct {
	Provider     string
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  float64
	MaxTokens    int
	HistoryLimit int
	Timeout      time.Duration
}

// Enabled reports whether the selected provider has the credentials it needs.
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderArk:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	default:
		return c.APIKey != ""
	}
}

// NewChatModel creates the chat model for the configured provider. openAI is used for the
// default provider; ark is built here as it only needs its own config struct.
func (c AIConfig) NewChatModel(ctx context.Context, openAI ChatModelFactory) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("completion credentials or model missing for provider %q", c.Provider)
	}

	switch c.Provider {
	case ProviderArk:
		temperature := float32(c.Temperature)
		maxTokens := c.MaxTokens
		chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, err
		}
		return chatModel, nil
	case ProviderOpenAI:
		if openAI == nil {
			return nil, fmt.Errorf("no chat model factory for provider %q", c.Provider)
		}
		return openAI(ctx, c)
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", c.Provider)
	}
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderOpenAI))
	if provider != ProviderOpenAI && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature := 0.7
	if override, err := parseOptionalFloatEnv("AI_TEMPERATURE"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		temperature = *override
	}

	maxTokens := 1000
	if override, err := parseOptionalIntEnv("AI_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		maxTokens = *override
	}

	historyLimit := 5
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 {
			historyLimit = 0
		} else {
			historyLimit = *override
		}
	}

	timeout, err := parseDurationEnv("AI_TIMEOUT", 0)
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		Provider:     provider,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		HistoryLimit: historyLimit,
		Timeout:      timeout,
	}

	if provider == ProviderArk {
		cfg.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Model = strings.TrimSpace(os.Getenv("ARK_MODEL"))
		cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
		return cfg, nil
	}

	cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.Model = getEnvOrDefault("OPENAI_MODEL", defaultOpenAIModel)
	cfg.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	return cfg, nil
}

// AuthConfig describes the identity provider and directory endpoints.
type AuthConfig struct {
	ClientID              string
	ClientSecret          string
	TenantID              string
	RedirectURL           string
	AuthorityHost         string
	PostLogoutRedirectURL string
	GraphMeEndpoint       string
}

func loadAuthConfig() (AuthConfig, error) {
	redirect := getEnvOrDefault("AZURE_REDIRECT_URI", "http://localhost:8080/auth/callback")
	if !strings.HasPrefix(redirect, "http://") && !strings.HasPrefix(redirect, "https://") {
		return AuthConfig{}, fmt.Errorf("invalid AZURE_REDIRECT_URI value %q", redirect)
	}

	return AuthConfig{
		ClientID:              getEnvOrDefault("AZURE_CLIENT_ID", defaultClientID),
		ClientSecret:          strings.TrimSpace(os.Getenv("AZURE_CLIENT_SECRET")),
		TenantID:              getEnvOrDefault("AZURE_TENANT_ID", defaultTenantID),
		RedirectURL:           redirect,
		AuthorityHost:         strings.TrimRight(getEnvOrDefault("AZURE_AUTHORITY_HOST", defaultAuthorityHost), "/"),
		PostLogoutRedirectURL: strings.TrimSpace(os.Getenv("AZURE_POST_LOGOUT_REDIRECT_URI")),
		GraphMeEndpoint:       getEnvOrDefault("GRAPH_ME_ENDPOINT", defaultGraphMe),
	}, nil
}

// SessionConfig controls the in-memory browser sessions.
type SessionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	CookieSecure  bool
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_IDLE_TTL", 8*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}

	secure, err := parseBoolEnv("SESSION_COOKIE_SECURE", false)
	if err != nil {
		return SessionConfig{}, err
	}

	sweep := ttl / 4
	if sweep < time.Minute {
		sweep = time.Minute
	}

	return SessionConfig{IdleTTL: ttl, SweepInterval: sweep, CookieSecure: secure}, nil
}

// LocaleConfig holds the fallback UI language.
type LocaleConfig struct {
	Default string
}

func loadLocaleConfig() LocaleConfig {
	return LocaleConfig{Default: getEnvOrDefault("APP_LOCALE", "tr")}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string) []string {
	var values []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
