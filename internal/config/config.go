package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var DefaultProductIDs = []string{"72862", "72860"}

const DefaultWelcomeMessage = "Olá, tudo bem? Você verificou o seu e-mail com sucesso! Seja muito bem vindo a Comunidade Nobredim!"

type Config struct {
	Port string
	Env  string

	// Chat platform
	BotToken      string
	ApplicationID string
	PublicKey     string
	GuildID       string
	RoleID        string
	DiscordAPI    string

	// Commerce platform
	TictoClientID     string
	TictoClientSecret string
	TictoOAuthURL     string
	TictoOrdersURL    string
	ProductIDs        []string

	HTTPTimeout time.Duration

	LedgerBackend string
	LedgerPath    string
	DBSource      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	AdminToken     string
	WelcomeMessage string
}

// Load reads the process environment, after merging an optional .env file.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadLedger is Load for tools that only touch the ledger.
func LoadLedger() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.validateLedger(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Port:              getenv("SERVER_PORT", "8080"),
		Env:               getenv("ENVIRONMENT", "development"),
		BotToken:          os.Getenv("TOKEN"),
		ApplicationID:     os.Getenv("APPLICATION_ID"),
		PublicKey:         os.Getenv("DISCORD_PUBLIC_KEY"),
		GuildID:           os.Getenv("GUILD_ID"),
		RoleID:            os.Getenv("NOBRES_ROLE_ID"),
		DiscordAPI:        getenv("DISCORD_API_BASE", "https://discord.com/api/v10"),
		TictoClientID:     os.Getenv("TICTO_CLIENT_ID"),
		TictoClientSecret: os.Getenv("TICTO_CLIENT_SECRET"),
		TictoOAuthURL:     os.Getenv("TICTO_OAUTH_URL"),
		TictoOrdersURL:    os.Getenv("TICTO_ORDERS_URL"),
		ProductIDs:        splitList(getenv("TICTO_PRODUCT_IDS", strings.Join(DefaultProductIDs, ","))),
		LedgerBackend:     getenv("LEDGER_BACKEND", BackendFile),
		LedgerPath:        getenv("LEDGER_PATH", "logs/used_emails"),
		DBSource:          os.Getenv("DB_SOURCE"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisKey:          getenv("REDIS_KEY", "used_identities"),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		WelcomeMessage:    getenv("WELCOME_MESSAGE", DefaultWelcomeMessage),
	}

	timeout, err := time.ParseDuration(getenv("HTTP_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("HTTP_TIMEOUT must be a positive duration, got %q", os.Getenv("HTTP_TIMEOUT"))
	}
	cfg.HTTPTimeout = timeout

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB must be an integer: %w", err)
		}
		cfg.RedisDB = db
	}
	return cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	required := []struct{ name, value string }{
		{"TOKEN", c.BotToken},
		{"DISCORD_PUBLIC_KEY", c.PublicKey},
		{"GUILD_ID", c.GuildID},
		{"NOBRES_ROLE_ID", c.RoleID},
		{"TICTO_CLIENT_ID", c.TictoClientID},
		{"TICTO_CLIENT_SECRET", c.TictoClientSecret},
		{"TICTO_OAUTH_URL", c.TictoOAuthURL},
		{"TICTO_ORDERS_URL", c.TictoOrdersURL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s environment variable is required", r.name)
		}
	}
	if len(c.ProductIDs) == 0 {
		return fmt.Errorf("TICTO_PRODUCT_IDS must name at least one product")
	}
	return c.validateLedger()
}

func (c *Config) validateLedger() error {
	switch c.LedgerBackend {
	case BackendFile:
		if c.LedgerPath == "" {
			return fmt.Errorf("LEDGER_PATH is required for the file ledger")
		}
	case BackendPostgres:
		if c.DBSource == "" {
			return fmt.Errorf("DB_SOURCE environment variable is required for the postgres ledger")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR environment variable is required for the redis ledger")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
