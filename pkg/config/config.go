package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Catalog      CatalogConfig
	Sites        SitesConfig
	Internal     InternalConfig
	Access       AccessConfig
	Telegram     TelegramConfig
	Profanity    ProfanityConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Sites.Parse(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLIPGATE_APP_ENV" required:"true"`
	Port         string `envconfig:"CLIPGATE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLIPGATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLIPGATE_LOG_WARN_STACK" default:"false"`
}

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"CLIPGATE_DB_DSN"`

	LegacyHost     string `envconfig:"CLIPGATE_DB_HOST"`
	LegacyPort     int    `envconfig:"CLIPGATE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLIPGATE_DB_USER"`
	LegacyPassword string `envconfig:"CLIPGATE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLIPGATE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLIPGATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLIPGATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLIPGATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLIPGATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLIPGATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLIPGATE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLIPGATE_REDIS_ADDR"`
	Password     string        `envconfig:"CLIPGATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLIPGATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLIPGATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLIPGATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLIPGATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLIPGATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLIPGATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey              string        `envconfig:"CLIPGATE_STRIPE_API_KEY"`
	Secret              string        `envconfig:"CLIPGATE_STRIPE_WEBHOOK_SECRET"`
	Env                 string        `envconfig:"CLIPGATE_STRIPE_ENV" default:"test"`
	EventIdempotencyTTL time.Duration `envconfig:"CLIPGATE_STRIPE_EVENT_IDEMPOTENCY_TTL" default:"720h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CatalogConfig struct {
	BaseURL string        `envconfig:"CLIPGATE_CATALOG_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"CLIPGATE_CATALOG_TIMEOUT" default:"10s"`
}

// SitesConfig maps site tags to buyer-facing frontends. Map entries are
// "TAG=https://host" pairs separated by commas.
type SitesConfig struct {
	Map               string `envconfig:"CLIPGATE_SITE_MAP" required:"true"`
	DefaultSuccessURL string `envconfig:"CLIPGATE_DEFAULT_SUCCESS_URL" required:"true"`
	APIBaseURL        string `envconfig:"CLIPGATE_API_BASE_URL" required:"true"`
	CancelPath        string `envconfig:"CLIPGATE_CANCEL_PATH" default:"/cancel"`

	parsed map[string]string
}

// Parse materializes the tag-to-origin map. Load calls this; tests building
// a SitesConfig by hand call it directly.
func (s *SitesConfig) Parse() error {
	s.parsed = map[string]string{}
	for _, pair := range strings.Split(s.Map, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("invalid site map entry %q", pair)
		}
		if _, err := url.ParseRequestURI(parts[1]); err != nil {
			return fmt.Errorf("invalid site url for %q: %w", parts[0], err)
		}
		s.parsed[strings.ToUpper(strings.TrimSpace(parts[0]))] = strings.TrimRight(parts[1], "/")
	}
	return nil
}

// SiteURL resolves the frontend origin for a site tag.
func (s SitesConfig) SiteURL(tag string) (string, bool) {
	u, ok := s.parsed[strings.ToUpper(strings.TrimSpace(tag))]
	return u, ok
}

type InternalConfig struct {
	Token string `envconfig:"CLIPGATE_INTERNAL_API_TOKEN" required:"true"`
}

type AccessConfig struct {
	TokenTTL time.Duration `envconfig:"CLIPGATE_ACCESS_TOKEN_TTL" default:"72h"`
}

type TelegramConfig struct {
	BotToken     string `envconfig:"CLIPGATE_TELEGRAM_BOT_TOKEN"`
	SalesGroupID int64  `envconfig:"CLIPGATE_TELEGRAM_SALES_GROUP_ID"`
	ChannelID    int64  `envconfig:"CLIPGATE_TELEGRAM_CHANNEL_ID"`
	Enabled      bool   `envconfig:"CLIPGATE_TELEGRAM_ENABLED" default:"false"`
	MonthlyLimit int64  `envconfig:"CLIPGATE_TELEGRAM_CHANNEL_MONTHLY_LIMIT" default:"480"`
}

type ProfanityConfig struct {
	ExtraWords []string `envconfig:"CLIPGATE_PROFANITY_EXTRA"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CLIPGATE_AUTO_MIGRATE" default:"false"`
}

const (
	EnvDBDSN  = "CLIPGATE_DB_DSN"
	EnvDBHost = "CLIPGATE_DB_HOST"
	EnvDBUser = "CLIPGATE_DB_USER"
	EnvDBName = "CLIPGATE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
