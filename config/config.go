package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

type Config struct {
	Environment Environment `env:"APP_ENV" envDefault:"development"`
	HTTP        HTTPConfig
	GRPC        GRPCConfig
	MySQL       MySQLConfig
	Redis       RedisConfig
	Log         LogConfig
	Tokens      TokenConfig
	Cookie      CookieConfig
	TwoFactor   TwoFactorConfig
	Mailer      MailerConfig
	Password    PasswordConfig
}

type HTTPConfig struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

type GRPCConfig struct {
	Host string `env:"GRPC_HOST" envDefault:"0.0.0.0"`
	Port string `env:"GRPC_PORT" envDefault:"9090"`
}

type MySQLConfig struct {
	DSN string `env:"MYSQL_DSN,required,notEmpty"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// TokenConfig holds key material and lifetimes for every token kind.
// Each symmetric kind must use its own secret.
type TokenConfig struct {
	Issuer string `env:"API_ID,required,notEmpty"`

	AccessTTL            time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	AccessPrivateKeyPath string        `env:"ACCESS_PRIVATE_KEY_PATH" envDefault:"./keys/private.pem"`
	AccessPublicKeyPath  string        `env:"ACCESS_PUBLIC_KEY_PATH" envDefault:"./keys/public.pem"`
	AccessPrivateKeyPEM  []byte        `env:"-"`
	AccessPublicKeyPEM   []byte        `env:"-"`

	RefreshSecret string        `env:"REFRESH_SECRET,required,notEmpty"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`

	ResetSecret string        `env:"RESET_SECRET,required,notEmpty"`
	ResetTTL    time.Duration `env:"RESET_TTL" envDefault:"30m"`

	ConfirmationSecret string        `env:"CONFIRMATION_SECRET,required,notEmpty"`
	ConfirmationTTL    time.Duration `env:"CONFIRMATION_TTL" envDefault:"1h"`
}

type CookieConfig struct {
	Name   string `env:"REFRESH_COOKIE" envDefault:"refresh_token"`
	Path   string `env:"REFRESH_COOKIE_PATH" envDefault:"/auth"`
	Domain string `env:"REFRESH_COOKIE_DOMAIN"`
}

type TwoFactorConfig struct {
	CodeTTL time.Duration `env:"TWO_FACTOR_CODE_TTL" envDefault:"900s"`
}

type MailerConfig struct {
	Host        string `env:"EMAIL_HOST"`
	Port        int    `env:"EMAIL_PORT" envDefault:"587"`
	User        string `env:"EMAIL_USER"`
	Password    string `env:"EMAIL_PASSWORD"`
	From        string `env:"EMAIL_FROM"`
	FrontEndURL string `env:"FRONT_END_URL" envDefault:"http://localhost:3000"`
}

type PasswordConfig struct {
	Policy PasswordPolicy
	Hash   HashParams `envPrefix:"PASSWORD_HASH_"`
	// Code hashes only need to survive the challenge TTL.
	CodeHash HashParams `envPrefix:"CODE_HASH_"`
}

type HashParams struct {
	MemoryKB    uint32 `env:"MEMORY_KB"`
	Iterations  uint32 `env:"ITERATIONS"`
	Parallelism uint8  `env:"PARALLELISM"`
}

var (
	DefaultPasswordHash = HashParams{MemoryKB: 19 * 1024, Iterations: 2, Parallelism: 1}
	DefaultCodeHash     = HashParams{MemoryKB: 8 * 1024, Iterations: 1, Parallelism: 1}
)

func (p HashParams) orDefault(def HashParams) HashParams {
	if p.MemoryKB == 0 {
		p.MemoryKB = def.MemoryKB
	}
	if p.Iterations == 0 {
		p.Iterations = def.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = def.Parallelism
	}
	return p
}

type PasswordPolicy struct {
	MinLength        int  `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	MaxLength        int  `env:"PASSWORD_MAX_LENGTH" envDefault:"40"`
	RequireUppercase bool `env:"PASSWORD_REQUIRE_UPPERCASE" envDefault:"true"`
	RequireLowercase bool `env:"PASSWORD_REQUIRE_LOWERCASE" envDefault:"true"`
	RequireNumber    bool `env:"PASSWORD_REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial   bool `env:"PASSWORD_REQUIRE_SPECIAL" envDefault:"true"`
}

func (p PasswordPolicy) Validate(password string) error {
	length := utf8.RuneCountInString(password)
	if length < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		return fmt.Errorf("password must be at most %d characters long", p.MaxLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if p.RequireUppercase && !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, "number")
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var err error
	cfg.Tokens.AccessPrivateKeyPEM, err = os.ReadFile(cfg.Tokens.AccessPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read access private key: %w", err)
	}
	cfg.Tokens.AccessPublicKeyPEM, err = os.ReadFile(cfg.Tokens.AccessPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read access public key: %w", err)
	}

	cfg.Password.Hash = cfg.Password.Hash.orDefault(DefaultPasswordHash)
	cfg.Password.CodeHash = cfg.Password.CodeHash.orDefault(DefaultCodeHash)

	return &cfg, nil
}

// LoadMySQL reads only the database section, for commands that never serve
// traffic.
func LoadMySQL() (MySQLConfig, error) {
	_ = godotenv.Load()

	var cfg MySQLConfig
	if err := env.Parse(&cfg); err != nil {
		return MySQLConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Environment {
	case EnvironmentDevelopment, EnvironmentProduction:
	default:
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvironmentDevelopment, EnvironmentProduction, c.Environment)
	}

	t := c.Tokens
	if t.RefreshSecret == t.ResetSecret || t.RefreshSecret == t.ConfirmationSecret || t.ResetSecret == t.ConfirmationSecret {
		return errors.New("REFRESH_SECRET, RESET_SECRET and CONFIRMATION_SECRET must all differ")
	}
	if t.AccessTTL <= 0 || t.RefreshTTL <= 0 || t.ResetTTL <= 0 || t.ConfirmationTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.TwoFactor.CodeTTL <= 0 {
		return errors.New("TWO_FACTOR_CODE_TTL must be positive")
	}

	if c.IsProduction() && c.Mailer.Host == "" {
		return errors.New("EMAIL_HOST environment variable is required in production")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

func (c *Config) DSN() string {
	return c.MySQL.DSN
}
