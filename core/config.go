package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var ErrMissingSecret = errors.New("JWT_SECRET must be set")

type (
	ServerConfig struct {
		Address            string
		DebugAddress       string
		ShutdownTimeout    time.Duration
		CookieSecure       bool
		CORSAllowedOrigins []string
		LoginRateLimit     float64 // requests per second per IP, 0 disables
	}

	DatabaseConfig struct {
		URL        string
		Engine     string
		Host       string
		Port       string
		User       string
		Password   string
		Name       string
		DisableTLS bool
		MaxConns   int
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}

	Config struct {
		Env              string
		Build            string
		AppName          string
		Debug            bool
		TestMode         bool
		SecretKey        string
		JWTExpiration    time.Duration
		Timezone         string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		CacheTTL         time.Duration
		DefaultFromEmail mail.Address

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
	}
)

// Address returns the host:port of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Location loads the school's time zone, falling back to UTC when unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewConfig reads the configuration from `config/.env.<env>` (if present) and the environment.
// ENV selects the file: DEV (default), TEST, QA or PROD.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("app_name", "Sekolah")
	v.SetDefault("build", "dev")
	v.SetDefault("jwt_expiration", 24*time.Hour)
	v.SetDefault("timezone", "Asia/Jakarta")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("cache_ttl", 10*time.Minute)
	v.SetDefault("default_from_email", "Sekolah <noreply@localhost>")
	v.SetDefault("server_address", ":8080")
	v.SetDefault("server_debug_address", "")
	v.SetDefault("server_shutdown_timeout", 10*time.Second)
	v.SetDefault("server_cookie_secure", true)
	v.SetDefault("cors_allowed_origins", "http://localhost:3000")
	v.SetDefault("login_rate_limit", 5.0)
	v.SetDefault("database_url", "")
	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_user", "postgres")
	v.SetDefault("database_password", "")
	v.SetDefault("database_name", "sekolah")
	v.SetDefault("database_disable_tls", false)
	v.SetDefault("database_max_conns", 25)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("config: stat %s: %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("app_name"),
		Debug:           v.GetBool("debug"),
		TestMode:        env == "TEST",
		SecretKey:       v.GetString("jwt_secret"),
		JWTExpiration:   v.GetDuration("jwt_expiration"),
		Timezone:        v.GetString("timezone"),
		FrontendBaseURL: strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		RollbarToken:    v.GetString("rollbar_token"),
		SendgridApiKey:  v.GetString("sendgrid_api_key"),
		CacheTTL:        v.GetDuration("cache_ttl"),
		Server: ServerConfig{
			Address:            v.GetString("server_address"),
			DebugAddress:       v.GetString("server_debug_address"),
			ShutdownTimeout:    v.GetDuration("server_shutdown_timeout"),
			CookieSecure:       v.GetBool("server_cookie_secure"),
			CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
			LoginRateLimit:     v.GetFloat64("login_rate_limit"),
		},
		Database: DatabaseConfig{
			URL:        v.GetString("database_url"),
			Engine:     v.GetString("database_engine"),
			Host:       v.GetString("database_host"),
			Port:       v.GetString("database_port"),
			User:       v.GetString("database_user"),
			Password:   v.GetString("database_password"),
			Name:       v.GetString("database_name"),
			DisableTLS: v.GetBool("database_disable_tls"),
			MaxConns:   v.GetInt("database_max_conns"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("default_from_email"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing DEFAULT_FROM_EMAIL")
	}
	conf.DefaultFromEmail = *from

	if conf.SecretKey == "" {
		return nil, ErrMissingSecret
	}
	return conf, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
