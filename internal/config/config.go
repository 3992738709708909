// Package config loads runtime settings from the environment, an optional
// .env file and an optional config/config.yaml.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything main needs to wire the server.
type Config struct {
	Port          string
	MongoURI      string
	MongoDatabase string

	JWTSecret    string
	JWTKeys      map[string]string // kid -> secret, for rotation
	JWTActiveKid string
	TokenTTL     time.Duration

	RateLimitRPM  int
	ClientOrigins []string

	ReplyDelay   time.Duration
	QuoteURL     string
	QuoteTimeout time.Duration

	HealthPort string
	TLSCert    string
	TLSKey     string
	RequireTLS bool
}

// Load reads configuration. Environment variables win over config.yaml.
func Load() (*Config, error) {
	// .env is optional; missing file is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "5000")
	v.SetDefault("mongodb_database", "chat_db")
	v.SetDefault("token_ttl", "720h")
	v.SetDefault("rate_limit_rpm", 10)
	v.SetDefault("client_url", "http://localhost:5173")
	v.SetDefault("reply_delay", "3s")
	v.SetDefault("quote_url", "https://api.quotable.io/random")
	v.SetDefault("quote_timeout", "5s")
	v.SetDefault("health_port", "50051")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:          v.GetString("port"),
		MongoURI:      v.GetString("mongodb_uri"),
		MongoDatabase: v.GetString("mongodb_database"),
		JWTSecret:     v.GetString("jwt_secret"),
		JWTActiveKid:  v.GetString("jwt_active_kid"),
		TokenTTL:      v.GetDuration("token_ttl"),
		RateLimitRPM:  v.GetInt("rate_limit_rpm"),
		ClientOrigins: splitList(v.GetString("client_url")),
		ReplyDelay:    v.GetDuration("reply_delay"),
		QuoteURL:      v.GetString("quote_url"),
		QuoteTimeout:  v.GetDuration("quote_timeout"),
		HealthPort:    v.GetString("health_port"),
		TLSCert:       v.GetString("tls_cert"),
		TLSKey:        v.GetString("tls_key"),
		RequireTLS:    v.GetBool("require_tls"),
	}

	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI must be set")
	}

	keys, err := ParseKeys(v.GetString("jwt_keys"))
	if err != nil {
		return nil, err
	}
	cfg.JWTKeys = keys
	if len(keys) == 0 && cfg.JWTSecret == "" {
		return nil, errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if len(keys) > 0 {
		if _, ok := keys[cfg.JWTActiveKid]; !ok {
			return nil, fmt.Errorf("JWT_ACTIVE_KID %q is not present in JWT_KEYS", cfg.JWTActiveKid)
		}
	}

	if cfg.RequireTLS && (cfg.TLSCert == "" || cfg.TLSKey == "") {
		return nil, errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if cfg.RateLimitRPM <= 0 {
		cfg.RateLimitRPM = 10
	}
	if cfg.ReplyDelay <= 0 {
		return nil, fmt.Errorf("REPLY_DELAY must be positive, got %s", cfg.ReplyDelay)
	}

	return cfg, nil
}

// ParseKeys parses "kid:secret,kid2:secret2".
func ParseKeys(s string) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[parts[0]] = parts[1]
	}
	return keys, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
