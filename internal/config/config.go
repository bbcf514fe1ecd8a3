package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/0gfoundation/0g-storefront/internal/ratelimit"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Payment   PaymentConfig
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Auth      AuthConfig
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type PaymentConfig struct {
	APIURL      string `mapstructure:"api_url"`
	APIKey      string `mapstructure:"api_key"`
	SecretKey   string `mapstructure:"secret_key"`
	AuthScheme  string `mapstructure:"auth_scheme"`
	NonceHeader string `mapstructure:"nonce_header"`
	NonceTTLSec int64  `mapstructure:"nonce_ttl_sec"`
	CallbackURL string `mapstructure:"callback_url"`
}

type RuleConfig struct {
	Max       int   `mapstructure:"max"`
	WindowSec int64 `mapstructure:"window_sec"`
}

type RateLimitConfig struct {
	LoginIP       RuleConfig `mapstructure:"login_ip"`
	LoginEmail    RuleConfig `mapstructure:"login_email"`
	RegisterIP    RuleConfig `mapstructure:"register_ip"`
	RegisterEmail RuleConfig `mapstructure:"register_email"`
	CheckoutIP    RuleConfig `mapstructure:"checkout_ip"`
	DelaysMS      []int      `mapstructure:"delays_ms"`
}

type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	TokenTTLMin int    `mapstructure:"token_ttl_min"`
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "storefront.db")
	v.SetDefault("payment.auth_scheme", "PWS")
	v.SetDefault("payment.nonce_header", "x-rnd")
	v.SetDefault("payment.nonce_ttl_sec", 900)
	v.SetDefault("auth.token_ttl_min", 60)

	def := ratelimit.DefaultConfig()
	for key, scope := range rateLimitScopes {
		r := def.Rules[scope]
		v.SetDefault("ratelimit."+key+".max", r.Max)
		v.SetDefault("ratelimit."+key+".window_sec", int64(r.Window/time.Second))
	}
	delays := make([]int, len(def.Delays))
	for i, d := range def.Delays {
		delays[i] = int(d / time.Millisecond)
	}
	v.SetDefault("ratelimit.delays_ms", delays)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"server.port":                         "PORT",
		"server.allowed_origins":              "ALLOWED_ORIGINS",
		"redis.addr":                          "REDIS_ADDR",
		"redis.password":                      "REDIS_PASSWORD",
		"redis.db":                            "REDIS_DB",
		"database.driver":                     "DATABASE_DRIVER",
		"database.dsn":                        "DATABASE_DSN",
		"payment.api_url":                     "PAYMENT_API_URL",
		"payment.api_key":                     "PAYMENT_API_KEY",
		"payment.secret_key":                  "PAYMENT_SECRET_KEY",
		"payment.auth_scheme":                 "PAYMENT_AUTH_SCHEME",
		"payment.nonce_header":                "PAYMENT_NONCE_HEADER",
		"payment.nonce_ttl_sec":               "PAYMENT_NONCE_TTL_SEC",
		"payment.callback_url":                "PAYMENT_CALLBACK_URL",
		"ratelimit.login_ip.max":              "RATELIMIT_LOGIN_IP_MAX",
		"ratelimit.login_ip.window_sec":       "RATELIMIT_LOGIN_IP_WINDOW_SEC",
		"ratelimit.login_email.max":           "RATELIMIT_LOGIN_EMAIL_MAX",
		"ratelimit.login_email.window_sec":    "RATELIMIT_LOGIN_EMAIL_WINDOW_SEC",
		"ratelimit.register_ip.max":           "RATELIMIT_REGISTER_IP_MAX",
		"ratelimit.register_ip.window_sec":    "RATELIMIT_REGISTER_IP_WINDOW_SEC",
		"ratelimit.register_email.max":        "RATELIMIT_REGISTER_EMAIL_MAX",
		"ratelimit.register_email.window_sec": "RATELIMIT_REGISTER_EMAIL_WINDOW_SEC",
		"ratelimit.checkout_ip.max":           "RATELIMIT_CHECKOUT_IP_MAX",
		"ratelimit.checkout_ip.window_sec":    "RATELIMIT_CHECKOUT_IP_WINDOW_SEC",
		"ratelimit.delays_ms":                 "RATELIMIT_DELAYS_MS",
		"auth.jwt_secret":                     "JWT_SECRET",
		"auth.token_ttl_min":                  "TOKEN_TTL_MIN",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

// rateLimitScopes maps config section names to limiter scopes.
var rateLimitScopes = map[string]ratelimit.Scope{
	"login_ip":       ratelimit.LoginIP,
	"login_email":    ratelimit.LoginEmail,
	"register_ip":    ratelimit.RegisterIP,
	"register_email": ratelimit.RegisterEmail,
	"checkout_ip":    ratelimit.CheckoutIP,
}

// Limiter converts the rate limit section into a limiter policy.
func (c *Config) Limiter() ratelimit.Config {
	rules := map[ratelimit.Scope]ratelimit.Rule{}
	for scope, r := range map[ratelimit.Scope]RuleConfig{
		ratelimit.LoginIP:       c.RateLimit.LoginIP,
		ratelimit.LoginEmail:    c.RateLimit.LoginEmail,
		ratelimit.RegisterIP:    c.RateLimit.RegisterIP,
		ratelimit.RegisterEmail: c.RateLimit.RegisterEmail,
		ratelimit.CheckoutIP:    c.RateLimit.CheckoutIP,
	} {
		rules[scope] = ratelimit.Rule{Max: r.Max, Window: time.Duration(r.WindowSec) * time.Second}
	}
	delays := make([]time.Duration, len(c.RateLimit.DelaysMS))
	for i, ms := range c.RateLimit.DelaysMS {
		delays[i] = time.Duration(ms) * time.Millisecond
	}
	return ratelimit.Config{Rules: rules, Delays: delays}
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Payment.APIURL, "PAYMENT_API_URL"},
		{c.Payment.APIKey, "PAYMENT_API_KEY"},
		{c.Payment.SecretKey, "PAYMENT_SECRET_KEY"},
		{c.Auth.JWTSecret, "JWT_SECRET"},
		{c.Database.DSN, "DATABASE_DSN"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Auth.TokenTTLMin <= 0 {
		return fmt.Errorf("TOKEN_TTL_MIN must be positive")
	}
	return nil
}
