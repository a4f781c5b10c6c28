package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

// SMTP security modes
const (
	SecurityStartTLS = "starttls"
	SecurityTLS      = "tls"
	SecurityNone     = "none"
)

// Config holds the application configuration
type Config struct {
	Account    AccountConfig    `mapstructure:"account"`
	IMAP       ServerConfig     `mapstructure:"imap"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Fetch      FetchConfig      `mapstructure:"fetch"`

	// Empty disables the verdict history
	CachePath string `mapstructure:"cache_path"`
	LogLevel  string `mapstructure:"log_level"`

	// Encrypts the file keyring backend. Empty prompts on the terminal.
	KeyringPassphrase string `mapstructure:"keyring_passphrase"`
}

// AccountConfig holds the mail account credentials
type AccountConfig struct {
	Address string `mapstructure:"address"`
	Secret  string `mapstructure:"secret"`
}

// ServerConfig holds the endpoint of a mail server
type ServerConfig struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SMTPConfig holds the outbound server settings
type SMTPConfig struct {
	ServerConfig `mapstructure:",squash"`
	Security     string `mapstructure:"security"`
}

// RetryConfig controls reconnect attempts for dial and authentication.
// MaxAttempts of 1 disables retries.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
}

// ClassifierConfig holds the remote endpoint and the local keyword lists
type ClassifierConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout"`
	PhishingKeywords  []string      `mapstructure:"phishing_keywords"`
	SpamKeywords      []string      `mapstructure:"spam_keywords"`
	SuspiciousDomains []string      `mapstructure:"suspicious_domains"`
}

// FetchConfig controls inbox retrieval
type FetchConfig struct {
	Limit int `mapstructure:"limit"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Credentials returns the configured account as credentials
func (c *Config) Credentials() types.Credentials {
	return types.Credentials{
		Address: strings.TrimSpace(c.Account.Address),
		Secret:  c.Account.Secret,
	}
}

// Default keyword lists used by the local classifier
var (
	DefaultPhishingKeywords = []string{
		"urgent", "immediate", "action required", "verify", "confirm",
		"account suspended", "security alert", "password expired",
		"unusual activity", "login now", "click here", "verify now",
		"confirm your account", "verify your identity", "security check",
		"account verification", "suspicious activity", "unusual login",
		"password reset", "account locked", "verify your email",
		"confirm your email", "verify your account", "security verification",
		"account security",
	}

	DefaultSpamKeywords = []string{
		"lottery", "winner", "prize", "congratulations", "free",
		"discount", "offer", "limited time", "special offer",
		"exclusive deal", "save money", "earn money", "make money",
		"work from home", "investment", "bitcoin", "crypto",
		"forex", "trading", "investment opportunity", "get rich",
		"quick money", "easy money", "make money fast", "earn fast",
		"quick cash", "easy cash", "get paid", "earn cash",
		"make cash", "quick income", "easy income", "get income",
	}

	DefaultSuspiciousDomains = []string{
		"free", "temp", "mail", "email", "random", "fake",
		"spam", "trash", "throwaway", "disposable", "temporary",
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("account.address", "")
	v.SetDefault("account.secret", "")

	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.timeout", 30*time.Second)

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.timeout", 30*time.Second)
	v.SetDefault("smtp.security", SecurityStartTLS)

	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.initial_interval", 500*time.Millisecond)

	v.SetDefault("classifier.endpoint", "http://localhost:5000/predict")
	v.SetDefault("classifier.timeout", 10*time.Second)
	v.SetDefault("classifier.phishing_keywords", DefaultPhishingKeywords)
	v.SetDefault("classifier.spam_keywords", DefaultSpamKeywords)
	v.SetDefault("classifier.suspicious_domains", DefaultSuspiciousDomains)

	v.SetDefault("fetch.limit", 50)

	v.SetDefault("cache_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("keyring_passphrase", "")
}

// LoadConfig loads configuration from defaults, an optional YAML file and
// the environment, in that order of precedence (environment wins).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// IMAP_HOST, SMTP_PORT, LOG_LEVEL, CACHE_PATH, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by older .env files
	if err := v.BindEnv("account.address", "ACCOUNT_ADDRESS", "EMAIL"); err != nil {
		return nil, fmt.Errorf("failed to bind account address: %w", err)
	}
	if err := v.BindEnv("account.secret", "ACCOUNT_SECRET", "PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind account secret: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg.SMTP.Security = strings.ToLower(strings.TrimSpace(cfg.SMTP.Security))
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.IMAP.Host == "" {
		return fmt.Errorf("IMAP_HOST is required")
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("SMTP_HOST is required")
	}
	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		return fmt.Errorf("invalid IMAP_PORT: %d", c.IMAP.Port)
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid SMTP_PORT: %d", c.SMTP.Port)
	}
	if c.IMAP.Timeout <= 0 || c.SMTP.Timeout <= 0 {
		return fmt.Errorf("IMAP_TIMEOUT and SMTP_TIMEOUT must be positive")
	}

	switch c.SMTP.Security {
	case SecurityStartTLS, SecurityTLS, SecurityNone:
	default:
		return fmt.Errorf("unknown SMTP_SECURITY %q", c.SMTP.Security)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	if c.Fetch.Limit < 1 || c.Fetch.Limit > 1000 {
		return fmt.Errorf("FETCH_LIMIT must be between 1 and 1000")
	}

	if c.Classifier.Timeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT must be positive")
	}
	if c.Classifier.Endpoint != "" {
		u, err := url.Parse(c.Classifier.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid CLASSIFIER_ENDPOINT %q", c.Classifier.Endpoint)
		}
	}

	return nil
}
