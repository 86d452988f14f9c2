package global

import (
	"strings"

	"github.com/go-redis/redis_rate/v10"
	"github.com/spf13/viper"
)

// Conf global config
var Conf Config

// Global rate limiter
var RateLimiter *redis_rate.Limiter

type Config struct {
	Host       string           `mapstructure:"host"`
	Port       int              `mapstructure:"port"`
	Scheme     string           `mapstructure:"scheme"`
	Mode       string           `mapstructure:"mode"` // debug or release
	Version    string           `mapstructure:"version"`
	CouchDB    CouchDBConfig    `mapstructure:"couchdb"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	MailTrust  MailTrustConfig  `mapstructure:"mailtrust"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

type CouchDBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Scheme   string `mapstructure:"scheme"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type QueueConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MailTrustConfig holds the trust-resolution specific settings:
// which domains are first-party (end-to-end encrypted without a
// directory lookup), where the public key directory and the contacts
// API live and the servers default signing preference for external mail.
type MailTrustConfig struct {
	InternalDomains     []string `mapstructure:"internalDomains"`
	KeyDirectoryURL     string   `mapstructure:"keyDirectoryUrl"`
	ContactsAPIURL      string   `mapstructure:"contactsApiUrl"`
	DefaultSign         bool     `mapstructure:"defaultSign"`
	DefaultMIMEType     string   `mapstructure:"defaultMimeType"`
	EmailSaltHex        string   `mapstructure:"emailSaltHex"`
	CacheTTLMinutes     int      `mapstructure:"cacheTtlMinutes"`
	KeyRecheckFrequency int      `mapstructure:"keyRecheckFrequencyMinutes"`
}

type StorageConfig struct {
	Type   string `mapstructure:"type"`
	Key    string `mapstructure:"key"`
	Secret string `mapstructure:"secret"`
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
}

// LoadConfig reads conf.yaml (or the file given with -c) into Conf
func LoadConfig(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("mailtrust")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8080)
	v.SetDefault("scheme", "http")
	v.SetDefault("mode", "release")
	v.SetDefault("mailtrust.defaultMimeType", "text/html")
	v.SetDefault("mailtrust.cacheTtlMinutes", 10)
	v.SetDefault("mailtrust.keyRecheckFrequencyMinutes", 60)

	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(&Conf)
}

// IsInternalDomain reports whether the email domain is operated by this
// service (first-party). Matching is case-insensitive on the domain part.
func IsInternalDomain(domain string) bool {
	for _, d := range Conf.MailTrust.InternalDomains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}
