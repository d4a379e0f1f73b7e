// Package config loads the service settings from an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ortelius/pdvd-reposcan/util"
	"gopkg.in/yaml.v2"
)

// Graph backends
const (
	BackendGremlin = "gremlin"
	BackendArango  = "arango"
)

// GremlinConfig locates the Gremlin HTTP endpoint
type GremlinConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// ArangoConfig holds the ArangoDB connection settings
type ArangoConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	URL      string `yaml:"url"`
}

// KafkaConfig holds the scan request topic settings
type KafkaConfig struct {
	Brokers   []string `yaml:"brokers"`
	APIKey    string   `yaml:"api_key"`
	APISecret string   `yaml:"api_secret"`
	Topic     string   `yaml:"topic"`
	GroupID   string   `yaml:"group_id"`
}

// NotificationConfig locates the notification service
type NotificationConfig struct {
	Host      string `yaml:"host"`
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// AuthConfig controls bearer token validation on the REST API
type AuthConfig struct {
	Disabled  bool     `yaml:"disabled"`
	PublicKey string   `yaml:"public_key"`
	Audiences []string `yaml:"audiences"`
}

// Config is the complete service configuration
type Config struct {
	Port          string             `yaml:"port"`
	GraphBackend  string             `yaml:"graph_backend"`
	Gremlin       GremlinConfig      `yaml:"gremlin"`
	Arango        ArangoConfig       `yaml:"arango"`
	Kafka         KafkaConfig        `yaml:"kafka"`
	Notification  NotificationConfig `yaml:"notification"`
	Auth          AuthConfig         `yaml:"auth"`
	GraphTimeout  time.Duration      `yaml:"graph_timeout"`
	NotifyTimeout time.Duration      `yaml:"notify_timeout"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Port:         "8080",
		GraphBackend: BackendArango,
		Gremlin:      GremlinConfig{Host: "localhost", Port: "8182"},
		Arango: ArangoConfig{
			Host:     "localhost",
			Port:     "8529",
			User:     "root",
			Password: "mypassword",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "repo-scan-requests",
			GroupID: "pdvd-reposcan-worker",
		},
		GraphTimeout:  60 * time.Second,
		NotifyTimeout: 30 * time.Second,
	}
}

// Load reads the YAML file at path when it is set, then applies environment overrides
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = util.GetEnvDefault("MS_PORT", c.Port)
	c.GraphBackend = strings.ToLower(util.GetEnvDefault("GRAPH_BACKEND", c.GraphBackend))

	c.Gremlin.Host = util.GetEnvDefault("BAYESIAN_GREMLIN_HTTP_SERVICE_HOST", c.Gremlin.Host)
	c.Gremlin.Port = util.GetEnvDefault("BAYESIAN_GREMLIN_HTTP_SERVICE_PORT", c.Gremlin.Port)

	c.Arango.Host = util.GetEnvDefault("ARANGO_HOST", c.Arango.Host)
	c.Arango.Port = util.GetEnvDefault("ARANGO_PORT", c.Arango.Port)
	c.Arango.User = util.GetEnvDefault("ARANGO_USER", c.Arango.User)
	c.Arango.Password = util.GetEnvDefault("ARANGO_PASS", c.Arango.Password)
	c.Arango.URL = util.GetEnvDefault("ARANGO_URL", c.Arango.URL)

	if brokers := util.GetEnvDefault("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	c.Kafka.APIKey = util.GetEnvDefault("KAFKA_API_KEY", c.Kafka.APIKey)
	c.Kafka.APISecret = util.GetEnvDefault("KAFKA_API_SECRET", c.Kafka.APISecret)
	c.Kafka.Topic = util.GetEnvDefault("KAFKA_TOPIC", c.Kafka.Topic)

	c.Notification.Host = strings.TrimSpace(util.GetEnvDefault("NOTIFICATION_SERVICE_HOST", c.Notification.Host))
	c.Notification.Token = util.GetEnvDefault("NOTIFICATION_SERVICE_TOKEN", c.Notification.Token)
	c.Notification.TokenFile = util.GetEnvDefault("NOTIFICATION_SERVICE_TOKEN_FILE", c.Notification.TokenFile)

	if util.GetEnvBool("DISABLE_AUTHENTICATION") {
		c.Auth.Disabled = true
	}
	c.Auth.PublicKey = util.GetEnvDefault("JWT_PUBLIC_KEY", c.Auth.PublicKey)
	if audiences := util.GetEnvDefault("BAYESIAN_JWT_AUDIENCE", ""); audiences != "" {
		c.Auth.Audiences = splitList(audiences)
	}

	c.GraphTimeout = util.GetEnvDuration("GRAPH_TIMEOUT", c.GraphTimeout)
	c.NotifyTimeout = util.GetEnvDuration("NOTIFY_TIMEOUT", c.NotifyTimeout)
}

// Validate checks the settings that have no usable default
func (c Config) Validate() error {
	switch c.GraphBackend {
	case BackendGremlin, BackendArango:
	default:
		return fmt.Errorf("unknown graph backend %q", c.GraphBackend)
	}
	if c.GraphTimeout <= 0 || c.NotifyTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// ArangoEndpoint returns the configured ArangoDB URL
func (c Config) ArangoEndpoint() string {
	if c.Arango.URL != "" {
		return c.Arango.URL
	}
	return "http://" + c.Arango.Host + ":" + c.Arango.Port
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
