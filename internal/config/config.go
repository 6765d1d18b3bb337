package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"wedding-quiz/internal/domain"
)

// DefaultAdminKey is used when neither the file nor ADMIN_KEY sets one.
const DefaultAdminKey = "change-me"

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		BaseURL        string   `yaml:"base_url"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Admin struct {
		Key string `yaml:"key"`
	} `yaml:"admin"`
	Clients struct {
		LiffIDPlayer string `yaml:"liff_id_player"`
		LiffIDHost   string `yaml:"liff_id_host"`
	} `yaml:"clients"`
	Quiz struct {
		DefaultSet       string  `yaml:"default_set"`
		NamePattern      *string `yaml:"name_pattern"` // nil = default rule, "" = no rule
		NameRule         string  `yaml:"name_rule"`
		QuestionCacheTTL string  `yaml:"question_cache_ttl"`
	} `yaml:"quiz"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads .env (if any), then the YAML config at path, then environment overrides.
// A missing config file is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.Server.Port, "PORT")
	override(&c.Server.BaseURL, "BASE_URL")
	override(&c.Admin.Key, "ADMIN_KEY")
	override(&c.Clients.LiffIDPlayer, "LIFF_ID_PLAYER")
	override(&c.Clients.LiffIDHost, "LIFF_ID_HOST")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Postgres.URL, "POSTGRES_URL")
	override(&c.NATS.URL, "NATS_URL")
	override(&c.Log.Level, "LOG_LEVEL")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Admin.Key == "" {
		c.Admin.Key = DefaultAdminKey
	}
	if c.Quiz.DefaultSet == "" {
		c.Quiz.DefaultSet = domain.DefaultSetID
	}
	if c.Quiz.NamePattern == nil {
		pattern := domain.DefaultNamePattern
		c.Quiz.NamePattern = &pattern
		if c.Quiz.NameRule == "" {
			c.Quiz.NameRule = domain.DefaultNameRule
		}
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "quiz.rooms"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// NamePolicy builds the display-name policy from the quiz section.
func (c Config) NamePolicy() (domain.NamePolicy, error) {
	pattern := ""
	if c.Quiz.NamePattern != nil {
		pattern = *c.Quiz.NamePattern
	}
	return domain.NewNamePolicy(pattern, c.Quiz.NameRule)
}

func override(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
