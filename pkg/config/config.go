package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	App       AppConfig                 `json:"app"`
	Play      PlayConfig                `json:"play"`
	Gateways  map[string]GatewayConfig  `json:"gateways"`
	Providers map[string]ProviderConfig `json:"providers"`
	Memory    MemoryConfig              `json:"memory"`

	// Secrets are only read from the environment.
	Secrets SecretsConfig `json:"-"`
}

type AppConfig struct {
	Name       string `json:"name" env:"STORYLAB_NAME"`
	LessonsDir string `json:"lessons_dir" env:"STORYLAB_LESSONS_DIR"`
	PromptsDir string `json:"prompts_dir" env:"STORYLAB_PROMPTS_DIR"`
	LogDir     string `json:"log_dir" env:"STORYLAB_LOG_DIR"`
}

type PlayConfig struct {
	RevealDelayMS int  `json:"reveal_delay_ms" env:"STORYLAB_REVEAL_DELAY_MS"`
	StrictScripts bool `json:"strict_scripts" env:"STORYLAB_STRICT_SCRIPTS"`
	// GradeTimeout accepts Go durations such as "20s".
	GradeTimeout Duration `json:"grade_timeout" env:"STORYLAB_GRADE_TIMEOUT"`
	// MaxAnswerLength caps free-form answers in characters; 0 disables it.
	MaxAnswerLength int `json:"max_answer_length" env:"STORYLAB_MAX_ANSWER_LENGTH"`
	// UngradedLabs never send answers to the examiner model.
	UngradedLabs []string `json:"ungraded_labs" env:"STORYLAB_UNGRADED_LABS" envSeparator:","`
	// DeniedAnswers are regular expressions for answers that are refused
	// before grading.
	DeniedAnswers []string `json:"denied_answers" env:"STORYLAB_DENIED_ANSWERS" envSeparator:";"`
}

type GatewayConfig struct {
	Token   string `json:"token"`
	Enabled bool   `json:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	Enabled bool   `json:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" env:"STORYLAB_MEMORY_TYPE"`
	Path string `json:"path" env:"STORYLAB_MEMORY_PATH"`
}

type SecretsConfig struct {
	TelegramToken string `env:"STORYLAB_TELEGRAM_TOKEN"`
	DiscordToken  string `env:"STORYLAB_DISCORD_TOKEN"`
	OpenAIKey     string `env:"STORYLAB_OPENAI_API_KEY"`
}

// Duration is a time.Duration that reads "20s"-style strings from JSON
// and the environment.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:       "storylab",
			LessonsDir: "lessons",
			PromptsDir: "prompts",
			LogDir:     "logs",
		},
		Play: PlayConfig{
			RevealDelayMS:   30,
			StrictScripts:   true,
			GradeTimeout:    Duration(20 * time.Second),
			MaxAnswerLength: 2000,
			DeniedAnswers: []string{
				`(?i)ignore\s+(all\s+|the\s+)?(previous|above|prior)\s+instructions`,
				`(?i)submit_verdict`,
				`(?i)"pass"\s*:\s*true`,
			},
		},
		Gateways:  map[string]GatewayConfig{},
		Providers: map[string]ProviderConfig{},
		Memory:    MemoryConfig{Type: "sqlite", Path: "storylab.db"},
	}
}

// LoadConfig reads path over the defaults and then applies STORYLAB_*
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("decode config file: %w", err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applySecrets()

	if cfg.Play.RevealDelayMS < 0 {
		return nil, fmt.Errorf("play.reveal_delay_ms must not be negative")
	}
	if cfg.Play.GradeTimeout < 0 {
		return nil, fmt.Errorf("play.grade_timeout must not be negative")
	}
	if cfg.Play.MaxAnswerLength < 0 {
		return nil, fmt.Errorf("play.max_answer_length must not be negative")
	}
	return cfg, nil
}

func (c *Config) applySecrets() {
	if c.Gateways == nil {
		c.Gateways = map[string]GatewayConfig{}
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	if tok := c.Secrets.TelegramToken; tok != "" {
		gw := c.Gateways["telegram"]
		gw.Token = tok
		c.Gateways["telegram"] = gw
	}
	if tok := c.Secrets.DiscordToken; tok != "" {
		gw := c.Gateways["discord"]
		gw.Token = tok
		c.Gateways["discord"] = gw
	}
	if key := c.Secrets.OpenAIKey; key != "" {
		p := c.Providers["openai"]
		p.APIKey = key
		c.Providers["openai"] = p
	}
}

// RevealDelay is the pause between revealed characters.
func (c *Config) RevealDelay() time.Duration {
	return time.Duration(c.Play.RevealDelayMS) * time.Millisecond
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGatewayConfig returns the named gateway config if it is enabled
func (c *Config) GetGatewayConfig(name string) (GatewayConfig, bool) {
	gw, ok := c.Gateways[name]
	if ok && gw.Enabled {
		return gw, true
	}
	return GatewayConfig{}, false
}
