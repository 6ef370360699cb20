package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Backend struct {
		URL           string `yaml:"url"`
		Timeout       string `yaml:"timeout"`
		PollInterval  string `yaml:"poll_interval"`
		QuestionCount int    `yaml:"question_count"`
	} `yaml:"backend"`
	Quiz struct {
		// Mode selects the quiz interaction: "auto" advances after each
		// answer with inline feedback, "review" grades once at the end.
		Mode string `yaml:"mode"`
	} `yaml:"quiz"`
	Puzzle struct {
		// Enabled routes quiz completion through the flag puzzle while
		// the video renders in the background.
		Enabled bool `yaml:"enabled"`
	} `yaml:"puzzle"`
	Wizard struct {
		// CompleteDelay is the pause on the processing screen once the
		// job completes, before the review screen appears.
		CompleteDelay string `yaml:"complete_delay"`
	} `yaml:"wizard"`
	Camera struct {
		// StillImage is a frame file used in place of a live device.
		StillImage string `yaml:"still_image"`
	} `yaml:"camera"`
	Session struct {
		// File holds the durable session record when Redis is not configured.
		File string `yaml:"file"`
	} `yaml:"session"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Log struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"log"`
}

// Load reads YAML config from path. BACKEND_URL overrides the backend
// base URL so kiosks can be repointed without editing the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if env := os.Getenv("BACKEND_URL"); env != "" {
		cfg.Backend.URL = env
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty
// or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
