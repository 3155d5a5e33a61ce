package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lecnote/internal/fsutil"
)

// Defaults mirror the layout of a single-user study vault on one machine.
const (
	DefaultTimezone      = "Asia/Shanghai"
	DefaultSemesterStart = "2025-09-15"
	SemesterStartLayout  = "2006-01-02"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// PromptsConfig points at the plain-text prompt files.
type PromptsConfig struct {
	System   string `yaml:"system" koanf:"system"`
	General  string `yaml:"general" koanf:"general"`
	Clinical string `yaml:"clinical" koanf:"clinical"`
}

// LLMConfig describes the chat-completion endpoint used for note generation.
type LLMConfig struct {
	// Provider selects the backend: "openai" (any OpenAI-compatible
	// /chat/completions endpoint) or "gemini".
	Provider string `yaml:"provider" koanf:"provider"`
	BaseURL  string `yaml:"base_url" koanf:"base_url"`
	APIKey   string `yaml:"api_key" koanf:"api_key"`
	Model    string `yaml:"model" koanf:"model"`

	RetryCount        int     `yaml:"retry_count" koanf:"retry_count"`
	RetryDelaySeconds int     `yaml:"retry_delay_seconds" koanf:"retry_delay_seconds"`
	MaxTokens         int     `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature       float64 `yaml:"temperature" koanf:"temperature"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" koanf:"timeout_seconds"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
	File  string `yaml:"file" koanf:"file"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status API.
type BasicAuthConfig struct {
	Username string `yaml:"username" koanf:"username"`
	Password string `yaml:"password" koanf:"password"`
}

// ServeConfig is used by `lecnote serve` only.
type ServeConfig struct {
	Listen string `yaml:"listen" koanf:"listen"`
	// Schedule is a cron expression (e.g. "*/30 * * * *") for batch runs.
	Schedule string `yaml:"schedule" koanf:"schedule"`

	// BasicAuth, if non-nil with both fields set, protects every endpoint
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" koanf:"basic_auth"`
}

// MetricsConfig controls metric export for one-shot runs.
type MetricsConfig struct {
	// Textfile, if set, receives a Prometheus text exposition after each run
	// (node_exporter textfile collector format).
	Textfile string `yaml:"textfile" koanf:"textfile"`

	// LatencyBuckets overrides the LLM latency histogram buckets (seconds,
	// strictly increasing). Empty keeps the built-in buckets.
	LatencyBuckets []float64 `yaml:"latency_buckets,omitempty" koanf:"latency_buckets"`
}

// NotifyConfig holds SMTP settings for batch-abort notifications.
type NotifyConfig struct {
	Enabled    bool   `yaml:"enabled" koanf:"enabled"`
	SMTPServer string `yaml:"smtp_server" koanf:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port" koanf:"smtp_port"`
	SMTPUser   string `yaml:"smtp_user" koanf:"smtp_user"`
	SMTPPass   string `yaml:"smtp_pass" koanf:"smtp_pass"`
	From       string `yaml:"from" koanf:"from"`
	To         string `yaml:"to" koanf:"to"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone all timestamps are interpreted in.
	Timezone string `yaml:"timezone" koanf:"timezone"`

	// SemesterStart is the YYYY-MM-DD date of week 1, day 1.
	SemesterStart string `yaml:"semester_start" koanf:"semester_start"`

	// ICSPath is a calendar feed file path or an http(s) URL.
	ICSPath     string `yaml:"ics_path" koanf:"ics_path"`
	ICSCacheDir string `yaml:"ics_cache_dir" koanf:"ics_cache_dir"`

	AudioDir      string `yaml:"audio_dir" koanf:"audio_dir"`
	TranscriptDir string `yaml:"transcript_dir" koanf:"transcript_dir"`
	ProcessedDir  string `yaml:"processed_dir" koanf:"processed_dir"`
	VaultPath     string `yaml:"vault_path" koanf:"vault_path"`

	// ClinicalCourses selects the clinical prompt template by substring match.
	ClinicalCourses []string `yaml:"clinical_courses" koanf:"clinical_courses"`

	// Interactive enables the stdin prompt for unmatched recordings.
	Interactive bool `yaml:"interactive" koanf:"interactive"`

	Prompts PromptsConfig `yaml:"prompts" koanf:"prompts"`
	LLM     LLMConfig     `yaml:"llm" koanf:"llm"`
	Log     LogConfig     `yaml:"log" koanf:"log"`
	Serve   ServeConfig   `yaml:"serve" koanf:"serve"`
	Metrics MetricsConfig `yaml:"metrics" koanf:"metrics"`
	Notify  NotifyConfig  `yaml:"notify" koanf:"notify"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:        DefaultTimezone,
		SemesterStart:   DefaultSemesterStart,
		ICSPath:         "./schedule.ics",
		ICSCacheDir:     "./var/ics-cache",
		AudioDir:        "./audio",
		TranscriptDir:   "./transcripts",
		ProcessedDir:    "./transcripts/processed",
		VaultPath:       "./obsidian_vault",
		ClinicalCourses: []string{},
		Prompts: PromptsConfig{
			System:   "./prompts/system_prompt.txt",
			General:  "./prompts/general_template.txt",
			Clinical: "./prompts/clinical_template.txt",
		},
		LLM: LLMConfig{
			Provider:          ProviderOpenAI,
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			RetryCount:        3,
			RetryDelaySeconds: 5,
			MaxTokens:         20000,
			Temperature:       0.2,
			TimeoutSeconds:    300,
		},
		Log: LogConfig{
			Level: "INFO",
			File:  "./processor.log",
		},
		Serve: ServeConfig{
			Listen:   "127.0.0.1:8080",
			Schedule: "*/30 * * * *",
		},
		Notify: NotifyConfig{
			SMTPServer: "smtp.gmail.com",
			SMTPPort:   587,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.SemesterStart == "" {
		c.SemesterStart = d.SemesterStart
	}
	if c.ICSPath == "" {
		c.ICSPath = d.ICSPath
	}
	if c.ICSCacheDir == "" {
		c.ICSCacheDir = d.ICSCacheDir
	}
	if c.AudioDir == "" {
		c.AudioDir = d.AudioDir
	}
	if c.TranscriptDir == "" {
		c.TranscriptDir = d.TranscriptDir
	}
	if c.ProcessedDir == "" {
		c.ProcessedDir = d.ProcessedDir
	}
	if c.VaultPath == "" {
		c.VaultPath = d.VaultPath
	}
	c.ClinicalCourses = splitList(c.ClinicalCourses)

	if c.Prompts.System == "" {
		c.Prompts.System = d.Prompts.System
	}
	if c.Prompts.General == "" {
		c.Prompts.General = d.Prompts.General
	}
	if c.Prompts.Clinical == "" {
		c.Prompts.Clinical = d.Prompts.Clinical
	}

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider == ProviderOpenAI {
		c.LLM.BaseURL = d.LLM.BaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	// At least one attempt and one second between attempts.
	if c.LLM.RetryCount < 1 {
		c.LLM.RetryCount = 1
	}
	if c.LLM.RetryDelaySeconds < 1 {
		c.LLM.RetryDelaySeconds = 1
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = d.LLM.Temperature
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = d.LLM.TimeoutSeconds
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Serve.Listen == "" {
		c.Serve.Listen = d.Serve.Listen
	}
	if c.Serve.Schedule == "" {
		c.Serve.Schedule = d.Serve.Schedule
	}
	if c.Notify.SMTPPort <= 0 {
		c.Notify.SMTPPort = d.Notify.SMTPPort
	}
	if c.Notify.From == "" {
		c.Notify.From = c.Notify.SMTPUser
	}
}

// Validate reports settings that would make every run fail.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	if _, err := time.Parse(SemesterStartLayout, c.SemesterStart); err != nil {
		return fmt.Errorf("%w: semester_start %q: %v", ErrInvalidConfig, c.SemesterStart, err)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: llm.provider %q (supported: openai, gemini)", ErrInvalidConfig, c.LLM.Provider)
	}
	for i, b := range c.Metrics.LatencyBuckets {
		if b <= 0 || (i > 0 && b <= c.Metrics.LatencyBuckets[i-1]) {
			return fmt.Errorf("%w: metrics.latency_buckets must be positive and strictly increasing", ErrInvalidConfig)
		}
	}
	if c.Notify.Enabled && (c.Notify.SMTPServer == "" || c.Notify.To == "") {
		return fmt.Errorf("%w: notify enabled without smtp_server/to", ErrInvalidConfig)
	}
	return nil
}

// Location loads the configured IANA timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RetryDelay is LLM.RetryDelaySeconds as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.LLM.RetryDelaySeconds) * time.Second
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename with 0600 permissions,
//     since the file may hold API keys and SMTP credentials.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o600)
}

// splitList trims entries, drops empties, and splits comma-joined entries
// (a single env var such as LECNOTE_CLINICAL_COURSES="A,B" arrives as one
// element).
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
