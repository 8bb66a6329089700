package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"spoilerBot/internal/infrastructure/render"
)

const (
	DefaultMaxLines        = 6
	DefaultPipelineTimeout = 30 * time.Second
	DefaultStatusText      = "Use <topic>:spoiler:<text>"

	envPrefix = "SPOILERBOT_"
)

var backends = map[string]struct{}{"discord": {}, "mattermost": {}}

// Error is a configuration problem. It is fatal at startup.
type Error struct {
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Field == "" {
		return "config: " + msg
	}
	return "config: " + e.Field + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Config struct {
	Token     string `yaml:"token"`
	Backend   string `yaml:"backend"`
	ServerURL string `yaml:"server_url"`

	// MaxLines nil means DefaultMaxLines.
	MaxLines *int `yaml:"max_lines"`

	// Include and Exclude are "set" when non-nil, so `include: []` watches
	// no channel at all.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`

	MarkAllowAll bool     `yaml:"mark_allow_all"`
	MarkRoleIDs  []string `yaml:"mark_role_ids"`
	MarkUserIDs  []string `yaml:"mark_user_ids"`

	GIF render.Config `yaml:"gif"`

	PipelineTimeout time.Duration `yaml:"pipeline_timeout"`
	EventsAddr      string        `yaml:"events_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	StatusText      *string       `yaml:"status_text"`
}

// Load reads .env (if present), the YAML file at path (optional) and the
// SPOILERBOT_* environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(path, os.LookupEnv)
}

func LoadFrom(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Msg: "read " + path, Err: err}
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, rejecting unknown keys.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &Error{Msg: "invalid yaml", Err: err}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = splitList(v)
		}
	}

	str("TOKEN", &c.Token)
	str("BACKEND", &c.Backend)
	str("SERVER_URL", &c.ServerURL)
	str("EVENTS_ADDR", &c.EventsAddr)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	list("INCLUDE", &c.Include)
	list("EXCLUDE", &c.Exclude)
	list("MARK_ROLE_IDS", &c.MarkRoleIDs)
	list("MARK_USER_IDS", &c.MarkUserIDs)

	if v, ok := lookup(envPrefix + "STATUS_TEXT"); ok {
		c.StatusText = &v
	}
	if v, ok := lookup(envPrefix + "MAX_LINES"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &Error{Field: "max_lines", Msg: "must be an integer", Err: err}
		}
		c.MaxLines = &n
	}
	if v, ok := lookup(envPrefix + "MARK_ALLOW_ALL"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &Error{Field: "mark_allow_all", Msg: "must be a boolean", Err: err}
		}
		c.MarkAllowAll = b
	}
	if v, ok := lookup(envPrefix + "PIPELINE_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return &Error{Field: "pipeline_timeout", Msg: "must be a duration", Err: err}
		}
		c.PipelineTimeout = d
	}
	return nil
}

// splitList parses a comma separated list. An empty value yields an empty,
// non-nil list.
func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks every option. hasClient reports whether a pre-built chat
// client is supplied instead of a token.
func (c *Config) Validate(hasClient bool) error {
	hasToken := strings.TrimSpace(c.Token) != ""
	switch {
	case hasToken && hasClient:
		return &Error{Field: "token", Msg: "token and client are mutually exclusive"}
	case !hasToken && !hasClient:
		return &Error{Field: "token", Msg: "no bot token has been specified"}
	}

	backend := strings.ToLower(c.Backend)
	if _, ok := backends[backend]; !ok && (hasToken || backend != "") {
		return &Error{Field: "backend", Msg: fmt.Sprintf("must be discord or mattermost, got %q", c.Backend)}
	}
	if hasToken && backend == "mattermost" && strings.TrimSpace(c.ServerURL) == "" {
		return &Error{Field: "server_url", Msg: "required for the mattermost backend"}
	}

	if c.MaxLines != nil && *c.MaxLines < 1 {
		return &Error{Field: "max_lines", Msg: fmt.Sprintf("must be at least 1, got %d", *c.MaxLines)}
	}
	if c.Include != nil && c.Exclude != nil {
		return &Error{Field: "include", Msg: "you can't specify both included and excluded channels - choose one"}
	}

	if err := c.GIF.WithDefaults().Validate(); err != nil {
		return &Error{Field: "gif", Err: err}
	}

	if c.PipelineTimeout < 0 {
		return &Error{Field: "pipeline_timeout", Msg: "must not be negative"}
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return &Error{Field: "log_level", Err: err}
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "console":
	default:
		return &Error{Field: "log_format", Msg: fmt.Sprintf("must be json or console, got %q", c.LogFormat)}
	}
	return nil
}

func (c *Config) MaxLinesOrDefault() int {
	if c.MaxLines == nil {
		return DefaultMaxLines
	}
	return *c.MaxLines
}

func (c *Config) PipelineTimeoutOrDefault() time.Duration {
	if c.PipelineTimeout <= 0 {
		return DefaultPipelineTimeout
	}
	return c.PipelineTimeout
}

// StatusTextOrDefault returns the presence text. An explicit empty value
// disables it.
func (c *Config) StatusTextOrDefault() string {
	if c.StatusText == nil {
		return DefaultStatusText
	}
	return *c.StatusText
}
