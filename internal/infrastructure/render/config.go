package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMargin          = 10
	defaultWidth           = 400
	defaultLineHeight      = 54
	defaultFontSize        = 18
	defaultPlaceholderText = "Hover to reveal spoiler"
	defaultDelay           = 500 * time.Millisecond
	defaultQuality         = 10

	maxQuality = 80
)

// Colors holds hex colour strings ("#rrggbb" or "#rgb").
type Colors struct {
	Background      string `yaml:"background"`
	Border          string `yaml:"border"`
	Text            string `yaml:"text"`
	PlaceholderText string `yaml:"placeholder_text"`
}

// Config describes the placeholder layout. Zero fields fall back to
// DefaultConfig when passed through WithDefaults.
type Config struct {
	Margin          int           `yaml:"margin"`
	Width           int           `yaml:"width"`
	LineHeight      int           `yaml:"line_height"`
	FontSize        float64       `yaml:"font_size"`
	FontPath        string        `yaml:"font_path"`
	PlaceholderText string        `yaml:"placeholder_text"`
	Colors          Colors        `yaml:"colors"`
	Delay           time.Duration `yaml:"delay"`
	Quality         int           `yaml:"quality"`
	TempDir         string        `yaml:"temp_dir"`
}

func DefaultConfig() Config {
	return Config{
		Margin:          defaultMargin,
		Width:           defaultWidth,
		LineHeight:      defaultLineHeight,
		FontSize:        defaultFontSize,
		PlaceholderText: defaultPlaceholderText,
		Colors: Colors{
			Background:      "#36393e",
			Border:          "#202225",
			Text:            "#c0ba9e",
			PlaceholderText: "#ffffff",
		},
		Delay:   defaultDelay,
		Quality: defaultQuality,
	}
}

// WithDefaults merges c onto DefaultConfig: every zero field of c takes the
// default value.
func (c Config) WithDefaults() Config {
	out := DefaultConfig()
	if c.Margin != 0 {
		out.Margin = c.Margin
	}
	if c.Width != 0 {
		out.Width = c.Width
	}
	if c.LineHeight != 0 {
		out.LineHeight = c.LineHeight
	}
	if c.FontSize != 0 {
		out.FontSize = c.FontSize
	}
	if c.FontPath != "" {
		out.FontPath = c.FontPath
	}
	if c.PlaceholderText != "" {
		out.PlaceholderText = c.PlaceholderText
	}
	if c.Colors.Background != "" {
		out.Colors.Background = c.Colors.Background
	}
	if c.Colors.Border != "" {
		out.Colors.Border = c.Colors.Border
	}
	if c.Colors.Text != "" {
		out.Colors.Text = c.Colors.Text
	}
	if c.Colors.PlaceholderText != "" {
		out.Colors.PlaceholderText = c.Colors.PlaceholderText
	}
	if c.Delay != 0 {
		out.Delay = c.Delay
	}
	if c.Quality != 0 {
		out.Quality = c.Quality
	}
	if c.TempDir != "" {
		out.TempDir = c.TempDir
	}
	return out
}

func (c Config) Validate() error {
	if c.Margin < 0 {
		return fmt.Errorf("gif.margin must not be negative (got %d)", c.Margin)
	}
	if c.Width <= 2*c.Margin {
		return fmt.Errorf("gif.width (%d) must be larger than twice the margin (%d)", c.Width, c.Margin)
	}
	if c.LineHeight <= 0 {
		return fmt.Errorf("gif.line_height must be positive (got %d)", c.LineHeight)
	}
	if c.FontSize <= 0 {
		return fmt.Errorf("gif.font_size must be positive (got %v)", c.FontSize)
	}
	if c.Delay < 10*time.Millisecond {
		return fmt.Errorf("gif.delay must be at least 10ms (got %s)", c.Delay)
	}
	if c.Quality < 1 || c.Quality > maxQuality {
		return fmt.Errorf("gif.quality must be between 1 and %d (got %d)", maxQuality, c.Quality)
	}
	for name, hex := range map[string]string{
		"background":       c.Colors.Background,
		"border":           c.Colors.Border,
		"text":             c.Colors.Text,
		"placeholder_text": c.Colors.PlaceholderText,
	} {
		if _, err := ParseHexColor(hex); err != nil {
			return fmt.Errorf("gif.colors.%s: %w", name, err)
		}
	}
	return nil
}

// ParseHexColor parses "#rgb" or "#rrggbb" (the leading # is optional).
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

type palette struct {
	background  color.RGBA
	border      color.RGBA
	text        color.RGBA
	placeholder color.RGBA
}

func (c Colors) parse() (palette, error) {
	var (
		p   palette
		err error
	)
	if p.background, err = ParseHexColor(c.Background); err != nil {
		return p, err
	}
	if p.border, err = ParseHexColor(c.Border); err != nil {
		return p, err
	}
	if p.text, err = ParseHexColor(c.Text); err != nil {
		return p, err
	}
	if p.placeholder, err = ParseHexColor(c.PlaceholderText); err != nil {
		return p, err
	}
	return p, nil
}
