// Package render draws the two-frame placeholder GIF posted in place of a
// spoiler.
package render

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const borderWidth = 2

// Error reports a failure while laying out, drawing or writing a placeholder.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Renderer struct {
	cfg     Config
	colors  palette
	font    *truetype.Font
	palette color.Palette
	now     func() time.Time
	log     zerolog.Logger
}

// New validates cfg (after merging defaults) and loads the configured font.
func New(cfg Config, log zerolog.Logger) (*Renderer, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	colors, err := cfg.Colors.parse()
	if err != nil {
		return nil, err
	}

	ttf := goregular.TTF
	if cfg.FontPath != "" {
		ttf, err = os.ReadFile(cfg.FontPath)
		if err != nil {
			return nil, fmt.Errorf("read font %s: %w", cfg.FontPath, err)
		}
	}
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "spoilerbot")
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	return &Renderer{
		cfg:     cfg,
		colors:  colors,
		font:    f,
		palette: buildPalette(colors, cfg.Quality),
		now:     time.Now,
		log:     log.With().Str("component", "render").Logger(),
	}, nil
}

func (r *Renderer) Config() Config {
	return r.cfg
}

// newFace returns a fresh face per render: truetype faces cache glyphs and
// must not be shared between goroutines.
func (r *Renderer) newFace() font.Face {
	return truetype.NewFace(r.font, &truetype.Options{Size: r.cfg.FontSize})
}

// Layout wraps text exactly the way Render will draw it.
func (r *Renderer) Layout(text string, maxLines int) []string {
	return r.layout(r.newFace(), text, maxLines)
}

func (r *Renderer) layout(face font.Face, text string, maxLines int) []string {
	measure := gg.NewContext(1, 1)
	measure.SetFontFace(face)
	return Wrap(text, maxLines, measure, float64(r.cfg.Width-2*r.cfg.Margin))
}

// Render draws text into a placeholder GIF and returns the path of the
// written file. The file is closed before Render returns.
func (r *Renderer) Render(ctx context.Context, sourceID, text string, maxLines int) (string, error) {
	face := r.newFace()
	lines := r.layout(face, text, maxLines)
	height := CanvasHeight(len(lines), r.cfg.LineHeight)

	teaser := r.drawFrame(face, height, []string{r.cfg.PlaceholderText}, r.colors.placeholder)
	revealed := r.drawFrame(face, height, lines, r.colors.text)

	if err := ctx.Err(); err != nil {
		return "", &Error{Op: "draw", Err: err}
	}

	path := filepath.Join(r.cfg.TempDir, r.fileName(sourceID))
	if err := r.write(path, teaser, revealed); err != nil {
		return "", err
	}

	r.log.Debug().
		Str("source_id", sourceID).
		Int("lines", len(lines)).
		Str("path", path).
		Msg("render: placeholder written")
	return path, nil
}

func (r *Renderer) drawFrame(face font.Face, height int, lines []string, textColor color.Color) image.Image {
	width := float64(r.cfg.Width)
	dc := gg.NewContext(r.cfg.Width, height)
	dc.SetFontFace(face)

	dc.SetColor(r.colors.background)
	dc.DrawRectangle(0, 0, width, float64(height))
	dc.Fill()

	dc.SetColor(r.colors.border)
	dc.SetLineWidth(borderWidth)
	dc.DrawRectangle(borderWidth/2, borderWidth/2, width-borderWidth, float64(height)-borderWidth)
	dc.Stroke()

	step := float64(r.cfg.LineHeight) / 2
	dc.SetColor(textColor)
	for i, line := range lines {
		dc.DrawString(line, float64(r.cfg.Margin), step*float64(i+1))
	}
	return dc.Image()
}

func (r *Renderer) write(path string, frames ...image.Image) error {
	anim := &gif.GIF{LoopCount: 0}
	delay := int(r.cfg.Delay / (10 * time.Millisecond))
	for _, frame := range frames {
		bounds := frame.Bounds()
		paletted := image.NewPaletted(bounds, r.palette)
		draw.Draw(paletted, bounds, frame, bounds.Min, draw.Src)
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return &Error{Op: "create file", Err: err}
	}

	w := bufio.NewWriter(f)
	if err := gif.EncodeAll(w, anim); err != nil {
		f.Close()
		os.Remove(path)
		return &Error{Op: "encode", Err: err}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return &Error{Op: "flush", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return &Error{Op: "close", Err: err}
	}
	return nil
}

func (r *Renderer) fileName(sourceID string) string {
	return fmt.Sprintf("%s-%d-%s.gif", sanitizeID(sourceID), r.now().UnixNano(), uuid.NewString())
}

func sanitizeID(id string) string {
	id = strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		default:
			return '_'
		}
	}, id)
	if id == "" {
		return "spoiler"
	}
	return id
}

// buildPalette keeps the GIF to the configured colours plus antialiasing
// ramps from the background towards each foreground colour.
func buildPalette(p palette, steps int) color.Palette {
	out := color.Palette{p.background, p.border, p.text, p.placeholder}
	seen := map[color.RGBA]bool{p.background: true, p.border: true, p.text: true, p.placeholder: true}
	for _, fg := range []color.RGBA{p.text, p.placeholder, p.border} {
		for i := 1; i < steps; i++ {
			c := blend(p.background, fg, float64(i)/float64(steps))
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}
