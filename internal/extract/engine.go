package extract

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"

	"jordanella.com/screen-mapper/internal/cv"
	mapperr "jordanella.com/screen-mapper/internal/errors"
	"jordanella.com/screen-mapper/internal/library"
	"jordanella.com/screen-mapper/internal/ocr"
	"jordanella.com/screen-mapper/pkg/templates"
)

// Engine evaluates one extraction against a captured frame
type Engine interface {
	Evaluate(ctx context.Context, frame *image.RGBA, kind library.Kind, box library.Box, templateImage string) (Result, error)
}

// Result is the value produced by a rule. Only the field matching Kind is set.
type Result struct {
	Kind    library.Kind
	Text    string
	Number  float64
	Matches []image.Point
}

func (r Result) String() string {
	switch r.Kind {
	case library.KindText:
		return strconv.Quote(r.Text)
	case library.KindNumber:
		return strconv.FormatFloat(r.Number, 'g', -1, 64)
	case library.KindTemplateMatch:
		if len(r.Matches) == 0 {
			return "[]"
		}
		parts := make([]string, len(r.Matches))
		for i, p := range r.Matches {
			parts[i] = fmt.Sprintf("(%d, %d)", p.X, p.Y)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "<unknown>"
	}
}

// DefaultEngine reads text with a Recognizer and matches templates from an image cache
type DefaultEngine struct {
	recognizer ocr.Recognizer
	templates  *templates.ImageCache
	match      *cv.MatchConfig
}

// NewDefaultEngine creates an engine. A nil cache gets a private one.
func NewDefaultEngine(recognizer ocr.Recognizer, cache *templates.ImageCache) *DefaultEngine {
	if cache == nil {
		cache = templates.NewImageCache()
	}
	return &DefaultEngine{
		recognizer: recognizer,
		templates:  cache,
		match:      cv.DefaultMatchConfig(),
	}
}

// Templates returns the engine's template cache
func (e *DefaultEngine) Templates() *templates.ImageCache {
	return e.templates
}

// Evaluate crops box out of frame and applies the kind's algorithm to it.
// Template match locations are reported in frame coordinates.
func (e *DefaultEngine) Evaluate(ctx context.Context, frame *image.RGBA, kind library.Kind, box library.Box, templateImage string) (Result, error) {
	return e.evaluate(ctx, "box", frame, kind, box, templateImage)
}

func (e *DefaultEngine) evaluate(ctx context.Context, name string, frame *image.RGBA, kind library.Kind, box library.Box, templateImage string) (Result, error) {
	result := Result{Kind: kind}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if !box.Valid() {
		return result, mapperr.NewInvalidBox(name, box.Width, box.Height)
	}

	bounds := frame.Bounds()
	if !box.Within(bounds.Dx(), bounds.Dy()) {
		return result, mapperr.NewOutOfBoundsBox(name, box.Array(),
			[4]int{0, 0, bounds.Dx(), bounds.Dy()})
	}
	crop := cv.CropRegion(frame, box.Rectangle().Add(bounds.Min))

	switch kind {
	case library.KindText:
		text, err := e.recognize(ctx, crop)
		if err != nil {
			return result, err
		}
		result.Text = text

	case library.KindNumber:
		text, err := e.recognize(ctx, cv.PrepareDigits(crop))
		if err != nil {
			return result, err
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return result, mapperr.NewNotANumber(text)
		}
		result.Number = value

	case library.KindTemplateMatch:
		if templateImage == "" {
			return result, mapperr.NewMissingTemplateImage(name, "")
		}
		needle, err := e.templates.Get(templateImage)
		if err != nil {
			return result, err
		}
		result.Matches = []image.Point{}
		for _, m := range cv.FindTemplateAll(crop, needle, e.match) {
			result.Matches = append(result.Matches, m.Location.Add(image.Pt(box.X, box.Y)))
		}

	default:
		return result, mapperr.NewUnknownKind(kind.String())
	}

	return result, nil
}

// BestMatch returns the best-scoring location of templateImage inside box, in
// frame coordinates, whether or not it reaches the acceptance threshold.
func (e *DefaultEngine) BestMatch(frame *image.RGBA, box library.Box, templateImage string) (*cv.MatchResult, error) {
	bounds := frame.Bounds()
	if !box.Valid() || !box.Within(bounds.Dx(), bounds.Dy()) {
		return nil, mapperr.NewOutOfBoundsBox("box", box.Array(), [4]int{0, 0, bounds.Dx(), bounds.Dy()})
	}
	if templateImage == "" {
		return nil, mapperr.NewMissingTemplateImage("box", "")
	}
	needle, err := e.templates.Get(templateImage)
	if err != nil {
		return nil, err
	}

	crop := cv.CropRegion(frame, box.Rectangle().Add(bounds.Min))
	best := cv.FindTemplate(crop, needle, e.match)
	best.Location = best.Location.Add(image.Pt(box.X, box.Y))
	return best, nil
}

func (e *DefaultEngine) recognize(ctx context.Context, img image.Image) (string, error) {
	if e.recognizer == nil {
		return "", ocr.ErrNoBackend
	}
	text, err := e.recognizer.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("text recognition failed: %w", err)
	}
	return text, nil
}

// EvaluateRule runs a library rule through engine, naming the rule in any error.
func EvaluateRule(ctx context.Context, engine Engine, frame *image.RGBA, rule library.BoxFunction) (Result, error) {
	if de, ok := engine.(*DefaultEngine); ok {
		return de.evaluate(ctx, rule.Name, frame, rule.Kind, rule.Box, rule.TemplateImage)
	}
	result, err := engine.Evaluate(ctx, frame, rule.Kind, rule.Box, rule.TemplateImage)
	if err != nil {
		return result, fmt.Errorf("rule %s: %w", rule.Name, err)
	}
	return result, nil
}
