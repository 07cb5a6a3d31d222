// Package screenlib is the runtime that generated screen libraries import.
// A generated program builds a Runtime with MustNew, declares its rules with
// Rule and hands them to Main.
package screenlib

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"jordanella.com/screen-mapper/internal/config"
	"jordanella.com/screen-mapper/internal/cv"
	"jordanella.com/screen-mapper/internal/extract"
	"jordanella.com/screen-mapper/internal/library"
	"jordanella.com/screen-mapper/internal/logging"
	"jordanella.com/screen-mapper/internal/ocr"
)

// ConfigEnv names the environment variable that overrides the settings file path
const ConfigEnv = "SCREENMAPPER_CONFIG"

// Box is a rectangle in frame coordinates
type Box = library.Box

// Rect creates a Box from its origin and size
func Rect(x, y, width, height int) Box {
	return library.Rect(x, y, width, height)
}

// Settings chosen by Main's -config flag, read by runtimes on first use
var settings struct {
	mu   sync.Mutex
	path string
}

func setSettingsPath(path string) {
	settings.mu.Lock()
	defer settings.mu.Unlock()
	settings.path = path
}

func settingsPath() string {
	settings.mu.Lock()
	defer settings.mu.Unlock()
	if settings.path != "" {
		return settings.path
	}
	if env := os.Getenv(ConfigEnv); env != "" {
		return env
	}
	return config.DefaultPath
}

// Runtime grabs frames and evaluates boxes for a generated library
type Runtime struct {
	once   sync.Once
	err    error
	cfg    *config.Config
	engine extract.Engine
	screen cv.Capturer
	logger *logging.Logger
}

// MustNew returns a runtime that configures itself from the settings file on
// first use. It never fails; configuration errors surface from the first call.
func MustNew() *Runtime {
	return &Runtime{}
}

// New returns a runtime with explicit collaborators. A nil screen uses the
// platform screen capture when a frame is first grabbed.
func New(cfg *config.Config, engine extract.Engine, screen cv.Capturer) *Runtime {
	rt := &Runtime{
		cfg:    cfg,
		engine: engine,
		screen: screen,
		logger: logging.NewLogger("screenlib"),
	}
	rt.once.Do(func() {})
	return rt
}

func (rt *Runtime) setup() error {
	rt.once.Do(func() {
		logger := logging.NewLogger("screenlib")
		if err := config.LoadDotEnv(".env"); err != nil {
			logger.Warn(fmt.Sprintf("Failed to load .env: %v", err))
		}

		cfg, err := config.Load(settingsPath(), logger)
		if err != nil {
			rt.err = err
			return
		}
		logger.SetMinLevel(logging.ParseLevel(cfg.LogLevel))

		recognizer, err := ocr.New(cfg)
		if err != nil {
			rt.err = err
			return
		}

		rt.cfg = cfg
		rt.logger = logger
		rt.engine = extract.NewDefaultEngine(recognizer, nil)
	})
	return rt.err
}

// Config returns the settings the runtime runs with
func (rt *Runtime) Config() (*config.Config, error) {
	if err := rt.setup(); err != nil {
		return nil, err
	}
	return rt.cfg, nil
}

func (rt *Runtime) capturer() (cv.Capturer, error) {
	if err := rt.setup(); err != nil {
		return nil, err
	}
	if rt.screen == nil {
		screen, err := cv.NewScreenCapture()
		if err != nil {
			return nil, err
		}
		rt.screen = screen
	}
	return rt.screen, nil
}

// GrabScreen captures the entire screen
func (rt *Runtime) GrabScreen() (*image.RGBA, error) {
	screen, err := rt.capturer()
	if err != nil {
		return nil, err
	}
	frame, err := screen.CaptureFrame()
	if err != nil {
		return nil, err
	}
	return cv.Normalize(frame), nil
}

// Grab captures one region of the screen
func (rt *Runtime) Grab(region Box) (*image.RGBA, error) {
	screen, err := rt.capturer()
	if err != nil {
		return nil, err
	}
	frame, err := cv.NewRegionCapture(screen, cv.RegionFromRect(region.X, region.Y, region.Width, region.Height)).CaptureFrame()
	if err != nil {
		return nil, err
	}
	return cv.Normalize(frame), nil
}

func (rt *Runtime) evaluate(frame *image.RGBA, kind library.Kind, box Box, templateImage string) (extract.Result, error) {
	if err := rt.setup(); err != nil {
		return extract.Result{Kind: kind}, err
	}
	return rt.engine.Evaluate(context.Background(), frame, kind, box, templateImage)
}

// Text reads the text inside box
func (rt *Runtime) Text(frame *image.RGBA, box Box) (string, error) {
	res, err := rt.evaluate(frame, library.KindText, box, "")
	return res.Text, err
}

// Number reads a number inside box
func (rt *Runtime) Number(frame *image.RGBA, box Box) (float64, error) {
	res, err := rt.evaluate(frame, library.KindNumber, box, "")
	return res.Number, err
}

// Match returns every location in box where templateImage appears, in frame coordinates
func (rt *Runtime) Match(frame *image.RGBA, box Box, templateImage string) ([]image.Point, error) {
	res, err := rt.evaluate(frame, library.KindTemplateMatch, box, templateImage)
	return res.Matches, err
}
