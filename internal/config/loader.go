package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"jordanella.com/screen-mapper/internal/library"
	"jordanella.com/screen-mapper/internal/logging"
)

// DefaultPath is where tools look for settings when none is given
const DefaultPath = "Settings.ini"

// OCR backends
const (
	BackendTesseract = "tesseract"
	BackendOllama    = "ollama"
	BackendNone      = "none"
)

// Config holds every setting read from Settings.ini
type Config struct {
	// Capture
	PeriodMs        int
	OutputDirectory string
	Region          string // "x,y,width,height", empty for the whole screen
	FolderLayout    string // time layout for the per-session folder
	FrameLayout     string // time layout for frame file names, without extension
	SaveFrames      bool

	// Extraction
	OCRBackend    string
	TesseractPath string
	OCRLanguage   string
	OllamaURL     string
	OllamaModel   string

	// Storage
	DatabasePath  string
	RecordResults bool

	// Logging
	LogLevel string
	LogFile  string
}

// NewDefaultConfig creates a config with default values
func NewDefaultConfig() *Config {
	return &Config{
		PeriodMs:        1000,
		OutputDirectory: "./captures",
		Region:          "",
		FolderLayout:    "01 02_15:04:05",
		FrameLayout:     "01 02_15_04_05",
		SaveFrames:      true,
		OCRBackend:      BackendTesseract,
		TesseractPath:   "tesseract",
		OCRLanguage:     "eng",
		OllamaURL:       "http://localhost:11434",
		OllamaModel:     "llava",
		DatabasePath:    "screenmapper.db",
		RecordResults:   false,
		LogLevel:        "INFO",
		LogFile:         "",
	}
}

// LoadFromINI loads configuration from an INI file. Missing keys take their defaults.
func LoadFromINI(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	d := NewDefaultConfig()
	config := &Config{}

	capture := file.Section("Capture")
	config.PeriodMs = capture.Key("periodMs").MustInt(d.PeriodMs)
	config.OutputDirectory = capture.Key("outputDirectory").MustString(d.OutputDirectory)
	config.Region = capture.Key("region").MustString(d.Region)
	config.FolderLayout = capture.Key("folderLayout").MustString(d.FolderLayout)
	config.FrameLayout = capture.Key("frameLayout").MustString(d.FrameLayout)
	config.SaveFrames = capture.Key("saveFrames").MustBool(d.SaveFrames)

	extraction := file.Section("Extraction")
	config.OCRBackend = strings.ToLower(extraction.Key("ocrBackend").MustString(d.OCRBackend))
	config.TesseractPath = extraction.Key("tesseractPath").MustString(d.TesseractPath)
	config.OCRLanguage = extraction.Key("ocrLanguage").MustString(d.OCRLanguage)
	config.OllamaURL = extraction.Key("ollamaURL").MustString(d.OllamaURL)
	config.OllamaModel = extraction.Key("ollamaModel").MustString(d.OllamaModel)

	storage := file.Section("Storage")
	config.DatabasePath = storage.Key("databasePath").MustString(d.DatabasePath)
	config.RecordResults = storage.Key("recordResults").MustBool(d.RecordResults)

	logs := file.Section("Logging")
	config.LogLevel = logs.Key("logLevel").MustString(d.LogLevel)
	config.LogFile = logs.Key("logFile").MustString(d.LogFile)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Load reads path, falling back to defaults with a warning when the file does not exist.
// Environment overrides are applied in both cases.
func Load(path string, logger *logging.Logger) (*Config, error) {
	var config *Config
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.WarnWithContext("Config file not found, using defaults", map[string]interface{}{
			"path": path,
		})
		config = NewDefaultConfig()
	} else {
		if config, err = LoadFromINI(path); err != nil {
			return nil, err
		}
	}

	config.ApplyEnv()
	return config, nil
}

// LoadDotEnv loads variables from .env files into the environment. Missing files are skipped
// and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv applies OLLAMA_URL and OLLAMA_MODEL from the environment
func (c *Config) ApplyEnv() {
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		c.OllamaURL = url
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		c.OllamaModel = model
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if c.PeriodMs <= 0 {
		return fmt.Errorf("periodMs must be positive, got %d", c.PeriodMs)
	}
	if _, err := c.CaptureRegion(); err != nil {
		return err
	}
	if c.FolderLayout == "" || c.FrameLayout == "" {
		return fmt.Errorf("folderLayout and frameLayout must not be empty")
	}
	switch c.OCRBackend {
	case BackendTesseract, BackendOllama, BackendNone:
	default:
		return fmt.Errorf("unknown ocrBackend %q", c.OCRBackend)
	}
	return nil
}

// Period returns the capture period
func (c *Config) Period() time.Duration {
	return time.Duration(c.PeriodMs) * time.Millisecond
}

// CaptureRegion parses Region. nil means the whole screen.
func (c *Config) CaptureRegion() (*library.Box, error) {
	if strings.TrimSpace(c.Region) == "" {
		return nil, nil
	}
	box, err := library.ParseBox(c.Region)
	if err != nil {
		return nil, fmt.Errorf("region: %w", err)
	}
	return &box, nil
}

// SaveToINI saves configuration to an INI file
func SaveToINI(config *Config, path string) error {
	file := ini.Empty()

	capture := file.Section("Capture")
	capture.Key("periodMs").SetValue(fmt.Sprintf("%d", config.PeriodMs))
	capture.Key("outputDirectory").SetValue(config.OutputDirectory)
	capture.Key("region").SetValue(config.Region)
	capture.Key("folderLayout").SetValue(config.FolderLayout)
	capture.Key("frameLayout").SetValue(config.FrameLayout)
	capture.Key("saveFrames").SetValue(fmt.Sprintf("%t", config.SaveFrames))

	extraction := file.Section("Extraction")
	extraction.Key("ocrBackend").SetValue(config.OCRBackend)
	extraction.Key("tesseractPath").SetValue(config.TesseractPath)
	extraction.Key("ocrLanguage").SetValue(config.OCRLanguage)
	extraction.Key("ollamaURL").SetValue(config.OllamaURL)
	extraction.Key("ollamaModel").SetValue(config.OllamaModel)

	storage := file.Section("Storage")
	storage.Key("databasePath").SetValue(config.DatabasePath)
	storage.Key("recordResults").SetValue(fmt.Sprintf("%t", config.RecordResults))

	logs := file.Section("Logging")
	logs.Key("logLevel").SetValue(config.LogLevel)
	logs.Key("logFile").SetValue(config.LogFile)

	return file.SaveTo(path)
}
