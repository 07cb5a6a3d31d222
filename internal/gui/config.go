package gui

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"jordanella.com/screen-mapper/internal/config"
	"jordanella.com/screen-mapper/internal/gui/components"
	"jordanella.com/screen-mapper/internal/logging"
)

// settingsForm is the text of every editable setting
type settingsForm struct {
	PeriodMs        string
	OutputDirectory string
	Region          string
	SaveFrames      bool
	OCRBackend      string
	TesseractPath   string
	OCRLanguage     string
	OllamaURL       string
	OllamaModel     string
	DatabasePath    string
	RecordResults   bool
	LogLevel        string
}

func formFromConfig(cfg *config.Config) settingsForm {
	return settingsForm{
		PeriodMs:        strconv.Itoa(cfg.PeriodMs),
		OutputDirectory: cfg.OutputDirectory,
		Region:          cfg.Region,
		SaveFrames:      cfg.SaveFrames,
		OCRBackend:      cfg.OCRBackend,
		TesseractPath:   cfg.TesseractPath,
		OCRLanguage:     cfg.OCRLanguage,
		OllamaURL:       cfg.OllamaURL,
		OllamaModel:     cfg.OllamaModel,
		DatabasePath:    cfg.DatabasePath,
		RecordResults:   cfg.RecordResults,
		LogLevel:        cfg.LogLevel,
	}
}

// apply returns a copy of base with the form's values, validated
func (f settingsForm) apply(base *config.Config) (*config.Config, error) {
	cfg := *base

	period, err := parsePeriodField(f.PeriodMs)
	if err != nil {
		return nil, err
	}
	cfg.PeriodMs = int(period.Milliseconds())
	cfg.OutputDirectory = strings.TrimSpace(f.OutputDirectory)
	cfg.Region = strings.TrimSpace(f.Region)
	cfg.SaveFrames = f.SaveFrames
	cfg.OCRBackend = strings.ToLower(strings.TrimSpace(f.OCRBackend))
	cfg.TesseractPath = strings.TrimSpace(f.TesseractPath)
	cfg.OCRLanguage = strings.TrimSpace(f.OCRLanguage)
	cfg.OllamaURL = strings.TrimSpace(f.OllamaURL)
	cfg.OllamaModel = strings.TrimSpace(f.OllamaModel)
	cfg.DatabasePath = strings.TrimSpace(f.DatabasePath)
	cfg.RecordResults = f.RecordResults
	cfg.LogLevel = string(logging.ParseLevel(f.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigTab edits Settings.ini
type ConfigTab struct {
	controller *Controller

	periodEntry    *widget.Entry
	outputEntry    *widget.Entry
	regionEntry    *widget.Entry
	saveCheck      *widget.Check
	backendSelect  *widget.Select
	tesseractEntry *widget.Entry
	languageEntry  *widget.Entry
	ollamaURLEntry *widget.Entry
	ollamaModel    *widget.Entry
	databaseEntry  *widget.Entry
	recordCheck    *widget.Check
	logLevelSelect *widget.Select
}

// NewConfigTab creates a new configuration tab
func NewConfigTab(ctrl *Controller) *ConfigTab {
	return &ConfigTab{controller: ctrl}
}

// Build constructs the configuration UI
func (c *ConfigTab) Build() fyne.CanvasObject {
	c.periodEntry = widget.NewEntry()
	c.outputEntry = widget.NewEntry()
	c.regionEntry = widget.NewEntry()
	c.regionEntry.SetPlaceHolder("x,y,width,height")
	c.saveCheck = widget.NewCheck("", nil)
	c.backendSelect = widget.NewSelect([]string{config.BackendTesseract, config.BackendOllama, config.BackendNone}, nil)
	c.tesseractEntry = widget.NewEntry()
	c.languageEntry = widget.NewEntry()
	c.ollamaURLEntry = widget.NewEntry()
	c.ollamaModel = widget.NewEntry()
	c.databaseEntry = widget.NewEntry()
	c.recordCheck = widget.NewCheck("", nil)
	c.logLevelSelect = widget.NewSelect([]string{"DEBUG", "INFO", "WARN", "ERROR"}, nil)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Capture period (ms)", Widget: c.periodEntry},
			{Text: "Output directory", Widget: c.outputEntry},
			{Text: "Capture region", Widget: c.regionEntry},
			{Text: "Save frames", Widget: c.saveCheck},
			{Text: "OCR backend", Widget: c.backendSelect},
			{Text: "Tesseract path", Widget: c.tesseractEntry},
			{Text: "OCR language", Widget: c.languageEntry},
			{Text: "Ollama URL", Widget: c.ollamaURLEntry},
			{Text: "Ollama model", Widget: c.ollamaModel},
			{Text: "Database path", Widget: c.databaseEntry},
			{Text: "Record results", Widget: c.recordCheck},
			{Text: "Log level", Widget: c.logLevelSelect},
		},
		OnSubmit:   c.saveConfigToFile,
		OnCancel:   c.loadConfig,
		SubmitText: "Save Configuration",
		CancelText: "Reset",
	}

	c.loadConfig()

	return container.NewVScroll(container.NewVBox(
		components.Heading("Settings"),
		components.Caption("OCR and database changes apply the next time the application starts."),
		form,
		widget.NewButton("Reload from File", c.loadConfigFromFile),
	))
}

func (c *ConfigTab) form() settingsForm {
	return settingsForm{
		PeriodMs:        c.periodEntry.Text,
		OutputDirectory: c.outputEntry.Text,
		Region:          c.regionEntry.Text,
		SaveFrames:      c.saveCheck.Checked,
		OCRBackend:      c.backendSelect.Selected,
		TesseractPath:   c.tesseractEntry.Text,
		OCRLanguage:     c.languageEntry.Text,
		OllamaURL:       c.ollamaURLEntry.Text,
		OllamaModel:     c.ollamaModel.Text,
		DatabasePath:    c.databaseEntry.Text,
		RecordResults:   c.recordCheck.Checked,
		LogLevel:        c.logLevelSelect.Selected,
	}
}

// loadConfig copies the controller's configuration into the form
func (c *ConfigTab) loadConfig() {
	f := formFromConfig(c.controller.GetConfig())

	c.periodEntry.SetText(f.PeriodMs)
	c.outputEntry.SetText(f.OutputDirectory)
	c.regionEntry.SetText(f.Region)
	c.saveCheck.SetChecked(f.SaveFrames)
	c.backendSelect.SetSelected(f.OCRBackend)
	c.tesseractEntry.SetText(f.TesseractPath)
	c.languageEntry.SetText(f.OCRLanguage)
	c.ollamaURLEntry.SetText(f.OllamaURL)
	c.ollamaModel.SetText(f.OllamaModel)
	c.databaseEntry.SetText(f.DatabasePath)
	c.recordCheck.SetChecked(f.RecordResults)
	c.logLevelSelect.SetSelected(f.LogLevel)
}

// saveConfigToFile validates the form and writes it to the settings file
func (c *ConfigTab) saveConfigToFile() {
	cfg, err := c.form().apply(c.controller.GetConfig())
	if err != nil {
		c.controller.showError("Invalid configuration", err)
		return
	}

	path := c.controller.configPath
	if err := config.SaveToINI(cfg, path); err != nil {
		c.controller.showError("Failed to save configuration", err)
		return
	}

	c.controller.UpdateConfig(cfg)
	c.controller.logTab.AddLog(logging.LogLevelInfo, "config", "Configuration saved to "+path)
	dialog.ShowInformation("Settings", fmt.Sprintf("Configuration saved to %s", path), c.controller.window)
}

// loadConfigFromFile re-reads the settings file
func (c *ConfigTab) loadConfigFromFile() {
	path := c.controller.configPath
	cfg, err := config.Load(path, c.controller.logger)
	if err != nil {
		c.controller.showError("Failed to load configuration", err)
		return
	}

	c.controller.UpdateConfig(cfg)
	c.loadConfig()
	c.controller.logTab.AddLog(logging.LogLevelInfo, "config", "Configuration loaded from "+path)
}
