package gui

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"jordanella.com/screen-mapper/internal/capture"
	"jordanella.com/screen-mapper/internal/config"
	"jordanella.com/screen-mapper/internal/cv"
	"jordanella.com/screen-mapper/internal/database"
	"jordanella.com/screen-mapper/internal/events"
	"jordanella.com/screen-mapper/internal/extract"
	"jordanella.com/screen-mapper/internal/library"
	"jordanella.com/screen-mapper/internal/logging"
)

// Dependencies are the collaborators the window drives
type Dependencies struct {
	Config     *config.Config
	ConfigPath string
	Session    *capture.Session
	Bus        events.EventBus
	Engine     extract.Engine
	Logger     *logging.Logger

	// Capturer supplies frames. nil uses the screen.
	Capturer cv.Capturer

	// DB, when set, can record sessions and their results
	DB *database.DB
}

// CaptureOptions are the choices made on the capture tab
type CaptureOptions struct {
	Period     time.Duration
	SaveFrames bool
	Analyze    bool
	Record     bool
}

// Controller owns the window state: the open library, the capture session
// and the tabs showing them
type Controller struct {
	config     *config.Config
	configPath string
	app        fyne.App
	window     fyne.Window

	session  *capture.Session
	bus      events.EventBus
	engine   extract.Engine
	capturer cv.Capturer
	db       *database.DB
	logger   *logging.Logger

	mu      sync.RWMutex
	library *library.Library

	// Recording state for the running session
	recorder       *database.Recorder
	stopRecordings func()

	editorTab  *EditorTab
	captureTab *CaptureTab
	resultsTab *ResultsTab
	logTab     *LogTab
	configTab  *ConfigTab

	contentArea *fyne.Container
	currentTab  int

	uiBus *EventBus
}

// NewController creates a new GUI controller
func NewController(deps Dependencies, app fyne.App, window fyne.Window) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewLogger("gui")
	}

	ctrl := &Controller{
		config:     deps.Config,
		configPath: deps.ConfigPath,
		app:        app,
		window:     window,
		session:    deps.Session,
		bus:        deps.Bus,
		engine:     deps.Engine,
		capturer:   deps.Capturer,
		db:         deps.DB,
		logger:     logger,
		uiBus:      NewEventBus(256, logger),
	}
	if ctrl.configPath == "" {
		ctrl.configPath = config.DefaultPath
	}

	ctrl.library, _ = library.New("", nil, deps.Config.OutputDirectory)

	ctrl.editorTab = NewEditorTab(ctrl)
	ctrl.captureTab = NewCaptureTab(ctrl)
	ctrl.resultsTab = NewResultsTab(ctrl)
	ctrl.logTab = NewLogTab(ctrl)
	ctrl.configTab = NewConfigTab(ctrl)

	ctrl.setupEventHandlers()
	if ctrl.bus != nil {
		ctrl.uiBus.Bind(ctrl.bus)
	}
	ctrl.uiBus.Start(50 * time.Millisecond)

	return ctrl
}

// BuildUI constructs the main UI with horizontal tabs
func (c *Controller) BuildUI() fyne.CanvasObject {
	tabButtons := container.NewHBox(
		widget.NewButton("Library", func() { c.switchTab(0) }),
		widget.NewButton("Capture", func() { c.switchTab(1) }),
		widget.NewButton("Results", func() { c.switchTab(2) }),
		widget.NewButton("Event Log", func() { c.switchTab(3) }),
		widget.NewButton("Settings", func() { c.switchTab(4) }),
	)

	c.contentArea = container.NewStack(
		c.editorTab.Build(),
		c.captureTab.Build(),
		c.resultsTab.Build(),
		c.logTab.Build(),
		c.configTab.Build(),
	)

	c.editorTab.Refresh()
	c.captureTab.Refresh()
	c.showTab(0)

	return container.NewBorder(tabButtons, nil, nil, nil, c.contentArea)
}

func (c *Controller) switchTab(index int) {
	c.mu.Lock()
	c.currentTab = index
	c.mu.Unlock()

	c.showTab(index)
}

func (c *Controller) showTab(index int) {
	if c.contentArea == nil {
		return
	}
	for i, obj := range c.contentArea.Objects {
		if i == index {
			obj.Show()
		} else {
			obj.Hide()
		}
	}
	c.contentArea.Refresh()
}

// Library returns the library being edited
func (c *Controller) Library() *library.Library {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.library
}

// SetLibrary replaces the library being edited
func (c *Controller) SetLibrary(lib *library.Library) {
	c.mu.Lock()
	c.library = lib
	c.mu.Unlock()

	c.editorTab.Refresh()
}

// OpenLibrary loads a library file into the editor
func (c *Controller) OpenLibrary(path string) {
	c.editorTab.OpenLibrary(path)
}

// GetConfig returns the current configuration
func (c *Controller) GetConfig() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// UpdateConfig replaces the configuration used by the next capture
func (c *Controller) UpdateConfig(cfg *config.Config) {
	c.mu.Lock()
	c.config = cfg
	c.mu.Unlock()
}

// captureConfig turns the open library and the tab's options into a session config
func (c *Controller) captureConfig(opts CaptureOptions) (capture.Config, error) {
	cfg := c.GetConfig()
	lib := c.Library()

	region, err := cfg.CaptureRegion()
	if err != nil {
		return capture.Config{}, err
	}
	outputDirectory := cfg.OutputDirectory
	if libraryLoaded(lib) {
		// Rule boxes are relative to the library's region, whole screen included
		region = lib.CaptureRegion
		if lib.OutputDirectory != "" {
			outputDirectory = lib.OutputDirectory
		}
	}

	sc := capture.Config{
		Period:          opts.Period,
		Region:          region,
		OutputDirectory: outputDirectory,
		SaveFrames:      opts.SaveFrames,
		Capturer:        c.capturer,
		FolderLayout:    cfg.FolderLayout,
		FrameLayout:     cfg.FrameLayout,
	}
	if opts.Analyze && lib != nil && lib.Len() > 0 {
		if c.engine == nil {
			return capture.Config{}, fmt.Errorf("no extraction engine configured")
		}
		sc.Analyzer = capture.NewLibraryAnalyzer(c.engine, lib.Rules())
	}
	return sc, nil
}

// libraryLoaded reports whether lib was opened or has rules, as opposed to
// the blank library the window starts with
func libraryLoaded(lib *library.Library) bool {
	return lib != nil && (lib.DestinationPath != "" || lib.Len() > 0)
}

// StartCapture starts the session with the open library. It does nothing
// while a session is already running.
func (c *Controller) StartCapture(opts CaptureOptions) error {
	if c.session.IsRunning() {
		return nil
	}

	sc, err := c.captureConfig(opts)
	if err != nil {
		return err
	}

	var rec *database.Recorder
	if opts.Record && c.db != nil && sc.Analyzer != nil {
		libraryPath := ""
		if lib := c.Library(); lib != nil {
			libraryPath = lib.DestinationPath
		}
		rec, err = c.db.BeginSession(libraryPath, "", opts.Period, time.Now())
		if err != nil {
			return fmt.Errorf("failed to record session: %w", err)
		}
		sc.Sink = rec
	}

	if err := c.session.Start(context.Background(), sc); err != nil {
		if rec != nil {
			c.db.DeleteSession(rec.SessionID())
		}
		return err
	}

	if rec != nil {
		if err := rec.SetFolder(c.session.Info().Folder); err != nil {
			c.logger.Error("Failed to store session folder", err)
		}
		stop := func() {}
		if c.bus != nil {
			stop = c.db.RecordErrors(c.bus, rec.SessionID())
		}
		c.mu.Lock()
		c.recorder = rec
		c.stopRecordings = stop
		c.mu.Unlock()
	}
	return nil
}

// StopCapture stops the session and waits for the tick in progress
func (c *Controller) StopCapture() {
	c.session.Stop()
}

// finishRecording closes the database session once capture has stopped
func (c *Controller) finishRecording() {
	c.mu.Lock()
	rec := c.recorder
	stop := c.stopRecordings
	c.recorder = nil
	c.stopRecordings = nil
	c.mu.Unlock()

	if rec == nil {
		return
	}
	if stop != nil {
		stop()
	}
	info := c.session.Info()
	if err := rec.End(info.StoppedAt, info.Ticks); err != nil {
		c.logger.Error("Failed to end recorded session", err)
	}
}

// grabFrame captures one frame, cropped to region when set
func (c *Controller) grabFrame(region *library.Box) (*image.RGBA, error) {
	source := c.capturer
	if source == nil {
		screen, err := cv.NewScreenCapture()
		if err != nil {
			return nil, err
		}
		source = screen
	}
	if region != nil {
		source = cv.NewRegionCapture(source, cv.RegionFromRect(region.X, region.Y, region.Width, region.Height))
	}
	frame, err := source.CaptureFrame()
	if err != nil {
		return nil, err
	}
	return cv.Normalize(frame), nil
}

// Shutdown stops capture and releases the event bus
func (c *Controller) Shutdown() {
	c.session.Stop()
	c.finishRecording()
	c.uiBus.Stop()
}

func (c *Controller) publish(event events.Event) {
	if c.bus != nil {
		c.bus.Publish(event)
		return
	}
	// Without a domain bus, events go straight to the window
	c.uiBus.Publish(event)
}

// showError logs err and shows it in a dialog. Call on the UI thread.
func (c *Controller) showError(message string, err error) {
	c.logger.Error(message, err)
	if c.logTab != nil {
		c.logTab.AddLog(logging.LogLevelError, "gui", fmt.Sprintf("%s: %v", message, err))
	}
	if c.window != nil {
		dialog.ShowError(fmt.Errorf("%s: %w", message, err), c.window)
	}
}

// setupEventHandlers routes bus events to the tabs
func (c *Controller) setupEventHandlers() {
	c.uiBus.SubscribeAll(c.logTab.AddEvent)

	c.uiBus.Subscribe(events.EventTypeSessionStarted, func(events.Event) {
		c.captureTab.Refresh()
	})

	c.uiBus.Subscribe(events.EventTypeSessionStopped, func(events.Event) {
		c.finishRecording()
		c.captureTab.Refresh()
	})

	c.uiBus.Subscribe(events.EventTypeFrameCaptured, func(events.Event) {
		c.captureTab.Refresh()
	})

	c.uiBus.Subscribe(events.EventTypeFrameAnalyzed, func(e events.Event) {
		report, _ := e.Data["report"].(*capture.Report)
		c.resultsTab.Update(report, c.session.Metrics())
		c.captureTab.Refresh()
	})

	c.uiBus.Subscribe(events.EventTypeError, func(e events.Event) {
		_, message := describeEvent(e)
		if c.app != nil {
			c.app.SendNotification(fyne.NewNotification("Screen Mapper", message))
		}
	})
}
