package main

import (
	"flag"
	"log"
	"os"

	"fyne.io/fyne/v2/app"

	"jordanella.com/screen-mapper/internal/capture"
	"jordanella.com/screen-mapper/internal/config"
	"jordanella.com/screen-mapper/internal/database"
	"jordanella.com/screen-mapper/internal/events"
	"jordanella.com/screen-mapper/internal/extract"
	"jordanella.com/screen-mapper/internal/gui"
	"jordanella.com/screen-mapper/internal/logging"
	"jordanella.com/screen-mapper/internal/ocr"
)

func main() {
	configPath := flag.String("config", "", "Settings file (default $SCREENMAPPER_CONFIG or Settings.ini)")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("SCREENMAPPER_CONFIG")
	}
	if path == "" {
		path = config.DefaultPath
	}

	logger := logging.NewLogger("screenmapper")

	// Load configuration
	cfg, err := config.Load(path, logger)
	if err != nil {
		log.Printf("Warning: Failed to load config: %v", err)
		cfg = config.NewDefaultConfig()
	}
	logger.SetMinLevel(logging.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		f, err := logging.OpenLogFile(cfg.LogFile)
		if err != nil {
			log.Printf("Warning: %v", err)
		} else {
			defer f.Close()
			logger.AddOutput(f)
		}
	}

	bus := events.NewEventBus(256)
	defer bus.Stop()
	session := capture.NewSession(logger.Named("capture"), bus)

	recognizer, err := ocr.New(cfg)
	if err != nil {
		log.Printf("Warning: %v", err)
		recognizer = &ocr.Static{Err: ocr.ErrNoBackend}
	}
	engine := extract.NewDefaultEngine(recognizer, nil)

	var db *database.DB
	if cfg.RecordResults {
		db, err = database.OpenAndMigrate(cfg.DatabasePath, logger.Named("database"))
		if err != nil {
			log.Printf("Warning: results will not be recorded: %v", err)
		} else {
			defer db.Close()
		}
	}

	// Create Fyne application
	myApp := app.NewWithID("com.jordanella.screen-mapper")
	myApp.Settings().SetTheme(&gui.MapperTheme{})

	mainWindow := myApp.NewWindow("Screen Mapper")
	mainWindow.Resize(gui.DefaultWindowSize)

	controller := gui.NewController(gui.Dependencies{
		Config:     cfg,
		ConfigPath: path,
		Session:    session,
		Bus:        bus,
		Engine:     engine,
		Logger:     logger.Named("gui"),
		DB:         db,
	}, myApp, mainWindow)

	content := controller.BuildUI()
	if flag.NArg() > 0 {
		controller.OpenLibrary(flag.Arg(0))
	}

	mainWindow.SetContent(content)
	mainWindow.SetMaster()
	mainWindow.ShowAndRun()

	// Cleanup on exit
	controller.Shutdown()
}
