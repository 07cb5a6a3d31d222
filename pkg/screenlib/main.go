package screenlib

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"time"

	"jordanella.com/screen-mapper/internal/capture"
	"jordanella.com/screen-mapper/internal/config"
	"jordanella.com/screen-mapper/internal/cv"
	"jordanella.com/screen-mapper/internal/logging"
)

// GrabFunc captures the frame a library's rules are evaluated on
type GrabFunc func() (*image.RGBA, error)

// Main runs rules on frames from grab until interrupted, printing one report
// per tick. Saved frames go under outputDirectory, or the settings file's
// directory when it is empty. It exits the process on failure.
func Main(grab GrabFunc, outputDirectory string, rules ...NamedRule) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := Run(ctx, os.Args[1:], os.Stdout, grab, outputDirectory, rules...); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Run is Main with explicit arguments and output. It returns when ctx is
// cancelled, or after one tick with -once.
func Run(ctx context.Context, args []string, stdout io.Writer, grab GrabFunc, outputDirectory string, rules ...NamedRule) error {
	fs := flag.NewFlagSet("screenlib", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	period := fs.Duration("period", 0, "Time between captures (default: periodMs from the settings file)")
	once := fs.Bool("once", false, "Capture and evaluate a single frame, then exit")
	configPath := fs.String("config", "", "Path to the settings file (default: $"+ConfigEnv+" or "+config.DefaultPath+")")
	save := fs.Bool("save", false, "Save every frame under the output directory (default: saveFrames from the settings file)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *configPath != "" {
		setSettingsPath(*configPath)
	}

	cfg, err := config.Load(settingsPath(), logging.NewLogger("screenlib").SetOutputs(io.Discard))
	if err != nil {
		return err
	}
	if *period <= 0 {
		*period = cfg.Period()
	}
	saveFrames := cfg.SaveFrames
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "save" {
			saveFrames = *save
		}
	})

	if outputDirectory == "" {
		outputDirectory = cfg.OutputDirectory
	}

	logger := logging.NewLogger("screenlib").SetMinLevel(logging.ParseLevel(cfg.LogLevel))
	logger.SetOutputs(os.Stderr)

	sessionCfg := capture.Config{
		Period:          *period,
		OutputDirectory: outputDirectory,
		SaveFrames:      saveFrames,
		FolderLayout:    cfg.FolderLayout,
		FrameLayout:     cfg.FrameLayout,
		Capturer:        cv.CaptureFunc(grab),
		Analyzer:        rulesAnalyzer(rules),
		Sink:            NewPrintSink(stdout),
	}
	if *once {
		sessionCfg.MaxTicks = 1
	}

	session := capture.NewSession(logger, nil)
	if err := session.Start(ctx, sessionCfg); err != nil {
		return err
	}
	<-session.Done()

	if info := session.Info(); info.Ticks > 0 && info.CaptureFailures == info.Ticks {
		return errors.New("every capture failed")
	}
	return nil
}

func rulesAnalyzer(rules []NamedRule) capture.Analyzer {
	return capture.AnalyzerFunc(func(ctx context.Context, frame *image.RGBA) []capture.RuleResult {
		results := make([]capture.RuleResult, 0, len(rules))
		for _, rule := range rules {
			start := time.Now()
			value, err := rule.Evaluate(frame)
			results = append(results, capture.RuleResult{
				Name:     rule.Name,
				Kind:     rule.Kind,
				Value:    value,
				Err:      err,
				Duration: time.Since(start),
			})
		}
		return results
	})
}

// PrintSink writes reports as plain text
type PrintSink struct {
	w io.Writer
}

// NewPrintSink creates a sink writing to w
func NewPrintSink(w io.Writer) *PrintSink {
	return &PrintSink{w: w}
}

// Consume prints the tick header and one line per rule
func (ps *PrintSink) Consume(report *capture.Report) error {
	if _, err := fmt.Fprintf(ps.w, "tick %d at %s\n", report.Tick, report.CapturedAt.Format("15:04:05")); err != nil {
		return err
	}
	for _, res := range report.Results {
		var err error
		if res.Err != nil {
			_, err = fmt.Fprintf(ps.w, "  %s: error: %v\n", res.Name, res.Err)
		} else {
			_, err = fmt.Fprintf(ps.w, "  %s = %s\n", res.Name, res.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
