package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"jordanella.com/screen-mapper/internal/capture"
	"jordanella.com/screen-mapper/internal/cv"
	"jordanella.com/screen-mapper/internal/database"
	"jordanella.com/screen-mapper/internal/events"
	"jordanella.com/screen-mapper/internal/extract"
	"jordanella.com/screen-mapper/internal/library"
	"jordanella.com/screen-mapper/internal/logging"
	"jordanella.com/screen-mapper/internal/ocr"
)

// sessionFlags are shared by record and run
type sessionFlags struct {
	periodMs   int
	ticks      int
	from       string
	loop       bool
	output     string
	saveFrames bool
	record     bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.periodMs, "period", 0, "Capture period in milliseconds (default from settings)")
	cmd.Flags().IntVar(&f.ticks, "ticks", 0, "Stop after this many frames (0 runs until interrupted)")
	cmd.Flags().StringVar(&f.from, "from", "", "Replay frames from a directory instead of the screen")
	cmd.Flags().BoolVar(&f.loop, "loop", false, "Restart the --from replay after the last frame")
	cmd.Flags().StringVar(&f.output, "output", "", "Directory for session folders (default from library or settings)")
	cmd.Flags().BoolVar(&f.record, "record", false, "Record the session to the results database (default from settings)")
}

// config fills the parts of a session config common to both commands
func (f *sessionFlags) config(cmd *cobra.Command, env *environment) (capture.Config, error) {
	period := env.cfg.Period()
	if f.periodMs != 0 {
		if f.periodMs < 0 {
			return capture.Config{}, fmt.Errorf("--period must be positive, got %d", f.periodMs)
		}
		period = time.Duration(f.periodMs) * time.Millisecond
	}

	region, err := env.cfg.CaptureRegion()
	if err != nil {
		return capture.Config{}, err
	}

	sc := capture.Config{
		Period:          period,
		Region:          region,
		OutputDirectory: env.cfg.OutputDirectory,
		FolderLayout:    env.cfg.FolderLayout,
		FrameLayout:     env.cfg.FrameLayout,
		MaxTicks:        f.ticks,
	}
	if f.output != "" {
		sc.OutputDirectory = f.output
	}
	if !cmd.Flags().Changed("record") {
		f.record = env.cfg.RecordResults
	}

	if f.from != "" {
		replay, err := cv.NewDirectoryCapture(f.from, f.loop)
		if err != nil {
			return capture.Config{}, err
		}
		sc.Capturer = replay
	}
	return sc, nil
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	var flags sessionFlags
	var region string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Save frames of the screen at a fixed period",
		Long: `Record captures the screen, or a region of it, once immediately and then
once per period. Frames are saved as PNG files in a new folder named after
the session's start time. Stop with Ctrl+C or --ticks.`,
		Example: `  screenmapper record --period 500
  screenmapper record --region 0,0,800,600 --ticks 20 --output captures`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			sc, err := flags.config(cmd, env)
			if err != nil {
				return err
			}
			if region != "" {
				if sc.Region, err = parseRegion(region); err != nil {
					return err
				}
			}
			sc.SaveFrames = true

			return runSession(cmd.Context(), cmd, env, sc, "", flags.record)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&region, "region", "", "Capture region x,y,width,height (default from settings)")

	return cmd
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "run <library.go>",
		Short: "Capture frames and evaluate a library's rules on each",
		Long: `Run starts a capture session with the library's region and output
directory, evaluating every rule on every frame. Results are logged and,
with --record, stored in the results database.

Frames replayed with --from are taken as already cropped to the region.`,
		Example: `  screenmapper run libs/hud.go --period 1000 --record
  screenmapper run libs/hud.go --from "captures/03 05_10:00:00" --save-frames=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := library.Load(args[0])
			if err != nil {
				return err
			}

			env, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			sc, err := flags.config(cmd, env)
			if err != nil {
				return err
			}
			applyLibrary(&sc, lib, flags.output != "")
			if flags.from != "" {
				sc.Region = nil
			}
			sc.SaveFrames = env.cfg.SaveFrames
			if cmd.Flags().Changed("save-frames") {
				sc.SaveFrames = flags.saveFrames
			}

			engine, err := newEngine(env)
			if err != nil {
				return err
			}
			sc.Analyzer = capture.NewLibraryAnalyzer(engine, lib.Rules())
			sc.Sink = capture.NewLogSink(env.logger.Named("results"))

			return runSession(cmd.Context(), cmd, env, sc, args[0], flags.record)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.saveFrames, "save-frames", false, "Save frames as well as evaluating them (default from settings)")

	return cmd
}

// applyLibrary points a session at the library's frame. The library's region
// replaces the settings region even when it is nil, since rule boxes are
// relative to it.
func applyLibrary(sc *capture.Config, lib *library.Library, outputFlagSet bool) {
	sc.Region = lib.CaptureRegion
	if lib.OutputDirectory != "" && !outputFlagSet {
		sc.OutputDirectory = lib.OutputDirectory
	}
}

func newEngine(env *environment) (*extract.DefaultEngine, error) {
	recognizer, err := ocr.New(env.cfg)
	if err != nil {
		return nil, err
	}
	return extract.NewDefaultEngine(recognizer, nil), nil
}

// runSession runs one capture session until ctx is cancelled or the session
// ends by itself, then prints a summary.
func runSession(ctx context.Context, cmd *cobra.Command, env *environment, sc capture.Config, libraryPath string, record bool) error {
	bus := events.NewEventBus(256)
	defer bus.Stop()

	eventLog := logging.NewEventLogger(bus, env.logger.Named("events"))
	defer eventLog.Close()

	session := capture.NewSession(env.logger.Named("capture"), bus)

	var (
		db  *database.DB
		rec *database.Recorder
		err error
	)
	if record {
		db, err = database.OpenAndMigrate(env.cfg.DatabasePath, env.logger.Named("database"))
		if err != nil {
			return err
		}
		defer db.Close()

		rec, err = db.BeginSession(libraryPath, "", sc.Period, time.Now())
		if err != nil {
			return err
		}
		if sc.Analyzer != nil {
			sc.Sink = capture.MultiSink{sc.Sink, rec}
		}
	}

	if err := session.Start(ctx, sc); err != nil {
		if rec != nil {
			db.DeleteSession(rec.SessionID())
		}
		return err
	}

	var stopRecordingErrors func()
	if rec != nil {
		if err := rec.SetFolder(session.Info().Folder); err != nil {
			env.logger.Error("Failed to store session folder", err)
		}
		stopRecordingErrors = db.RecordErrors(bus, rec.SessionID())
	}

	// Cancelling ctx ends the session loop on its own
	<-session.Done()

	// Flush queued events so every error is logged and recorded
	bus.Stop()
	if stopRecordingErrors != nil {
		stopRecordingErrors()
	}

	info := session.Info()
	if rec != nil {
		if err := rec.End(info.StoppedAt, info.Ticks); err != nil {
			return err
		}
	}

	printSummary(cmd, info, session)
	return nil
}

func printSummary(cmd *cobra.Command, info capture.Info, session *capture.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s: %d ticks in %s\n", info.Folder, info.Ticks,
		info.StoppedAt.Sub(info.StartedAt).Round(time.Millisecond))
	if info.CaptureFailures > 0 || info.SaveFailures > 0 {
		fmt.Fprintf(out, "  %d capture failures, %d save failures\n", info.CaptureFailures, info.SaveFailures)
	}

	stats := session.Metrics()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := stats[name]
		fmt.Fprintf(out, "  %-16s %d evaluated, %d failed, avg %s\n",
			name, s.TotalEvaluations, s.FailureCount, s.AverageDuration.Round(time.Microsecond))
	}

	if unhealthy := session.UnhealthyRules(capture.DefaultUnhealthyThreshold); len(unhealthy) > 0 {
		sort.Strings(unhealthy)
		fmt.Fprintf(out, "  unhealthy: %v\n", unhealthy)
	}
}
