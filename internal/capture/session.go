package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"jordanella.com/screen-mapper/internal/cv"
	mapperr "jordanella.com/screen-mapper/internal/errors"
	"jordanella.com/screen-mapper/internal/events"
	"jordanella.com/screen-mapper/internal/library"
	"jordanella.com/screen-mapper/internal/logging"
)

// Config describes one capture session
type Config struct {
	Period          time.Duration
	Region          *library.Box // nil captures the full frame
	OutputDirectory string
	SaveFrames      bool

	// Capturer supplies frames. nil uses the screen.
	Capturer cv.Capturer

	FolderLayout string // time layout of the session folder name
	FrameLayout  string // time layout of frame file names

	// MaxTicks ends the session after that many ticks. 0 runs until stopped.
	MaxTicks int

	// Analyzer, when set, evaluates every frame and Sink receives the reports.
	Analyzer Analyzer
	Sink     Sink
}

// Info is a snapshot of a session's state
type Info struct {
	Running         bool
	Folder          string
	Period          time.Duration
	StartedAt       time.Time
	StoppedAt       time.Time
	Ticks           int
	CaptureFailures int
	SaveFailures    int
	LastFrame       string
}

// Session runs at most one timed capture loop at a time.
// States are Idle and Running; Start and Stop move between them.
type Session struct {
	logger *logging.Logger
	bus    events.EventBus
	clock  Clock

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	info    Info
	metrics map[string]*RuleMetrics
}

// NewSession creates an idle session. bus may be nil.
func NewSession(logger *logging.Logger, bus events.EventBus) *Session {
	if logger == nil {
		logger = logging.NewLogger("capture")
	}
	done := make(chan struct{})
	close(done)
	return &Session{
		logger:  logger,
		bus:     bus,
		clock:   realClock{},
		done:    done,
		metrics: make(map[string]*RuleMetrics),
	}
}

// WithClock replaces the session's clock. Call before Start.
func (s *Session) WithClock(clock Clock) *Session {
	s.clock = clock
	return s
}

// run holds what the loop goroutine needs for one session
type run struct {
	cfg      Config
	capturer cv.Capturer
	folder   string
}

// Start creates the session folder and begins capturing. While a session is
// running Start does nothing and returns nil. A folder that cannot be created
// fails with DIRECTORY_CREATION_FAILED and the session stays idle.
func (s *Session) Start(ctx context.Context, cfg Config) error {
	r, loopCtx, done, err := s.begin(ctx, cfg)
	if err != nil || r == nil {
		return err
	}

	s.logger.InfoWithContext("Capture session started", map[string]interface{}{
		"folder":    r.folder,
		"period":    cfg.Period.String(),
		"analyzing": cfg.Analyzer != nil,
	})
	s.publish(events.NewSessionStartedEvent(r.folder, cfg.Period, cfg.Analyzer != nil))

	go s.loop(loopCtx, r, done)
	return nil
}

// begin moves the session to Running. A nil run with a nil error means a
// session was already running.
func (s *Session) begin(ctx context.Context, cfg Config) (*run, context.Context, chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug("Start ignored: session already running")
		return nil, nil, nil, nil
	}

	if cfg.Period <= 0 {
		return nil, nil, nil, fmt.Errorf("capture period must be positive, got %v", cfg.Period)
	}
	if cfg.Region != nil && !cfg.Region.Valid() {
		return nil, nil, nil, mapperr.NewInvalidBox("captureRegion", cfg.Region.Width, cfg.Region.Height)
	}

	capturer, err := s.resolveCapturer(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	startedAt := s.clock.Now()
	folder := filepath.Join(cfg.OutputDirectory, FolderName(startedAt, cfg.FolderLayout))
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, nil, nil, mapperr.NewDirectoryCreationFailed(folder, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.running = true
	s.cancel = cancel
	s.done = done
	s.info = Info{
		Running:   true,
		Folder:    folder,
		Period:    cfg.Period,
		StartedAt: startedAt,
	}

	return &run{cfg: cfg, capturer: capturer, folder: folder}, loopCtx, done, nil
}

func (s *Session) resolveCapturer(cfg Config) (cv.Capturer, error) {
	capturer := cfg.Capturer
	if capturer == nil {
		screen, err := cv.NewScreenCapture()
		if err != nil {
			return nil, mapperr.NewCaptureFailed(err)
		}
		capturer = screen
	}
	if cfg.Region != nil {
		r := cfg.Region
		capturer = cv.NewRegionCapture(capturer, cv.RegionFromRect(r.X, r.Y, r.Width, r.Height))
	}
	return capturer, nil
}

// Stop cancels the running session and waits for the tick in progress to
// finish. No tick starts after Stop is called. Stop must not be called from a Sink.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Done returns a channel closed when the current session ends. It is already
// closed while the session is idle.
func (s *Session) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// IsRunning reports whether a session is in progress
func (s *Session) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Info returns a snapshot of the current or most recent session
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Metrics returns per-rule statistics accumulated across sessions
func (s *Session) Metrics() map[string]RuleStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]RuleStats, len(s.metrics))
	for name, m := range s.metrics {
		stats[name] = m.Stats()
	}
	return stats
}

// UnhealthyRules lists rules with at least threshold consecutive failures
func (s *Session) UnhealthyRules(threshold int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var unhealthy []string
	for name, m := range s.metrics {
		if !m.IsHealthy(threshold) {
			unhealthy = append(unhealthy, name)
		}
	}
	return unhealthy
}

// loop captures once immediately, then once per period, until cancelled.
// Ticks never overlap.
func (s *Session) loop(ctx context.Context, r *run, done chan struct{}) {
	defer s.finish(r, done)

	ticker := s.clock.NewTicker(r.cfg.Period)
	defer ticker.Stop()

	// In-flight work completes even when Stop lands mid-tick.
	tickCtx := context.WithoutCancel(ctx)

	for tick := 1; ; tick++ {
		if ctx.Err() != nil {
			return
		}
		if err := s.tick(tickCtx, r, tick); errors.Is(err, io.EOF) {
			s.logger.Info("Frame source exhausted")
			return
		}
		if r.cfg.MaxTicks > 0 && tick >= r.cfg.MaxTicks {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
	}
}

func (s *Session) finish(r *run, done chan struct{}) {
	s.mu.Lock()
	s.cancel()
	s.running = false
	s.info.Running = false
	s.info.StoppedAt = s.clock.Now()
	ticks := s.info.Ticks
	s.mu.Unlock()

	s.logger.InfoWithContext("Capture session stopped", map[string]interface{}{
		"folder": r.folder,
		"ticks":  ticks,
	})
	s.publish(events.NewSessionStoppedEvent(r.folder, ticks))
	close(done)
}

// tick captures, persists and analyzes one frame. Only io.EOF from the
// capturer is returned; every other failure is logged and the loop goes on.
func (s *Session) tick(ctx context.Context, r *run, n int) error {
	capturedAt := s.clock.Now()

	frame, err := r.capturer.CaptureFrame()
	if errors.Is(err, io.EOF) {
		return err
	}

	s.mu.Lock()
	s.info.Ticks = n
	if err != nil {
		s.info.CaptureFailures++
	}
	s.mu.Unlock()

	if err != nil {
		s.fail("Frame capture failed", mapperr.NewCaptureFailed(err), n)
		return nil
	}
	frame = cv.Normalize(frame)

	framePath := ""
	if r.cfg.SaveFrames {
		path := filepath.Join(r.folder, FrameName(capturedAt, r.cfg.FrameLayout))
		if err := cv.SavePNG(frame, path); err != nil {
			s.mu.Lock()
			s.info.SaveFailures++
			s.mu.Unlock()
			s.fail("Frame save failed", err, n)
		} else {
			framePath = path
			s.mu.Lock()
			s.info.LastFrame = path
			s.mu.Unlock()
		}
	}
	s.publish(events.NewFrameCapturedEvent(n, framePath))

	if r.cfg.Analyzer != nil {
		s.analyze(ctx, r, n, capturedAt, framePath, frame)
	}
	return nil
}

func (s *Session) analyze(ctx context.Context, r *run, n int, capturedAt time.Time, framePath string, frame *image.RGBA) {
	report := &Report{
		Tick:       n,
		CapturedAt: capturedAt,
		FramePath:  framePath,
		Results:    r.cfg.Analyzer.Analyze(ctx, frame),
	}

	for _, res := range report.Results {
		s.ruleMetrics(res.Name).RecordEvaluation(capturedAt, res.Duration, res.Err)
	}

	if r.cfg.Sink != nil {
		if err := r.cfg.Sink.Consume(report); err != nil {
			s.fail("Report sink failed", err, n)
		}
	}
	s.publish(events.NewFrameAnalyzedEvent(n, report.Failures(), report))
}

func (s *Session) ruleMetrics(name string) *RuleMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.metrics[name]
	if !ok {
		m = NewRuleMetrics()
		s.metrics[name] = m
	}
	return m
}

func (s *Session) fail(message string, err error, tick int) {
	s.logger.ErrorWithContext(message, err, map[string]interface{}{"tick": tick})
	s.publish(events.NewErrorEvent("capture", message, err))
}

func (s *Session) publish(event events.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}
