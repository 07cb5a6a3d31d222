package gui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"jordanella.com/screen-mapper/internal/capture"
	"jordanella.com/screen-mapper/internal/gui/components"
)

// CaptureTab starts and stops the capture session
type CaptureTab struct {
	controller *Controller

	periodEntry  *widget.Entry
	saveCheck    *widget.Check
	analyzeCheck *widget.Check
	recordCheck  *widget.Check

	startBtn *widget.Button
	stopBtn  *widget.Button
	status   *components.StatusChip

	folderRow    *components.InfoRow
	ticksRow     *components.InfoRow
	failuresRow  *components.InfoRow
	lastFrameRow *components.InfoRow
	unhealthyRow *components.InfoRow
}

// NewCaptureTab creates the capture controls
func NewCaptureTab(ctrl *Controller) *CaptureTab {
	return &CaptureTab{controller: ctrl}
}

// Build constructs the capture UI
func (t *CaptureTab) Build() fyne.CanvasObject {
	cfg := t.controller.GetConfig()

	t.periodEntry = widget.NewEntry()
	t.periodEntry.SetText(strconv.Itoa(cfg.PeriodMs))

	t.saveCheck = widget.NewCheck("Save frames", nil)
	t.saveCheck.SetChecked(cfg.SaveFrames)

	t.analyzeCheck = widget.NewCheck("Evaluate library rules", nil)
	t.analyzeCheck.SetChecked(true)

	t.recordCheck = widget.NewCheck("Record results to database", nil)
	t.recordCheck.SetChecked(cfg.RecordResults && t.controller.db != nil)
	if t.controller.db == nil {
		t.recordCheck.Disable()
	}

	t.startBtn = components.PrimaryButton("Start", theme.MediaPlayIcon(), t.start)
	t.stopBtn = components.DangerButton("Stop", theme.MediaStopIcon(), t.stop)
	t.status = components.NewStatusChip("Idle")

	t.folderRow = components.NewInfoRow("Folder", "-")
	t.ticksRow = components.NewInfoRow("Ticks", "0")
	t.failuresRow = components.NewInfoRow("Failures", "0")
	t.lastFrameRow = components.NewInfoRow("Last frame", "-")
	t.unhealthyRow = components.NewInfoRow("Unhealthy rules", "none")

	options := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Period (ms)", Widget: t.periodEntry},
			{Text: "", Widget: t.saveCheck},
			{Text: "", Widget: t.analyzeCheck},
			{Text: "", Widget: t.recordCheck},
		},
	}

	return container.NewVScroll(container.NewVBox(
		components.Heading("Capture"),
		options,
		container.NewHBox(t.startBtn, t.stopBtn, t.status.Container),
		widget.NewSeparator(),
		components.Subheading("Session"),
		t.folderRow.Container,
		t.ticksRow.Container,
		t.failuresRow.Container,
		t.lastFrameRow.Container,
		t.unhealthyRow.Container,
	))
}

func (t *CaptureTab) options() (CaptureOptions, error) {
	period, err := parsePeriodField(t.periodEntry.Text)
	if err != nil {
		return CaptureOptions{}, err
	}
	return CaptureOptions{
		Period:     period,
		SaveFrames: t.saveCheck.Checked,
		Analyze:    t.analyzeCheck.Checked,
		Record:     t.recordCheck.Checked,
	}, nil
}

func (t *CaptureTab) start() {
	opts, err := t.options()
	if err != nil {
		t.controller.showError("Invalid capture settings", err)
		return
	}
	if err := t.controller.StartCapture(opts); err != nil {
		t.controller.showError("Failed to start capture", err)
		return
	}
	t.Refresh()
}

// stop waits for the tick in progress, so it runs off the UI thread
func (t *CaptureTab) stop() {
	t.stopBtn.Disable()
	go func() {
		t.controller.StopCapture()
		fyne.Do(t.Refresh)
	}()
}

// Refresh shows the session's current state
func (t *CaptureTab) Refresh() {
	if t.status == nil {
		return
	}
	info := t.controller.session.Info()

	if info.Running {
		t.status.SetStatus("Running")
		t.startBtn.Disable()
		t.stopBtn.Enable()
		t.periodEntry.Disable()
	} else {
		t.status.SetStatus("Idle")
		t.startBtn.Enable()
		t.stopBtn.Disable()
		t.periodEntry.Enable()
	}

	t.folderRow.SetValue(orDash(info.Folder))
	t.ticksRow.SetValue(strconv.Itoa(info.Ticks))
	t.failuresRow.SetValue(failureSummary(info))
	t.lastFrameRow.SetValue(orDash(info.LastFrame))

	unhealthy := t.controller.session.UnhealthyRules(capture.DefaultUnhealthyThreshold)
	sort.Strings(unhealthy)
	if len(unhealthy) == 0 {
		t.unhealthyRow.SetValue("none")
	} else {
		t.unhealthyRow.SetValue(strings.Join(unhealthy, ", "))
	}
}

func failureSummary(info capture.Info) string {
	return fmt.Sprintf("%d capture, %d save", info.CaptureFailures, info.SaveFailures)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
