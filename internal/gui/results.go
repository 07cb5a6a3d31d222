package gui

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"jordanella.com/screen-mapper/internal/capture"
	"jordanella.com/screen-mapper/internal/gui/components"
	"jordanella.com/screen-mapper/internal/logging"
)

// ResultRow is the latest value of one rule plus its running statistics
type ResultRow struct {
	Name        string
	Kind        string
	Value       string
	Status      string
	Evaluations int64
	Failures    int64
	AvgDuration time.Duration
}

var resultColumns = []string{"Rule", "Kind", "Value", "Status", "Evaluations", "Failures", "Avg"}

func (r ResultRow) cell(col int) string {
	switch col {
	case 0:
		return r.Name
	case 1:
		return r.Kind
	case 2:
		return r.Value
	case 3:
		return r.Status
	case 4:
		return strconv.FormatInt(r.Evaluations, 10)
	case 5:
		return strconv.FormatInt(r.Failures, 10)
	case 6:
		return r.AvgDuration.Round(time.Millisecond).String()
	}
	return ""
}

// buildResultRows merges a tick's report with per-rule statistics. Rows follow
// the report's rule order; rules only known from stats come after, by name.
func buildResultRows(report *capture.Report, stats map[string]capture.RuleStats) []ResultRow {
	var rows []ResultRow
	seen := make(map[string]bool)

	if report != nil {
		for _, res := range report.Results {
			row := ResultRow{Name: res.Name, Kind: res.Kind.String(), Status: "OK"}
			if res.Err != nil {
				row.Status = "Failed"
				row.Value = res.Err.Error()
			} else {
				row.Value = res.Value.String()
			}
			applyStats(&row, stats[res.Name])
			rows = append(rows, row)
			seen[res.Name] = true
		}
	}

	var rest []string
	for name := range stats {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		row := ResultRow{Name: name, Status: "Idle"}
		applyStats(&row, stats[name])
		rows = append(rows, row)
	}
	return rows
}

func applyStats(row *ResultRow, s capture.RuleStats) {
	row.Evaluations = s.TotalEvaluations
	row.Failures = s.FailureCount
	row.AvgDuration = s.AverageDuration
	if row.Status == "Failed" && s.ConsecutiveErrors >= capture.DefaultUnhealthyThreshold {
		row.Status = "Unhealthy"
	}
}

// writeResultsCSV writes rows with a header line
func writeResultsCSV(w io.Writer, rows []ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultColumns); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(resultColumns))
		for i := range record {
			record[i] = row.cell(i)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ResultsTab shows the latest value of every rule
type ResultsTab struct {
	controller *Controller

	rows     []ResultRow
	lastTick int
	rowsMu   sync.RWMutex

	table     *widget.Table
	tickLabel *widget.Label
}

// NewResultsTab creates a new results tab
func NewResultsTab(ctrl *Controller) *ResultsTab {
	return &ResultsTab{controller: ctrl}
}

// Build constructs the results table
func (r *ResultsTab) Build() fyne.CanvasObject {
	r.tickLabel = widget.NewLabel("No frames analyzed yet")

	r.table = widget.NewTableWithHeaders(
		func() (int, int) {
			r.rowsMu.RLock()
			defer r.rowsMu.RUnlock()
			return len(r.rows), len(resultColumns)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("placeholder value")
		},
		func(id widget.TableCellID, cell fyne.CanvasObject) {
			r.rowsMu.RLock()
			defer r.rowsMu.RUnlock()
			if id.Row < 0 || id.Row >= len(r.rows) {
				return
			}
			label := cell.(*widget.Label)
			row := r.rows[id.Row]
			label.SetText(row.cell(id.Col))
			label.Importance = widget.MediumImportance
			if id.Col == 3 {
				switch row.Status {
				case "Failed", "Unhealthy":
					label.Importance = widget.DangerImportance
				case "OK":
					label.Importance = widget.SuccessImportance
				}
			}
		},
	)
	r.table.ShowHeaderColumn = false
	r.table.CreateHeader = func() fyne.CanvasObject {
		return widget.NewLabel("header")
	}
	r.table.UpdateHeader = func(id widget.TableCellID, cell fyne.CanvasObject) {
		if id.Col >= 0 && id.Col < len(resultColumns) {
			cell.(*widget.Label).SetText(resultColumns[id.Col])
		}
	}
	for col, width := range []float32{160, 120, 260, 90, 90, 80, 80} {
		r.table.SetColumnWidth(col, width)
	}

	exportBtn := widget.NewButton("Export CSV", r.exportResults)
	clearBtn := widget.NewButton("Clear", r.Clear)

	return container.NewBorder(
		container.NewVBox(
			components.SectionHeader("Rule Results", clearBtn, exportBtn),
			r.tickLabel,
		),
		nil, nil, nil,
		r.table,
	)
}

// Update shows a new report. Call on the UI thread.
func (r *ResultsTab) Update(report *capture.Report, stats map[string]capture.RuleStats) {
	rows := buildResultRows(report, stats)

	r.rowsMu.Lock()
	r.rows = rows
	if report != nil {
		r.lastTick = report.Tick
	}
	tick := r.lastTick
	r.rowsMu.Unlock()

	if r.tickLabel != nil && report != nil {
		r.tickLabel.SetText(fmt.Sprintf("Tick %d at %s, %d of %d rules failed",
			tick, report.CapturedAt.Format("15:04:05"), report.Failures(), len(report.Results)))
	}
	if r.table != nil {
		r.table.Refresh()
	}
}

// Rows returns a copy of the displayed rows
func (r *ResultsTab) Rows() []ResultRow {
	r.rowsMu.RLock()
	defer r.rowsMu.RUnlock()

	rows := make([]ResultRow, len(r.rows))
	copy(rows, r.rows)
	return rows
}

// Clear empties the table
func (r *ResultsTab) Clear() {
	r.rowsMu.Lock()
	r.rows = nil
	r.lastTick = 0
	r.rowsMu.Unlock()

	if r.tickLabel != nil {
		r.tickLabel.SetText("No frames analyzed yet")
	}
	if r.table != nil {
		r.table.Refresh()
	}
}

func (r *ResultsTab) exportResults() {
	rows := r.Rows()
	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, r.controller.window)
			return
		}
		if writer == nil {
			return // cancelled
		}
		defer writer.Close()

		if err := writeResultsCSV(writer, rows); err != nil {
			dialog.ShowError(fmt.Errorf("export failed: %w", err), r.controller.window)
			return
		}
		r.controller.logTab.AddLog(logging.LogLevelInfo, "gui", "Results exported to "+writer.URI().Path())
	}, r.controller.window)
	save.SetFileName("results.csv")
	save.Show()
}
