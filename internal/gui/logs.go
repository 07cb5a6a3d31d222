package gui

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"jordanella.com/screen-mapper/internal/capture"
	"jordanella.com/screen-mapper/internal/events"
	"jordanella.com/screen-mapper/internal/gui/components"
	"jordanella.com/screen-mapper/internal/logging"
)

// LogEntry represents a single line of the event log
type LogEntry struct {
	Timestamp time.Time
	Level     logging.LogLevel
	Source    string
	Message   string
}

// LogTab displays session events as they happen
type LogTab struct {
	controller *Controller

	logs    []LogEntry
	logsMu  sync.RWMutex
	maxLogs int

	logList         *widget.List
	filterSelect    *widget.Select
	autoScrollCheck *widget.Check
}

// NewLogTab creates a new log tab
func NewLogTab(ctrl *Controller) *LogTab {
	return &LogTab{
		controller: ctrl,
		logs:       make([]LogEntry, 0, 1000),
		maxLogs:    1000,
	}
}

// Build constructs the log viewer UI
func (l *LogTab) Build() fyne.CanvasObject {
	l.filterSelect = widget.NewSelect(
		[]string{"All", string(logging.LogLevelDebug), string(logging.LogLevelInfo), string(logging.LogLevelWarn), string(logging.LogLevelError)},
		func(string) {
			if l.logList != nil {
				l.logList.Refresh()
			}
		},
	)
	l.filterSelect.PlaceHolder = "All"

	l.autoScrollCheck = widget.NewCheck("Auto-scroll", nil)
	l.autoScrollCheck.SetChecked(true)

	clearBtn := widget.NewButton("Clear", l.ClearLogs)

	controls := container.NewHBox(
		widget.NewLabel("Filter:"),
		l.filterSelect,
		l.autoScrollCheck,
		clearBtn,
	)

	l.logList = widget.NewList(
		func() int {
			return len(l.filtered())
		},
		func() fyne.CanvasObject {
			return container.NewHBox(
				widget.NewLabel("00:00:00"),
				widget.NewLabel("[LEVEL]"),
				widget.NewLabel("source"),
				widget.NewLabel("message"),
			)
		},
		func(id widget.ListItemID, item fyne.CanvasObject) {
			entries := l.filtered()
			if id < 0 || id >= len(entries) {
				return
			}
			entry := entries[id]
			box := item.(*fyne.Container)

			box.Objects[0].(*widget.Label).SetText(entry.Timestamp.Format("15:04:05"))

			levelLabel := box.Objects[1].(*widget.Label)
			levelLabel.Importance = levelImportance(entry.Level)
			levelLabel.SetText(fmt.Sprintf("[%s]", entry.Level))

			box.Objects[2].(*widget.Label).SetText(entry.Source)
			box.Objects[3].(*widget.Label).SetText(entry.Message)
		},
	)

	return container.NewBorder(
		container.NewVBox(components.Heading("Event Log"), controls),
		nil, nil, nil,
		l.logList,
	)
}

func levelImportance(level logging.LogLevel) widget.Importance {
	switch level {
	case logging.LogLevelDebug:
		return widget.LowImportance
	case logging.LogLevelWarn:
		return widget.WarningImportance
	case logging.LogLevelError, logging.LogLevelFatal:
		return widget.DangerImportance
	default:
		return widget.MediumImportance
	}
}

// AddLog appends an entry. Call on the UI thread.
func (l *LogTab) AddLog(level logging.LogLevel, source, message string) {
	l.append(LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Source:    source,
		Message:   message,
	})
}

// AddEvent logs a bus event
func (l *LogTab) AddEvent(event events.Event) {
	level, message := describeEvent(event)
	l.append(LogEntry{
		Timestamp: event.Timestamp,
		Level:     level,
		Source:    event.Source,
		Message:   message,
	})
}

func (l *LogTab) append(entry LogEntry) {
	l.logsMu.Lock()
	l.logs = append(l.logs, entry)
	if len(l.logs) > l.maxLogs {
		l.logs = l.logs[len(l.logs)-l.maxLogs:]
	}
	l.logsMu.Unlock()

	if l.logList != nil {
		l.logList.Refresh()
		if l.autoScrollCheck != nil && l.autoScrollCheck.Checked {
			l.logList.ScrollToBottom()
		}
	}
}

// ClearLogs removes all entries
func (l *LogTab) ClearLogs() {
	l.logsMu.Lock()
	l.logs = make([]LogEntry, 0, l.maxLogs)
	l.logsMu.Unlock()

	if l.logList != nil {
		l.logList.Refresh()
	}
}

// GetLogs returns a copy of all entries
func (l *LogTab) GetLogs() []LogEntry {
	l.logsMu.RLock()
	defer l.logsMu.RUnlock()

	logs := make([]LogEntry, len(l.logs))
	copy(logs, l.logs)
	return logs
}

func (l *LogTab) filtered() []LogEntry {
	selected := "All"
	if l.filterSelect != nil && l.filterSelect.Selected != "" {
		selected = l.filterSelect.Selected
	}

	l.logsMu.RLock()
	defer l.logsMu.RUnlock()

	if selected == "All" {
		return l.logs
	}
	var out []LogEntry
	for _, entry := range l.logs {
		if string(entry.Level) == selected {
			out = append(out, entry)
		}
	}
	return out
}

// describeEvent turns a bus event into a log level and one line of text
func describeEvent(event events.Event) (logging.LogLevel, string) {
	d := event.Data
	switch event.Type {
	case events.EventTypeSessionStarted:
		return logging.LogLevelInfo, fmt.Sprintf("Capture started: %v every %vms", d["folder"], d["period_ms"])
	case events.EventTypeSessionStopped:
		return logging.LogLevelInfo, fmt.Sprintf("Capture stopped after %v ticks", d["ticks"])
	case events.EventTypeFrameCaptured:
		if path, _ := d["path"].(string); path != "" {
			return logging.LogLevelDebug, fmt.Sprintf("Tick %v saved %s", d["tick"], path)
		}
		return logging.LogLevelDebug, fmt.Sprintf("Tick %v captured", d["tick"])
	case events.EventTypeFrameAnalyzed:
		level := logging.LogLevelInfo
		if failures, _ := d["failures"].(int); failures > 0 {
			level = logging.LogLevelWarn
		}
		report, _ := d["report"].(*capture.Report)
		return level, fmt.Sprintf("Tick %v: %s", d["tick"], summarizeReport(report))
	case events.EventTypeLibrarySaved:
		return logging.LogLevelInfo, fmt.Sprintf("Library saved to %v (%v rules)", d["path"], d["rules"])
	case events.EventTypeError:
		message := fmt.Sprint(d["message"])
		if cause, ok := d["error"].(string); ok {
			message += ": " + cause
		}
		return logging.LogLevelError, message
	default:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return logging.LogLevelDebug, fmt.Sprintf("%s %s", event.Type, strings.Join(keys, ","))
	}
}

func summarizeReport(report *capture.Report) string {
	if report == nil || len(report.Results) == 0 {
		return "no rules"
	}
	parts := make([]string, 0, len(report.Results))
	for _, res := range report.Results {
		if res.Err != nil {
			parts = append(parts, res.Name+" failed")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", res.Name, res.Value))
	}
	return strings.Join(parts, ", ")
}
