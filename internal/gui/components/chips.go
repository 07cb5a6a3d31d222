package components

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// ChipStyle defines the visual style of a chip
type ChipStyle int

const (
	ChipStyleDefault ChipStyle = iota // Gray
	ChipStyleSuccess
	ChipStyleWarning
	ChipStyleDanger
	ChipStyleInfo
)

// StatusStyle maps a status word to a chip style
func StatusStyle(status string) ChipStyle {
	switch status {
	case "Running", "Saved", "OK":
		return ChipStyleSuccess
	case "Idle", "Unsaved":
		return ChipStyleInfo
	case "Error", "Failed":
		return ChipStyleDanger
	case "Warning", "Unhealthy":
		return ChipStyleWarning
	default:
		return ChipStyleDefault
	}
}

// StatusChip is a colored badge whose text and color follow a status word
type StatusChip struct {
	*fyne.Container
	bg    *canvas.Rectangle
	label *widget.Label
}

// NewStatusChip creates a chip showing status
func NewStatusChip(status string) *StatusChip {
	bg := canvas.NewRectangle(chipColor(StatusStyle(status)))
	bg.CornerRadius = 8
	label := widget.NewLabel(status)
	label.TextStyle = fyne.TextStyle{Bold: true}

	return &StatusChip{
		Container: container.NewStack(bg, container.NewPadded(label)),
		bg:        bg,
		label:     label,
	}
}

// SetStatus updates the text and color
func (c *StatusChip) SetStatus(status string) {
	c.label.SetText(status)
	c.bg.FillColor = chipColor(StatusStyle(status))
	c.bg.Refresh()
}

// Status returns the current status word
func (c *StatusChip) Status() string {
	return c.label.Text
}

func chipColor(style ChipStyle) color.Color {
	switch style {
	case ChipStyleSuccess:
		return color.NRGBA{R: 76, G: 175, B: 80, A: 255}
	case ChipStyleWarning:
		return color.NRGBA{R: 255, G: 152, B: 0, A: 255}
	case ChipStyleDanger:
		return color.NRGBA{R: 244, G: 67, B: 54, A: 255}
	case ChipStyleInfo:
		return color.NRGBA{R: 33, G: 150, B: 243, A: 255}
	default:
		return theme.Color(theme.ColorNameDisabled)
	}
}
