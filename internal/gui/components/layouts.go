package components

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// SectionHeader creates a header with optional actions on the right
func SectionHeader(title string, actions ...fyne.CanvasObject) *fyne.Container {
	header := Subheading(title)

	if len(actions) > 0 {
		return container.NewBorder(
			nil, nil,
			header,
			container.NewHBox(actions...),
			layout.NewSpacer(),
		)
	}

	return container.NewVBox(header)
}

// FieldRow stacks a label, a field and an optional hint
func FieldRow(label string, field fyne.CanvasObject, hint string) *fyne.Container {
	rows := []fyne.CanvasObject{BoldText(label), field}
	if hint != "" {
		rows = append(rows, Caption(hint))
	}
	return container.NewVBox(rows...)
}

// InfoRow shows a label and a value that can be updated later
// Example: "Ticks: 42"
type InfoRow struct {
	*fyne.Container
	value *widget.Label
}

// NewInfoRow creates an info row
func NewInfoRow(label, value string) *InfoRow {
	v := MonospaceLabel(value)
	return &InfoRow{
		Container: container.NewBorder(nil, nil, BoldText(label+":"), nil, v),
		value:     v,
	}
}

// SetValue replaces the displayed value
func (r *InfoRow) SetValue(value string) {
	r.value.SetText(value)
}

// Value returns the displayed value
func (r *InfoRow) Value() string {
	return r.value.Text
}
