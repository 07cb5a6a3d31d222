package components

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// PrimaryButton creates a button for the main action of a panel
func PrimaryButton(text string, icon fyne.Resource, tapped func()) *widget.Button {
	btn := widget.NewButtonWithIcon(text, icon, tapped)
	btn.Importance = widget.HighImportance
	return btn
}

// DangerButton creates a button for destructive actions
func DangerButton(text string, icon fyne.Resource, tapped func()) *widget.Button {
	btn := widget.NewButtonWithIcon(text, icon, tapped)
	btn.Importance = widget.DangerImportance
	return btn
}

// ButtonGroup lays buttons out side by side
func ButtonGroup(buttons ...*widget.Button) *fyne.Container {
	objects := make([]fyne.CanvasObject, len(buttons))
	for i, btn := range buttons {
		objects[i] = btn
	}
	return container.NewHBox(objects...)
}
