package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

var (
	// DefaultWindowSize is the default window dimensions
	DefaultWindowSize = fyne.NewSize(1100, 760)

	// Colors
	ColorPrimary    = color.NRGBA{R: 0, G: 150, B: 136, A: 255}  // Material Teal
	ColorSuccess    = color.NRGBA{R: 76, G: 175, B: 80, A: 255}  // Material Green
	ColorWarning    = color.NRGBA{R: 255, G: 152, B: 0, A: 255}  // Material Orange
	ColorError      = color.NRGBA{R: 244, G: 67, B: 54, A: 255}  // Material Red
	ColorBackground = color.NRGBA{R: 24, G: 24, B: 27, A: 255}   // Dark background
	ColorSelection  = color.NRGBA{R: 0, G: 150, B: 136, A: 96}
)

// MapperTheme is the screen mapper's dark theme
type MapperTheme struct{}

func (t *MapperTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return ColorPrimary
	case theme.ColorNameBackground:
		return ColorBackground
	case theme.ColorNameSelection:
		return ColorSelection
	case theme.ColorNameSuccess:
		return ColorSuccess
	case theme.ColorNameWarning:
		return ColorWarning
	case theme.ColorNameError:
		return ColorError
	default:
		return theme.DefaultTheme().Color(name, theme.VariantDark)
	}
}

func (t *MapperTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *MapperTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *MapperTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return 14
	case theme.SizeNameHeadingText:
		return 20
	case theme.SizeNameSubHeadingText:
		return 16
	case theme.SizeNamePadding:
		return 6
	default:
		return theme.DefaultTheme().Size(name)
	}
}
