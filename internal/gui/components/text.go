package components

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// Heading creates a large, bold heading for tab titles
func Heading(text string) *widget.RichText {
	return styled(text, theme.SizeNameHeadingText, fyne.TextStyle{Bold: true})
}

// Subheading creates a section header
func Subheading(text string) *widget.RichText {
	return styled(text, theme.SizeNameSubHeadingText, fyne.TextStyle{Bold: true})
}

// Caption creates small text for hints under fields
func Caption(text string) *widget.RichText {
	return styled(text, theme.SizeNameCaptionText, fyne.TextStyle{})
}

// BoldText creates bold text at standard size
func BoldText(text string) *widget.RichText {
	return styled(text, theme.SizeNameText, fyne.TextStyle{Bold: true})
}

// MonospaceLabel creates a label for values like boxes and paths
func MonospaceLabel(text string) *widget.Label {
	label := widget.NewLabel(text)
	label.TextStyle = fyne.TextStyle{Monospace: true}
	label.Truncation = fyne.TextTruncateEllipsis
	return label
}

func styled(text string, size fyne.ThemeSizeName, style fyne.TextStyle) *widget.RichText {
	return widget.NewRichText(
		&widget.TextSegment{
			Text: text,
			Style: widget.RichTextStyle{
				SizeName:  size,
				TextStyle: style,
			},
		},
	)
}
