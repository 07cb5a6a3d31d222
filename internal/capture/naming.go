package capture

import "time"

// Default layouts for session folders (MM DD_HH:MM:SS) and frame files (MM DD_HH_MM_SS).
const (
	DefaultFolderLayout = "01 02_15:04:05"
	DefaultFrameLayout  = "01 02_15_04_05"
)

// FolderName names the session folder for a session started at t
func FolderName(t time.Time, layout string) string {
	if layout == "" {
		layout = DefaultFolderLayout
	}
	return t.Format(layout)
}

// FrameName names the PNG for a frame captured at t. Frames captured within
// the same second share a name, so the later one replaces the earlier.
func FrameName(t time.Time, layout string) string {
	if layout == "" {
		layout = DefaultFrameLayout
	}
	return t.Format(layout) + ".png"
}
