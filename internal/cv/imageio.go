package cv

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// LoadImage decodes a PNG, JPEG, GIF, BMP or WebP file
func LoadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return Normalize(img), nil
}

// SavePNG writes img to path, truncating any existing file
func SavePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

var frameExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
}

// DirectoryCapture replays previously captured frames from a directory in name order.
// Timestamp-named frames therefore replay in capture order.
type DirectoryCapture struct {
	dir   string
	files []string
	loop  bool

	mu   sync.Mutex
	next int
}

// NewDirectoryCapture lists the image files in dir. With loop set, replay restarts
// after the last frame; otherwise CaptureFrame returns io.EOF.
func NewDirectoryCapture(dir string, loop bool) (*DirectoryCapture, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if frameExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no frames in %s", dir)
	}
	sort.Strings(files)

	return &DirectoryCapture{dir: dir, files: files, loop: loop}, nil
}

// Len returns the number of frames available
func (dc *DirectoryCapture) Len() int {
	return len(dc.files)
}

// CaptureFrame decodes the next frame
func (dc *DirectoryCapture) CaptureFrame() (*image.RGBA, error) {
	dc.mu.Lock()
	if dc.next >= len(dc.files) {
		if !dc.loop {
			dc.mu.Unlock()
			return nil, io.EOF
		}
		dc.next = 0
	}
	name := dc.files[dc.next]
	dc.next++
	dc.mu.Unlock()

	return LoadImage(filepath.Join(dc.dir, name))
}
