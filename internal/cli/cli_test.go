package cli

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jordanella.com/screen-mapper/internal/capture"
	"jordanella.com/screen-mapper/internal/config"
	"jordanella.com/screen-mapper/internal/cv"
	"jordanella.com/screen-mapper/internal/database"
	"jordanella.com/screen-mapper/internal/library"
	"jordanella.com/screen-mapper/internal/logging"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// fakeOllama answers every transcription request with text
func fakeOllama(t *testing.T, text string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"response": text})
	}))
	t.Cleanup(server.Close)
	return server
}

// writeSettings creates a settings file pointing at server and a temp database
func writeSettings(t *testing.T, dir string, server *httptest.Server) string {
	t.Helper()
	t.Setenv("OLLAMA_URL", "")
	t.Setenv("OLLAMA_MODEL", "")

	cfg := config.NewDefaultConfig()
	cfg.OutputDirectory = filepath.Join(dir, "captures")
	cfg.OCRBackend = config.BackendOllama
	cfg.OllamaURL = server.URL
	cfg.DatabasePath = filepath.Join(dir, "results.db")
	cfg.LogLevel = string(logging.LogLevelError)
	cfg.FrameLayout = "01 02_15_04_05.000"

	path := filepath.Join(dir, "Settings.ini")
	require.NoError(t, config.SaveToINI(cfg, path))
	return path
}

func writeFrames(t *testing.T, dir string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for i := 0; i < n; i++ {
		frame := image.NewRGBA(image.Rect(0, 0, 200, 100))
		frame.Set(i, i, color.RGBA{R: 255, A: 255})
		require.NoError(t, cv.SavePNG(frame, filepath.Join(dir, string(rune('a'+i))+".png")))
	}
}

func TestLibraryEditing(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libs", "hud.go")

	out, err := execute(t, "new", lib, "--region", "0,0,200,100", "--output", filepath.Join(dir, "captures"))
	require.NoError(t, err)
	assert.Contains(t, out, "Created")

	_, err = execute(t, "new", lib)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "add", lib, "--name", "score", "--kind", "number", "--box", "10,10,50,20")
	require.NoError(t, err)

	// Past the right edge of the region
	_, err = execute(t, "add", lib, "--name", "lives", "--kind", "number", "--box", "190,0,50,20")
	assert.Error(t, err)
	_, err = execute(t, "add", lib, "--name", "score", "--kind", "text", "--box", "0,0,5,5")
	assert.Error(t, err)
	_, err = execute(t, "add", lib, "--name", "x", "--kind", "colour", "--box", "0,0,5,5")
	assert.Error(t, err)

	loaded, err := library.Load(lib)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())

	_, err = execute(t, "rename", lib, "score", "points")
	require.NoError(t, err)

	out, err = execute(t, "inspect", lib)
	require.NoError(t, err)
	assert.Contains(t, out, "Region:   0,0,200,100")
	assert.Contains(t, out, "points")
	assert.NotContains(t, out, "score")

	_, err = execute(t, "remove", lib, "missing")
	assert.ErrorContains(t, err, "missing")

	out, err = execute(t, "remove", lib, "points")
	require.NoError(t, err)
	assert.Contains(t, out, "0 rules")
}

func newNumberLibrary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "hud.go")
	lib, err := library.New(path, nil, filepath.Join(dir, "captures"),
		library.BoxFunction{Name: "score", Kind: library.KindNumber, Box: library.Rect(10, 10, 50, 20)},
	)
	require.NoError(t, err)
	require.NoError(t, library.Save(lib))
	return path
}

func TestEval(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, dir, fakeOllama(t, " 42 "))
	lib := newNumberLibrary(t, dir)
	writeFrames(t, filepath.Join(dir, "frames"), 1)
	frame := filepath.Join(dir, "frames", "a.png")

	out, err := execute(t, "eval", lib, frame, "--config", settings)
	require.NoError(t, err)
	assert.Contains(t, out, "score")
	assert.Contains(t, out, "42")

	_, err = execute(t, "eval", lib, frame, "--config", settings, "--rule", "lives")
	assert.ErrorContains(t, err, "lives")
}

func TestEvalAnnotate(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, dir, fakeOllama(t, "42"))
	writeFrames(t, filepath.Join(dir, "frames"), 1)

	// A checkerboard never matches the black frame
	needle := image.NewRGBA(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if (x+y)%2 == 0 {
				needle.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				needle.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	template := filepath.Join(dir, "logo.png")
	require.NoError(t, cv.SavePNG(needle, template))

	path := filepath.Join(dir, "hud.go")
	lib, err := library.New(path, nil, "",
		library.BoxFunction{Name: "score", Kind: library.KindNumber, Box: library.Rect(10, 10, 50, 20)},
		library.BoxFunction{Name: "logo", Kind: library.KindTemplateMatch, Box: library.Rect(100, 20, 60, 40), TemplateImage: template},
	)
	require.NoError(t, err)
	require.NoError(t, library.Save(lib))

	annotated := filepath.Join(dir, "annotated.png")
	out, err := execute(t, "eval", path, filepath.Join(dir, "frames", "a.png"), "--config", settings, "--annotate", annotated)
	require.NoError(t, err)
	assert.Contains(t, out, "logo             []")
	assert.Contains(t, out, "best 0.00 at (100, 20)")
	assert.Contains(t, out, "Annotated frame written to")

	img, err := cv.LoadImage(annotated)
	require.NoError(t, err)
	green := color.RGBA{0, 200, 0, 255}
	assert.Equal(t, green, img.RGBAAt(10, 10))
	assert.Equal(t, green, img.RGBAAt(159, 59))
	assert.NotEqual(t, green, img.RGBAAt(120, 40), "box interior untouched")
}

func TestEvalReportsFailures(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, dir, fakeOllama(t, "forty"))
	lib := newNumberLibrary(t, dir)
	writeFrames(t, filepath.Join(dir, "frames"), 1)

	out, err := execute(t, "eval", lib, filepath.Join(dir, "frames", "a.png"), "--config", settings)
	assert.ErrorContains(t, err, "1 of 1 rules failed")
	assert.Contains(t, out, "error")
}

func TestRunRecordsResults(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, dir, fakeOllama(t, "7"))
	lib := newNumberLibrary(t, dir)
	writeFrames(t, filepath.Join(dir, "frames"), 2)

	out, err := execute(t, "run", lib, "--config", settings,
		"--from", filepath.Join(dir, "frames"), "--period", "10", "--ticks", "5", "--record")
	require.NoError(t, err)
	// The replay ends after its two frames
	assert.Contains(t, out, "2 ticks")
	assert.Contains(t, out, "score")

	db, err := database.Open(filepath.Join(dir, "results.db"))
	require.NoError(t, err)
	defer db.Close()

	sessions, err := db.ListSessions(0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, lib, sessions[0].Library)
	assert.Equal(t, 2, sessions[0].Ticks)
	assert.False(t, sessions[0].Running())
	assert.NotEmpty(t, sessions[0].Folder)

	results, err := db.ResultsForSession(sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Number)
	assert.Equal(t, 7.0, *results[0].Number)

	out, err = execute(t, "inspect", lib, "--config", settings, "--sessions", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "2 ticks")

	out, err = execute(t, "inspect", lib, "--config", settings, "--rule", "score", "--history", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "History of score:")
	assert.Contains(t, out, "tick 2")
	assert.NotContains(t, out, "tick 1 ")

	_, err = execute(t, "inspect", lib, "--config", settings, "--rule", "lives")
	assert.ErrorContains(t, err, `no rule named "lives"`)
}

func TestDBCommands(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, dir, fakeOllama(t, "7"))
	lib := newNumberLibrary(t, dir)
	writeFrames(t, filepath.Join(dir, "frames"), 2)

	_, err := execute(t, "db", "stats", "--config", settings)
	assert.ErrorContains(t, err, "no results database")

	_, err = execute(t, "run", lib, "--config", settings,
		"--from", filepath.Join(dir, "frames"), "--period", "10", "--record")
	require.NoError(t, err)

	out, err := execute(t, "db", "stats", "--config", settings)
	require.NoError(t, err)
	assert.Contains(t, out, "sessions       1")
	assert.Contains(t, out, "rule_results   2")
	assert.Contains(t, out, "Errors in the last 24h0m0s:")

	_, err = execute(t, "db", "errors", "--config", settings, "--limit", "5")
	require.NoError(t, err)

	backup := filepath.Join(dir, "backups", "results.db")
	out, err = execute(t, "db", "backup", backup, "--config", settings)
	require.NoError(t, err)
	assert.Contains(t, out, "Backed up")
	_, err = os.Stat(backup)
	assert.NoError(t, err)

	_, err = execute(t, "db", "vacuum", "--config", settings)
	require.NoError(t, err)

	out, err = execute(t, "db", "prune", "--config", settings, "--older-than", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 error(s)")

	_, err = execute(t, "db", "prune", "--config", settings, "--older-than", "0s")
	assert.Error(t, err)
}

func TestRecordSavesFrames(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, dir, fakeOllama(t, ""))
	writeFrames(t, filepath.Join(dir, "frames"), 3)
	output := filepath.Join(dir, "shots")

	out, err := execute(t, "record", "--config", settings,
		"--from", filepath.Join(dir, "frames"), "--period", "10", "--ticks", "2", "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "2 ticks")

	folders, err := os.ReadDir(output)
	require.NoError(t, err)
	require.Len(t, folders, 1)

	frames, err := os.ReadDir(filepath.Join(output, folders[0].Name()))
	require.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestApplyLibrary(t *testing.T) {
	settingsRegion := library.Rect(10, 10, 200, 100)

	wholeScreen, err := library.New("hud.go", nil, "lib-out")
	require.NoError(t, err)
	sc := capture.Config{Region: &settingsRegion, OutputDirectory: "settings-out"}
	applyLibrary(&sc, wholeScreen, false)
	assert.Nil(t, sc.Region, "a library without a region captures the whole screen")
	assert.Equal(t, "lib-out", sc.OutputDirectory)

	region := library.Rect(0, 0, 640, 480)
	cropped, err := library.New("hud.go", &region, "")
	require.NoError(t, err)
	sc = capture.Config{Region: &settingsRegion, OutputDirectory: "flag-out"}
	applyLibrary(&sc, cropped, true)
	assert.Equal(t, &region, sc.Region)
	assert.Equal(t, "flag-out", sc.OutputDirectory)

	sc = capture.Config{OutputDirectory: "flag-out"}
	applyLibrary(&sc, wholeScreen, true)
	assert.Equal(t, "flag-out", sc.OutputDirectory, "--output wins over the library")
}

func TestSettingsPathPrecedence(t *testing.T) {
	path := ""
	opts := &rootOptions{configPath: &path}

	t.Setenv("SCREENMAPPER_CONFIG", "")
	assert.Equal(t, config.DefaultPath, opts.settingsPath())

	t.Setenv("SCREENMAPPER_CONFIG", "env.ini")
	assert.Equal(t, "env.ini", opts.settingsPath())

	path = "flag.ini"
	assert.Equal(t, "flag.ini", opts.settingsPath())
}
