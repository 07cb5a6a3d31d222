package library

import (
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mapperr "jordanella.com/screen-mapper/internal/errors"
)

func writeTemplate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(path, []byte("not decoded by the codec"), 0644))
	return path
}

func TestEncodeDecode_ScoreExample(t *testing.T) {
	lib, err := New("scores.go", nil, "./out",
		BoxFunction{Name: "score", Kind: KindNumber, Box: Rect(10, 10, 100, 40)},
	)
	require.NoError(t, err)

	meta, err := Decode(Encode(lib))
	require.NoError(t, err)

	assert.Nil(t, meta.CaptureRegion)
	assert.Equal(t, "./out", meta.OutputDirectory)
	require.Len(t, meta.Rules, 1)
	assert.Equal(t, "score", meta.Rules[0].Name)
	assert.Equal(t, KindNumber, meta.Rules[0].Kind)
	assert.Equal(t, Rect(10, 10, 100, 40), meta.Rules[0].Box)
}

func TestEncodeDecode_AllKindsWithRegion(t *testing.T) {
	template := writeTemplate(t)
	region := Rect(200, 100, 800, 600)

	lib, err := New("hud.go", &region, `C:\captures\run "1"`,
		BoxFunction{Name: "title", Kind: KindText, Box: Rect(0, 0, 800, 50)},
		BoxFunction{Name: "gold", Kind: KindNumber, Box: Rect(700, 10, 100, 30)},
		BoxFunction{Name: "logo", Kind: KindTemplateMatch, Box: Rect(10, 60, 200, 200), TemplateImage: template},
		BoxFunction{Name: "épée", Kind: KindText, Box: Rect(0, 550, 800, 50)},
	)
	require.NoError(t, err)

	meta, err := Decode(Encode(lib))
	require.NoError(t, err)

	require.NotNil(t, meta.CaptureRegion)
	assert.Equal(t, region, *meta.CaptureRegion)
	assert.Equal(t, lib.OutputDirectory, meta.OutputDirectory)
	assert.Equal(t, lib.Rules(), meta.Rules)
}

func TestEncode_Deterministic(t *testing.T) {
	region := Rect(0, 0, 1920, 1080)
	lib, err := New("dash.go", &region, "out",
		BoxFunction{Name: "a", Kind: KindText, Box: Rect(1, 2, 3, 4)},
		BoxFunction{Name: "b", Kind: KindNumber, Box: Rect(5, 6, 7, 8)},
	)
	require.NoError(t, err)

	first := Encode(lib)
	second := Encode(lib)
	assert.Equal(t, first, second)
}

func TestEncode_MetadataPrecedesOperations(t *testing.T) {
	lib, err := New("scores.go", nil, "./out",
		BoxFunction{Name: "score", Kind: KindNumber, Box: Rect(10, 10, 100, 40)},
		BoxFunction{Name: "label", Kind: KindText, Box: Rect(10, 60, 100, 40)},
	)
	require.NoError(t, err)

	lines := strings.Split(string(Encode(lib)), "\n")
	classLines := 0
	for i, line := range lines {
		if strings.HasPrefix(line, ClassTag) {
			classLines++
		}
		if strings.HasPrefix(line, FuncTag) {
			require.Less(t, i+1, len(lines))
			assert.True(t, strings.HasPrefix(lines[i+1], "func (l *Scores) "),
				"line after %q is %q", line, lines[i+1])
		}
	}
	assert.Equal(t, 1, classLines)
	assert.Contains(t, string(Encode(lib)), `screenlib.Main(l.GrabScreen, "./out",`)
	assert.Contains(t, string(Encode(lib)), `screenlib.Rule("score", l.score),`)
}

func TestEncode_SurvivesGofmt(t *testing.T) {
	template := writeTemplate(t)
	region := Rect(5, 5, 300, 200)

	libs := map[string]*Library{}
	var err error
	libs["rules"], err = New("hud.go", &region, "captures",
		BoxFunction{Name: "title", Kind: KindText, Box: Rect(0, 0, 300, 20)},
		BoxFunction{Name: "gold", Kind: KindNumber, Box: Rect(200, 10, 100, 30)},
		BoxFunction{Name: "logo", Kind: KindTemplateMatch, Box: Rect(10, 60, 50, 50), TemplateImage: template},
		BoxFunction{Name: "lives", Kind: KindNumber, Box: Rect(0, 180, 40, 20)},
	)
	require.NoError(t, err)
	libs["empty"], err = New("empty.go", nil, "out")
	require.NoError(t, err)

	for name, lib := range libs {
		t.Run(name, func(t *testing.T) {
			encoded := Encode(lib)
			formatted, err := format.Source(encoded)
			require.NoError(t, err)
			assert.Equal(t, string(encoded), string(formatted))

			meta, err := Decode(formatted)
			require.NoError(t, err)
			assert.Equal(t, lib.CaptureRegion, meta.CaptureRegion)
			assert.Equal(t, lib.OutputDirectory, meta.OutputDirectory)
			assert.Equal(t, lib.Len(), len(meta.Rules))
			if lib.Len() > 0 {
				assert.Equal(t, lib.Rules(), meta.Rules)
			}
		})
	}
}

func TestDecode_DirectoryAndLegacyTags(t *testing.T) {
	artifact := strings.Join([]string{
		`//screenmapper:c {"captureRegion": null, "outputDirectory": "out"}`,
		`//screenmapper:f ("score", "Number", [1, 2, 3, 4], "")`,
		`//f ("label", "Text", [5, 6, 7, 8], "")`,
		`//screenmapper:f ("logo", "TemplateMatch", [1, 2, 3, 4], "logo.png")`,
	}, "\n")

	meta, err := Decode([]byte(artifact))
	require.NoError(t, err)
	require.Len(t, meta.Rules, 3)
	assert.Equal(t, []string{"score", "label", "logo"},
		[]string{meta.Rules[0].Name, meta.Rules[1].Name, meta.Rules[2].Name})
	assert.Equal(t, KindNumber, meta.Rules[0].Kind)
	assert.Equal(t, KindText, meta.Rules[1].Kind)
	assert.Equal(t, KindTemplateMatch, meta.Rules[2].Kind)
}

func TestDecode_IgnoresGeneratedBodies(t *testing.T) {
	lib, err := New("scores.go", nil, "./out",
		BoxFunction{Name: "score", Kind: KindNumber, Box: Rect(10, 10, 100, 40)},
	)
	require.NoError(t, err)

	var corrupted []string
	for _, line := range strings.Split(string(Encode(lib)), "\n") {
		if strings.HasPrefix(line, ClassTag) || strings.HasPrefix(line, FuncTag) {
			corrupted = append(corrupted, line)
			continue
		}
		corrupted = append(corrupted, "os.RemoveAll(\"/\") }{ ))) "+line)
	}

	meta, err := Decode([]byte(strings.Join(corrupted, "\n")))
	require.NoError(t, err)
	assert.Equal(t, lib.Rules(), meta.Rules)
}

func TestDecode_UnknownKind(t *testing.T) {
	artifact := strings.Join([]string{
		`//c {"captureRegion": null, "outputDirectory": "out"}`,
		`//f ("score", "colour", [1, 2, 3, 4], "")`,
	}, "\n")

	_, err := Decode([]byte(artifact))
	require.Error(t, err)
	assert.True(t, mapperr.Is(err, mapperr.ErrUnknownKind), "got %v", err)
}

func TestDecode_LegacyKindNames(t *testing.T) {
	artifact := strings.Join([]string{
		`//c {"captureRegion": null, "outputDirectory": "out"}`,
		`//f ("label", "string", [1, 2, 3, 4], "")`,
		`//f ("logo", "position", [1, 2, 3, 4], "logo.png")`,
	}, "\n")

	meta, err := Decode([]byte(artifact))
	require.NoError(t, err)
	require.Len(t, meta.Rules, 2)
	assert.Equal(t, KindText, meta.Rules[0].Kind)
	assert.Equal(t, KindTemplateMatch, meta.Rules[1].Kind)
}

func TestDecode_DuplicateNames(t *testing.T) {
	artifact := strings.Join([]string{
		`//c {"captureRegion": null, "outputDirectory": "out"}`,
		`//f ("price", "number", [1, 2, 3, 4], "")`,
		`//f ("price", "text", [5, 6, 7, 8], "")`,
	}, "\n")

	_, err := Decode([]byte(artifact))
	assert.True(t, mapperr.Is(err, mapperr.ErrDuplicateName), "got %v", err)
}

func TestDecode_OutOfBoundsBox(t *testing.T) {
	artifact := strings.Join([]string{
		`//c {"captureRegion": [0, 0, 100, 100], "outputDirectory": "out"}`,
		`//f ("price", "number", [50, 50, 60, 10], "")`,
	}, "\n")

	_, err := Decode([]byte(artifact))
	assert.True(t, mapperr.Is(err, mapperr.ErrOutOfBoundsBox), "got %v", err)

	// A width that overflows x+width must not slip past the bounds check
	overflow := strings.Join([]string{
		`//c {"captureRegion": [0, 0, 100, 100], "outputDirectory": "out"}`,
		`//f ("price", "text", [1, 0, 9223372036854775807, 10], "")`,
	}, "\n")
	_, err = Decode([]byte(overflow))
	assert.True(t, mapperr.Is(err, mapperr.ErrOutOfBoundsBox), "got %v", err)
}

func TestDecode_MalformedMetadata(t *testing.T) {
	cases := map[string]string{
		"missing class record": `//f ("a", "text", [1, 2, 3, 4], "")`,
		"two class records": "//c {\"captureRegion\": null, \"outputDirectory\": \"a\"}\n" +
			"//c {\"captureRegion\": null, \"outputDirectory\": \"b\"}",
		"class not a mapping":   `//c ["out"]`,
		"class missing key":     `//c {"outputDirectory": "out"}`,
		"class unexpected key":  `//c {"captureRegion": null, "outputDirectory": "out", "x": 1}`,
		"class duplicate key":   `//c {"captureRegion": null, "outputDirectory": "a", "outputDirectory": "b"}`,
		"region wrong arity":    `//c {"captureRegion": [1, 2, 3], "outputDirectory": "out"}`,
		"region not integers":   `//c {"captureRegion": [1, 2, "3", 4], "outputDirectory": "out"}`,
		"not a literal":         `//c {"captureRegion": null, "outputDirectory": `,
		"explicit tag":          `//c {"captureRegion": null, "outputDirectory": !!python/object:os.system "rm"}`,
		"anchor and alias":      `//c {"captureRegion": &r null, "outputDirectory": *r}`,
		"rule wrong arity": "//c {\"captureRegion\": null, \"outputDirectory\": \"out\"}\n" +
			`//f ("a", "text", [1, 2, 3, 4])`,
		"rule name not string": "//c {\"captureRegion\": null, \"outputDirectory\": \"out\"}\n" +
			`//f (12, "text", [1, 2, 3, 4], "")`,
		"rule is a call": "//c {\"captureRegion\": null, \"outputDirectory\": \"out\"}\n" +
			`//f __import__("os").system("id")`,
	}

	for name, artifact := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(artifact))
			require.Error(t, err)
			assert.True(t, mapperr.Is(err, mapperr.ErrMalformedMetadata), "got %v", err)
		})
	}
}

func TestDecode_SkipsShortAndUntaggedLines(t *testing.T) {
	artifact := strings.Join([]string{
		"",
		"//c",
		"//",
		"// c {\"captureRegion\": [0, 0, 1, 1], \"outputDirectory\": \"ignored\"}",
		`//c {"captureRegion": null, "outputDirectory": "out"}`,
		"  //f (\"indented\", \"text\", [1, 2, 3, 4], \"\")",
		`//f ("kept", "text", [1, 2, 3, 4], "")`,
	}, "\r\n")

	meta, err := Decode([]byte(artifact))
	require.NoError(t, err)
	assert.Equal(t, "out", meta.OutputDirectory)
	require.Len(t, meta.Rules, 1)
	assert.Equal(t, "kept", meta.Rules[0].Name)
}

func TestDecode_TemplatePathNotRequiredToExist(t *testing.T) {
	artifact := strings.Join([]string{
		`//c {"captureRegion": null, "outputDirectory": "out"}`,
		`//f ("logo", "template_match", [1, 2, 3, 4], "/nowhere/logo.png")`,
	}, "\n")

	meta, err := Decode([]byte(artifact))
	require.NoError(t, err)
	assert.Equal(t, "/nowhere/logo.png", meta.Rules[0].TemplateImage)
}

func TestSaveLoad(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "libs", "my-scores.go")
	region := Rect(0, 0, 640, 480)
	lib, err := New(dest, &region, "captures",
		BoxFunction{Name: "score", Kind: KindNumber, Box: Rect(10, 10, 100, 40)},
	)
	require.NoError(t, err)
	require.NoError(t, Save(lib))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "type MyScores struct")

	loaded, err := Load(dest)
	require.NoError(t, err)
	assert.Equal(t, dest, loaded.DestinationPath)
	assert.Equal(t, region, *loaded.CaptureRegion)
	assert.Equal(t, lib.Rules(), loaded.Rules())

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.go"))
	assert.Error(t, err)
}

func TestTypeName(t *testing.T) {
	cases := map[string]string{
		"scores.go":            "Scores",
		"/tmp/my-hud_lib.go":   "MyHudLib",
		"2048.go":              "Library2048",
		"---.go":               "Library",
		"libs/player stats.go": "PlayerStats",
	}
	for in, want := range cases {
		if got := TypeName(in); got != want {
			t.Errorf("TypeName(%q) = %q, want %q", in, got, want)
		}
	}
}
