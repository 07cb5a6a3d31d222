package library

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mapperr "jordanella.com/screen-mapper/internal/errors"
)

func TestNew_DuplicateName(t *testing.T) {
	_, err := New("prices.go", nil, "out",
		BoxFunction{Name: "price", Kind: KindNumber, Box: Rect(0, 0, 10, 10)},
		BoxFunction{Name: "price", Kind: KindText, Box: Rect(0, 20, 10, 10)},
	)
	require.Error(t, err)
	assert.True(t, mapperr.Is(err, mapperr.ErrDuplicateName))
}

func TestNew_InvalidNames(t *testing.T) {
	for _, name := range []string{"", "1st", "has space", "a-b", "func", "_", "rt", "GrabScreen"} {
		t.Run(name, func(t *testing.T) {
			_, err := New("lib.go", nil, "out",
				BoxFunction{Name: name, Kind: KindText, Box: Rect(0, 0, 10, 10)},
			)
			assert.True(t, mapperr.Is(err, mapperr.ErrInvalidName), "got %v", err)
		})
	}
}

func TestNew_InvalidBox(t *testing.T) {
	_, err := New("lib.go", nil, "out",
		BoxFunction{Name: "flat", Kind: KindText, Box: Rect(0, 0, 10, 0)},
	)
	assert.True(t, mapperr.Is(err, mapperr.ErrInvalidBox))

	region := Rect(0, 0, 0, 10)
	_, err = New("lib.go", &region, "out")
	assert.True(t, mapperr.Is(err, mapperr.ErrInvalidBox))
}

func TestNew_TemplateImage(t *testing.T) {
	_, err := New("lib.go", nil, "out",
		BoxFunction{Name: "logo", Kind: KindTemplateMatch, Box: Rect(0, 0, 10, 10)},
	)
	assert.True(t, mapperr.Is(err, mapperr.ErrMissingTemplateImage))

	_, err = New("lib.go", nil, "out",
		BoxFunction{Name: "logo", Kind: KindTemplateMatch, Box: Rect(0, 0, 10, 10),
			TemplateImage: filepath.Join(t.TempDir(), "absent.png")},
	)
	assert.True(t, mapperr.Is(err, mapperr.ErrMissingTemplateImage))

	lib, err := New("lib.go", nil, "out",
		BoxFunction{Name: "logo", Kind: KindTemplateMatch, Box: Rect(0, 0, 10, 10), TemplateImage: writeTemplate(t)},
		BoxFunction{Name: "label", Kind: KindText, Box: Rect(0, 0, 10, 10), TemplateImage: "ignored.png"},
	)
	require.NoError(t, err)
	label, ok := lib.Rule("label")
	require.True(t, ok)
	assert.Empty(t, label.TemplateImage)
}

func TestNew_RegionBounds(t *testing.T) {
	region := Rect(500, 500, 100, 50)

	_, err := New("lib.go", &region, "out",
		BoxFunction{Name: "inside", Kind: KindText, Box: Rect(0, 0, 100, 50)},
	)
	require.NoError(t, err)

	_, err = New("lib.go", &region, "out",
		BoxFunction{Name: "outside", Kind: KindText, Box: Rect(500, 500, 10, 10)},
	)
	assert.True(t, mapperr.Is(err, mapperr.ErrOutOfBoundsBox))

	_, err = New("lib.go", &region, "out",
		BoxFunction{Name: "negative", Kind: KindText, Box: Rect(-1, 0, 10, 10)},
	)
	assert.True(t, mapperr.Is(err, mapperr.ErrOutOfBoundsBox))
}

func TestLibrary_AddRemoveRename(t *testing.T) {
	lib, err := New("lib.go", nil, "out",
		BoxFunction{Name: "a", Kind: KindText, Box: Rect(0, 0, 1, 1)},
		BoxFunction{Name: "b", Kind: KindText, Box: Rect(0, 0, 1, 1)},
		BoxFunction{Name: "c", Kind: KindText, Box: Rect(0, 0, 1, 1)},
	)
	require.NoError(t, err)

	assert.True(t, lib.Remove("b"))
	assert.False(t, lib.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, names(lib))

	require.NoError(t, lib.Add(BoxFunction{Name: "b", Kind: KindNumber, Box: Rect(0, 0, 1, 1)}))
	assert.Equal(t, []string{"a", "c", "b"}, names(lib))
	assert.True(t, mapperr.Is(lib.Add(BoxFunction{Name: "a", Kind: KindText, Box: Rect(0, 0, 1, 1)}), mapperr.ErrDuplicateName))

	require.NoError(t, lib.Rename("c", "total"))
	assert.Equal(t, []string{"a", "total", "b"}, names(lib))
	assert.True(t, mapperr.Is(lib.Rename("a", "b"), mapperr.ErrDuplicateName))
	assert.True(t, mapperr.Is(lib.Rename("missing", "x"), mapperr.ErrInvalidName))
	assert.True(t, mapperr.Is(lib.Rename("a", "rt"), mapperr.ErrInvalidName))

	rule, ok := lib.Rule("total")
	require.True(t, ok)
	assert.Equal(t, KindText, rule.Kind)
	assert.Equal(t, 3, lib.Len())
}

func TestLibrary_RulesIsACopy(t *testing.T) {
	lib, err := New("lib.go", nil, "out",
		BoxFunction{Name: "a", Kind: KindText, Box: Rect(0, 0, 1, 1)},
	)
	require.NoError(t, err)

	rules := lib.Rules()
	rules[0].Name = "changed"
	_, ok := lib.Rule("a")
	assert.True(t, ok)
}

func TestLibrary_SetCaptureRegion(t *testing.T) {
	lib, err := New("lib.go", nil, "out",
		BoxFunction{Name: "wide", Kind: KindText, Box: Rect(0, 0, 300, 20)},
	)
	require.NoError(t, err)

	small := Rect(0, 0, 200, 200)
	assert.True(t, mapperr.Is(lib.SetCaptureRegion(&small), mapperr.ErrOutOfBoundsBox))
	assert.Nil(t, lib.CaptureRegion)

	large := Rect(10, 10, 400, 400)
	require.NoError(t, lib.SetCaptureRegion(&large))
	large.Width = 1
	assert.Equal(t, 400, lib.CaptureRegion.Width)

	require.NoError(t, lib.SetCaptureRegion(nil))
	assert.Nil(t, lib.CaptureRegion)
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"text":           KindText,
		"number":         KindNumber,
		"template_match": KindTemplateMatch,
		"string":         KindText,
		"position":       KindTemplateMatch,
		"Text":           KindText,
		"Number":         KindNumber,
		"TemplateMatch":  KindTemplateMatch,
		"TEMPLATE_MATCH": KindTemplateMatch,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("colour")
	assert.True(t, mapperr.Is(err, mapperr.ErrUnknownKind))
	assert.Equal(t, "template_match", KindTemplateMatch.String())
}

func TestBox_Within(t *testing.T) {
	assert.True(t, Rect(0, 0, 100, 100).Within(100, 100))
	assert.True(t, Rect(90, 40, 10, 60).Within(100, 100))
	assert.False(t, Rect(91, 0, 10, 10).Within(100, 100))
	assert.False(t, Rect(0, -1, 10, 10).Within(100, 100))
	assert.False(t, Rect(200, 0, 0, 0).Within(100, 100))

	// Sizes that would wrap around when added to the origin
	assert.False(t, Rect(1, 0, math.MaxInt, 10).Within(100, 100))
	assert.False(t, Rect(0, 1, 10, math.MaxInt).Within(100, 100))
	assert.False(t, Rect(math.MaxInt, 0, math.MaxInt, 10).Within(100, 100))
}

func TestParseBox(t *testing.T) {
	box, err := ParseBox(" 10, 20 ,30,40 ")
	require.NoError(t, err)
	assert.Equal(t, Rect(10, 20, 30, 40), box)
	assert.Equal(t, "10,20,30,40", box.String())

	for _, bad := range []string{"", "1,2,3", "1,2,3,x", "1,2,0,4"} {
		_, err := ParseBox(bad)
		assert.Error(t, err, bad)
	}
}

func names(lib *Library) []string {
	var out []string
	for _, rule := range lib.Rules() {
		out = append(out, rule.Name)
	}
	return out
}
