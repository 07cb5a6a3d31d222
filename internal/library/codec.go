package library

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	mapperr "jordanella.com/screen-mapper/internal/errors"
)

// Metadata tags. They are written as comment directives so gofmt leaves them
// untouched when they sit directly above a declaration.
const (
	ClassTag = "//screenmapper:c "
	FuncTag  = "//screenmapper:f "

	// Artifacts written before the directive form used bare tags
	legacyClassTag = "//c "
	legacyFuncTag  = "//f "

	minTagLength = len(legacyClassTag)
)

// RuntimeImport is the package generated artifacts depend on.
const RuntimeImport = "jordanella.com/screen-mapper/pkg/screenlib"

// Metadata is everything Decode recovers from an artifact
type Metadata struct {
	CaptureRegion   *Box
	OutputDirectory string
	Rules           []BoxFunction
}

// Encode renders the library as a runnable Go program with embedded metadata.
// The output depends only on the library's contents.
func Encode(lib *Library) []byte {
	var b bytes.Buffer
	typeName := TypeName(lib.DestinationPath)

	b.WriteString("// Code generated by screenmapper. DO NOT EDIT.\n")
	b.WriteString("// Lines starting with //screenmapper: carry the library definition.\n")
	b.WriteString("\n")
	b.WriteString("package main\n")
	b.WriteString("\n")
	b.WriteString("import (\n")
	b.WriteString("\t\"image\"\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "\t%q\n", RuntimeImport)
	b.WriteString(")\n")
	b.WriteString("\n")

	fmt.Fprintf(&b, "// %s evaluates the rules of this library.\n", typeName)
	fmt.Fprintf(&b, "type %s struct {\n", typeName)
	b.WriteString("\trt *screenlib.Runtime\n")
	b.WriteString("}\n")
	b.WriteString("\n")
	b.WriteString(ClassTag + classPayload(lib) + "\n")
	b.WriteString("\n")

	if lib.CaptureRegion != nil {
		fmt.Fprintf(&b, "// GrabScreen captures the region %s.\n", lib.CaptureRegion)
		fmt.Fprintf(&b, "func (l *%s) GrabScreen() (*image.RGBA, error) {\n", typeName)
		fmt.Fprintf(&b, "\treturn l.rt.Grab(%s)\n", rectLiteral(*lib.CaptureRegion))
	} else {
		b.WriteString("// GrabScreen captures the entire screen.\n")
		fmt.Fprintf(&b, "func (l *%s) GrabScreen() (*image.RGBA, error) {\n", typeName)
		b.WriteString("\treturn l.rt.GrabScreen()\n")
	}
	b.WriteString("}\n")

	for _, rule := range lib.rules {
		b.WriteString("\n")
		b.WriteString(FuncTag + funcPayload(rule) + "\n")
		writeRuleBody(&b, typeName, rule)
	}

	b.WriteString("\n")
	b.WriteString("func main() {\n")
	fmt.Fprintf(&b, "\tl := &%s{rt: screenlib.MustNew()}\n", typeName)
	if len(lib.rules) == 0 {
		fmt.Fprintf(&b, "\tscreenlib.Main(l.GrabScreen, %s)\n", strconv.Quote(lib.OutputDirectory))
	} else {
		fmt.Fprintf(&b, "\tscreenlib.Main(l.GrabScreen, %s,\n", strconv.Quote(lib.OutputDirectory))
		for _, rule := range lib.rules {
			fmt.Fprintf(&b, "\t\tscreenlib.Rule(%s, l.%s),\n", strconv.Quote(rule.Name), rule.Name)
		}
		b.WriteString("\t)\n")
	}
	b.WriteString("}\n")

	return b.Bytes()
}

func writeRuleBody(b *bytes.Buffer, typeName string, rule BoxFunction) {
	rect := rectLiteral(rule.Box)
	switch rule.Kind {
	case KindText:
		fmt.Fprintf(b, "func (l *%s) %s(frame *image.RGBA) (string, error) {\n", typeName, rule.Name)
		fmt.Fprintf(b, "\treturn l.rt.Text(frame, %s)\n", rect)
	case KindNumber:
		fmt.Fprintf(b, "func (l *%s) %s(frame *image.RGBA) (float64, error) {\n", typeName, rule.Name)
		fmt.Fprintf(b, "\treturn l.rt.Number(frame, %s)\n", rect)
	case KindTemplateMatch:
		fmt.Fprintf(b, "func (l *%s) %s(frame *image.RGBA) ([]image.Point, error) {\n", typeName, rule.Name)
		fmt.Fprintf(b, "\treturn l.rt.Match(frame, %s, %s)\n", rect, strconv.Quote(rule.TemplateImage))
	}
	b.WriteString("}\n")
}

func classPayload(lib *Library) string {
	region := "null"
	if lib.CaptureRegion != nil {
		region = boxLiteral(*lib.CaptureRegion)
	}
	return fmt.Sprintf(`{"captureRegion": %s, "outputDirectory": %s}`,
		region, strconv.Quote(lib.OutputDirectory))
}

func funcPayload(rule BoxFunction) string {
	return fmt.Sprintf("(%s, %s, %s, %s)",
		strconv.Quote(rule.Name),
		strconv.Quote(rule.Kind.String()),
		boxLiteral(rule.Box),
		strconv.Quote(rule.TemplateImage))
}

func boxLiteral(b Box) string {
	return fmt.Sprintf("[%d, %d, %d, %d]", b.X, b.Y, b.Width, b.Height)
}

func rectLiteral(b Box) string {
	return fmt.Sprintf("screenlib.Rect(%d, %d, %d, %d)", b.X, b.Y, b.Width, b.Height)
}

// TypeName derives the generated type's name from the artifact's file name.
func TypeName(destination string) string {
	base := filepath.Base(destination)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var sb strings.Builder
	upper := true
	for _, r := range base {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}

	name := sb.String()
	if name == "" {
		return "Library"
	}
	if unicode.IsDigit([]rune(name)[0]) {
		return "Library" + name
	}
	return name
}

// Decode reads the metadata lines of an artifact. Generated code is never interpreted.
func Decode(data []byte) (*Metadata, error) {
	var (
		meta     Metadata
		seenHead bool
	)

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lineNo := i + 1
		line = strings.TrimRight(line, "\r")
		if len(line) < minTagLength {
			continue
		}

		tag, payload := cutTag(line)
		switch tag {
		case ClassTag:
			if seenHead {
				return nil, mapperr.NewMalformedMetadata(lineNo, "more than one library record")
			}
			region, dir, err := decodeClass(payload)
			if err != nil {
				return nil, mapperr.NewMalformedMetadata(lineNo, err.Error())
			}
			meta.CaptureRegion = region
			meta.OutputDirectory = dir
			seenHead = true

		case FuncTag:
			rule, err := decodeFunc(payload)
			if err != nil {
				if mapperr.Is(err, mapperr.ErrUnknownKind) {
					return nil, err
				}
				return nil, mapperr.NewMalformedMetadata(lineNo, err.Error())
			}
			meta.Rules = append(meta.Rules, rule)
		}
	}

	if !seenHead {
		return nil, mapperr.NewMalformedMetadata(0, "no library record found")
	}

	// Structural validation only; template files may live on another machine.
	lib, err := build("", meta.CaptureRegion, meta.OutputDirectory, meta.Rules, false)
	if err != nil {
		return nil, err
	}
	meta.Rules = lib.Rules()
	return &meta, nil
}

// cutTag splits a metadata line into its tag, normalized to the directive
// form, and payload. Untagged lines return an empty tag.
func cutTag(line string) (string, string) {
	for _, tags := range [][2]string{
		{ClassTag, ClassTag},
		{FuncTag, FuncTag},
		{legacyClassTag, ClassTag},
		{legacyFuncTag, FuncTag},
	} {
		if payload, ok := strings.CutPrefix(line, tags[0]); ok {
			return tags[1], payload
		}
	}
	return "", ""
}

func decodeClass(payload string) (*Box, string, error) {
	root, err := parseLiteral(payload)
	if err != nil {
		return nil, "", err
	}
	if root.Kind != yaml.MappingNode {
		return nil, "", fmt.Errorf("library record: want a mapping")
	}

	var (
		region    *Box
		dir       string
		hasRegion bool
		hasDir    bool
	)
	seen := make(map[string]bool, len(root.Content)/2)
	for i := 0; i < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if seen[key] {
			return nil, "", fmt.Errorf("library record: duplicate key %q", key)
		}
		seen[key] = true
		switch key {
		case "captureRegion":
			hasRegion = true
			if isNull(value) {
				continue
			}
			box, err := literalBox(value, key)
			if err != nil {
				return nil, "", err
			}
			region = &box
		case "outputDirectory":
			hasDir = true
			if dir, err = literalString(value, key); err != nil {
				return nil, "", err
			}
		default:
			return nil, "", fmt.Errorf("library record: unexpected key %q", key)
		}
	}

	if !hasRegion || !hasDir {
		return nil, "", fmt.Errorf("library record: captureRegion and outputDirectory are required")
	}
	return region, dir, nil
}

func decodeFunc(payload string) (BoxFunction, error) {
	root, err := parseLiteral(payload)
	if err != nil {
		return BoxFunction{}, err
	}
	if root.Kind != yaml.SequenceNode || len(root.Content) != 4 {
		return BoxFunction{}, fmt.Errorf("rule record: want (name, kind, box, templateImage)")
	}

	name, err := literalString(root.Content[0], "name")
	if err != nil {
		return BoxFunction{}, err
	}
	kindName, err := literalString(root.Content[1], "kind")
	if err != nil {
		return BoxFunction{}, err
	}
	kind, err := ParseKind(kindName)
	if err != nil {
		return BoxFunction{}, err
	}
	box, err := literalBox(root.Content[2], "box")
	if err != nil {
		return BoxFunction{}, err
	}
	templateImage, err := literalString(root.Content[3], "templateImage")
	if err != nil {
		return BoxFunction{}, err
	}

	return BoxFunction{Name: name, Kind: kind, Box: box, TemplateImage: templateImage}, nil
}

// Save encodes the library to its destination, replacing any previous file atomically.
func Save(lib *Library) error {
	if lib.DestinationPath == "" {
		return fmt.Errorf("library has no destination path")
	}

	dir := filepath.Dir(lib.DestinationPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".library-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(Encode(lib)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write library: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write library: %w", err)
	}
	if err := os.Rename(tmpPath, lib.DestinationPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace library: %w", err)
	}
	return nil
}

// Load reads and decodes the artifact at path.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read library %s: %w", path, err)
	}

	meta, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode library %s: %w", path, err)
	}

	return build(path, meta.CaptureRegion, meta.OutputDirectory, meta.Rules, false)
}
