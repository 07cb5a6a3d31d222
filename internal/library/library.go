package library

import (
	"go/token"
	"os"
	"unicode/utf8"

	mapperr "jordanella.com/screen-mapper/internal/errors"
)

// BoxFunction is one named extraction rule
type BoxFunction struct {
	Name          string
	Kind          Kind
	Box           Box
	TemplateImage string // Required for KindTemplateMatch, empty otherwise
}

// Library is an ordered set of rules plus the capture configuration they run under
type Library struct {
	DestinationPath string
	CaptureRegion   *Box // nil captures the entire screen
	OutputDirectory string

	rules []BoxFunction
	index map[string]int
}

// Names that generated artifacts already use on the library type.
var reservedNames = map[string]bool{
	"_":          true,
	"rt":         true,
	"GrabScreen": true,
}

// New builds a library, validating every rule in order. Template images must exist.
func New(destination string, region *Box, outputDirectory string, rules ...BoxFunction) (*Library, error) {
	return build(destination, region, outputDirectory, rules, true)
}

func build(destination string, region *Box, outputDirectory string, rules []BoxFunction, checkFiles bool) (*Library, error) {
	if region != nil && !region.Valid() {
		return nil, mapperr.NewInvalidBox("captureRegion", region.Width, region.Height)
	}
	if !utf8.ValidString(outputDirectory) {
		return nil, mapperr.NewMalformedMetadata(0, "output directory is not valid UTF-8")
	}

	lib := &Library{
		DestinationPath: destination,
		OutputDirectory: outputDirectory,
		index:           make(map[string]int, len(rules)),
	}
	if region != nil {
		r := *region
		lib.CaptureRegion = &r
	}

	for _, rule := range rules {
		if err := lib.add(rule, checkFiles); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// Rules returns a copy of the rules in insertion order.
func (l *Library) Rules() []BoxFunction {
	out := make([]BoxFunction, len(l.rules))
	copy(out, l.rules)
	return out
}

// Len returns the number of rules.
func (l *Library) Len() int {
	return len(l.rules)
}

// Rule looks up a rule by name.
func (l *Library) Rule(name string) (BoxFunction, bool) {
	i, ok := l.index[name]
	if !ok {
		return BoxFunction{}, false
	}
	return l.rules[i], true
}

// Add appends a rule after validating it against the library.
func (l *Library) Add(rule BoxFunction) error {
	return l.add(rule, true)
}

func (l *Library) add(rule BoxFunction, checkFiles bool) error {
	rule, err := l.validate(rule, checkFiles)
	if err != nil {
		return err
	}
	if _, exists := l.index[rule.Name]; exists {
		return mapperr.NewDuplicateName(rule.Name)
	}

	if l.index == nil {
		l.index = make(map[string]int)
	}
	l.index[rule.Name] = len(l.rules)
	l.rules = append(l.rules, rule)
	return nil
}

// Remove deletes a rule by name, keeping the order of the others.
func (l *Library) Remove(name string) bool {
	i, ok := l.index[name]
	if !ok {
		return false
	}
	l.rules = append(l.rules[:i], l.rules[i+1:]...)
	l.reindex()
	return true
}

// Rename changes a rule's name in place.
func (l *Library) Rename(oldName, newName string) error {
	i, ok := l.index[oldName]
	if !ok {
		return mapperr.NewInvalidName(oldName, "no such rule")
	}
	if oldName == newName {
		return nil
	}
	if err := validateName(newName); err != nil {
		return err
	}
	if _, exists := l.index[newName]; exists {
		return mapperr.NewDuplicateName(newName)
	}

	l.rules[i].Name = newName
	l.reindex()
	return nil
}

// SetCaptureRegion changes the capture region. Every rule must still fit.
func (l *Library) SetCaptureRegion(region *Box) error {
	if region != nil && !region.Valid() {
		return mapperr.NewInvalidBox("captureRegion", region.Width, region.Height)
	}
	for _, rule := range l.rules {
		if err := checkBounds(rule, region); err != nil {
			return err
		}
	}

	if region == nil {
		l.CaptureRegion = nil
		return nil
	}
	r := *region
	l.CaptureRegion = &r
	return nil
}

func (l *Library) reindex() {
	l.index = make(map[string]int, len(l.rules))
	for i, rule := range l.rules {
		l.index[rule.Name] = i
	}
}

// validate checks a rule in isolation and returns its normalized form.
func (l *Library) validate(rule BoxFunction, checkFiles bool) (BoxFunction, error) {
	if err := validateName(rule.Name); err != nil {
		return rule, err
	}
	if !rule.Kind.Valid() {
		return rule, mapperr.NewUnknownKind(rule.Kind.String())
	}
	if !rule.Box.Valid() {
		return rule, mapperr.NewInvalidBox(rule.Name, rule.Box.Width, rule.Box.Height)
	}
	if err := checkBounds(rule, l.CaptureRegion); err != nil {
		return rule, err
	}

	if rule.Kind != KindTemplateMatch {
		rule.TemplateImage = ""
		return rule, nil
	}
	if rule.TemplateImage == "" || !utf8.ValidString(rule.TemplateImage) {
		return rule, mapperr.NewMissingTemplateImage(rule.Name, "")
	}
	if checkFiles {
		if info, err := os.Stat(rule.TemplateImage); err != nil || info.IsDir() {
			return rule, mapperr.NewMissingTemplateImage(rule.Name, rule.TemplateImage)
		}
	}
	return rule, nil
}

func validateName(name string) error {
	if !token.IsIdentifier(name) {
		return mapperr.NewInvalidName(name, "not a valid identifier")
	}
	if reservedNames[name] {
		return mapperr.NewInvalidName(name, "reserved")
	}
	return nil
}

// Boxes are relative to the captured frame, so a region only constrains by its size.
func checkBounds(rule BoxFunction, region *Box) error {
	if region == nil {
		return nil
	}
	if !rule.Box.Within(region.Width, region.Height) {
		return mapperr.NewOutOfBoundsBox(rule.Name, rule.Box.Array(), region.Array())
	}
	return nil
}
