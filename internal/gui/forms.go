package gui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"jordanella.com/screen-mapper/internal/library"
)

// parseRegionField reads the capture region entry. Blank means the whole screen.
func parseRegionField(text string) (*library.Box, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	box, err := library.ParseBox(text)
	if err != nil {
		return nil, fmt.Errorf("capture region: %w", err)
	}
	return &box, nil
}

func regionText(region *library.Box) string {
	if region == nil {
		return ""
	}
	return region.String()
}

// parseRuleForm builds a rule from the add-rule fields
func parseRuleForm(name, kind, box, templateImage string) (library.BoxFunction, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return library.BoxFunction{}, fmt.Errorf("rule name is required")
	}

	k, err := library.ParseKind(strings.TrimSpace(kind))
	if err != nil {
		return library.BoxFunction{}, err
	}

	b, err := library.ParseBox(box)
	if err != nil {
		return library.BoxFunction{}, err
	}

	rule := library.BoxFunction{Name: name, Kind: k, Box: b}
	if k == library.KindTemplateMatch {
		rule.TemplateImage = strings.TrimSpace(templateImage)
	}
	return rule, nil
}

// parsePeriodField reads a period in milliseconds
func parsePeriodField(text string) (time.Duration, error) {
	ms, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("period must be a whole number of milliseconds")
	}
	if ms <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// applyHeader copies the library-level fields into lib. lib is unchanged when
// the region does not fit its rules.
func applyHeader(lib *library.Library, destination, region, outputDirectory string) error {
	box, err := parseRegionField(region)
	if err != nil {
		return err
	}
	if err := lib.SetCaptureRegion(box); err != nil {
		return err
	}
	lib.DestinationPath = strings.TrimSpace(destination)
	lib.OutputDirectory = strings.TrimSpace(outputDirectory)
	return nil
}

func ruleSummary(rule library.BoxFunction) string {
	s := fmt.Sprintf("%-16s %-15s [%s]", rule.Name, rule.Kind, rule.Box)
	if rule.TemplateImage != "" {
		s += "  " + filepath.Base(rule.TemplateImage)
	}
	return s
}
