package library

import (
	"strings"

	mapperr "jordanella.com/screen-mapper/internal/errors"
)

// Kind is the extraction algorithm applied to a rule's box
type Kind int

const (
	// KindText reads the text inside the box
	KindText Kind = iota
	// KindNumber reads a floating-point number inside the box
	KindNumber
	// KindTemplateMatch locates a reference image inside the box
	KindTemplateMatch
)

var kindNames = map[Kind]string{
	KindText:          "text",
	KindNumber:        "number",
	KindTemplateMatch: "template_match",
}

// Other accepted spellings, compared case-insensitively. Older artifacts used
// string and position; the CamelCase names match the kinds' Go identifiers.
var kindAliases = map[string]Kind{
	"string":        KindText,
	"position":      KindTemplateMatch,
	"templatematch": KindTemplateMatch,
}

// Kinds lists every extraction kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindText, KindNumber, KindTemplateMatch}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether k belongs to the closed set of kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind maps a persisted kind name back to a Kind. Case is ignored, so
// "Number" and "TemplateMatch" are accepted alongside "number" and "template_match".
func ParseKind(s string) (Kind, error) {
	lower := strings.ToLower(s)
	for kind, name := range kindNames {
		if name == lower {
			return kind, nil
		}
	}
	if kind, ok := kindAliases[lower]; ok {
		return kind, nil
	}
	return 0, mapperr.NewUnknownKind(s)
}
