package screenlib

import (
	"fmt"
	"image"

	"jordanella.com/screen-mapper/internal/extract"
	"jordanella.com/screen-mapper/internal/library"
)

// Value is a result type a rule may produce
type Value interface {
	string | float64 | []image.Point
}

// NamedRule is a rule ready to run under Main
type NamedRule struct {
	Name string
	Kind library.Kind
	eval func(frame *image.RGBA) (extract.Result, error)
}

// Evaluate runs the rule on frame
func (r NamedRule) Evaluate(frame *image.RGBA) (extract.Result, error) {
	return r.eval(frame)
}

// Rule wraps a generated rule method. The kind follows from its result type.
func Rule[T Value](name string, fn func(frame *image.RGBA) (T, error)) NamedRule {
	var zero T
	kind := kindOf(any(zero))

	return NamedRule{
		Name: name,
		Kind: kind,
		eval: func(frame *image.RGBA) (extract.Result, error) {
			v, err := fn(frame)
			res := extract.Result{Kind: kind}
			if err != nil {
				return res, err
			}
			switch v := any(v).(type) {
			case string:
				res.Text = v
			case float64:
				res.Number = v
			case []image.Point:
				res.Matches = v
			default:
				return res, fmt.Errorf("rule %s: unsupported result %T", name, v)
			}
			return res, nil
		},
	}
}

func kindOf(v any) library.Kind {
	switch v.(type) {
	case float64:
		return library.KindNumber
	case []image.Point:
		return library.KindTemplateMatch
	default:
		return library.KindText
	}
}
