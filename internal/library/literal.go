package library

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scalar tags a metadata literal may contain. Anything else is rejected.
var literalTags = map[string]bool{
	"!!str":   true,
	"!!int":   true,
	"!!float": true,
	"!!bool":  true,
	"!!null":  true,
}

// parseLiteral parses a metadata payload as a plain data literal. Only strings,
// numbers, booleans, null, sequences and string-keyed mappings are accepted;
// explicit tags, anchors and aliases are refused. A parenthesized tuple is read
// as a sequence.
func parseLiteral(payload string) (*yaml.Node, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}
	if strings.HasPrefix(payload, "(") && strings.HasSuffix(payload, ")") {
		payload = "[" + payload[1:len(payload)-1] + "]"
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("not a literal: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("not a single literal")
	}

	root := doc.Content[0]
	if err := checkLiteral(root); err != nil {
		return nil, err
	}
	return root, nil
}

func checkLiteral(n *yaml.Node) error {
	if n.Anchor != "" {
		return fmt.Errorf("anchors are not allowed")
	}
	if n.Style&yaml.TaggedStyle != 0 {
		return fmt.Errorf("explicit tag %s is not allowed", n.Tag)
	}

	switch n.Kind {
	case yaml.ScalarNode:
		if !literalTags[n.Tag] {
			return fmt.Errorf("unsupported scalar %s", n.Tag)
		}
		return nil

	case yaml.SequenceNode:
		for _, child := range n.Content {
			if err := checkLiteral(child); err != nil {
				return err
			}
		}
		return nil

	case yaml.MappingNode:
		for i := 0; i < len(n.Content); i += 2 {
			if n.Content[i].Kind != yaml.ScalarNode || n.Content[i].Tag != "!!str" {
				return fmt.Errorf("mapping keys must be strings")
			}
			if err := checkLiteral(n.Content[i]); err != nil {
				return err
			}
			if err := checkLiteral(n.Content[i+1]); err != nil {
				return err
			}
		}
		return nil

	case yaml.AliasNode:
		return fmt.Errorf("aliases are not allowed")

	default:
		return fmt.Errorf("unsupported literal")
	}
}

func literalString(n *yaml.Node, field string) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Tag != "!!str" {
		return "", fmt.Errorf("%s: want string", field)
	}
	return n.Value, nil
}

func literalBox(n *yaml.Node, field string) (Box, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 4 {
		return Box{}, fmt.Errorf("%s: want [x, y, width, height]", field)
	}

	var values [4]int
	for i, item := range n.Content {
		if item.Kind != yaml.ScalarNode || item.Tag != "!!int" {
			return Box{}, fmt.Errorf("%s: element %d is not an integer", field, i)
		}
		if err := item.Decode(&values[i]); err != nil {
			return Box{}, fmt.Errorf("%s: element %d: %w", field, i, err)
		}
	}
	return Rect(values[0], values[1], values[2], values[3]), nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}
