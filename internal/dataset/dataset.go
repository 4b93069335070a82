// Package dataset reads element files for ingestion.
//
// A dataset file is YAML (JSON is accepted as a subset) holding either a
// list of elements or a mapping with an "elements" list. Each element is a
// mapping with label and content (id is optional) or a bare string, which
// becomes the content.
//
//	elements:
//	  - label: Password policy
//	    content: Passwords must be at least 12 characters.
//	  - Sessions expire after 30 minutes of inactivity.
package dataset

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dyluth/auditor/pkg/blackboard"
)

// item is one element as written in a file.
type item struct {
	ID      string `yaml:"id"`
	Label   string `yaml:"label"`
	Content string `yaml:"content"`
}

// UnmarshalYAML accepts either a mapping or a bare scalar.
func (i *item) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		i.Content = node.Value
		return nil
	}
	type plain item
	return node.Decode((*plain)(i))
}

type file struct {
	Elements []item `yaml:"elements"`
}

// Parse decodes dataset file contents into elements ready for
// blackboard.Client.AddElements. Dataset and index are assigned at ingestion.
func Parse(data []byte) ([]*blackboard.Element, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}

	var items []item
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&items); err != nil {
			return nil, fmt.Errorf("failed to parse dataset: %w", err)
		}
	case yaml.MappingNode:
		var f file
		if err := doc.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse dataset: %w", err)
		}
		items = f.Elements
	default:
		return nil, fmt.Errorf("dataset must be a list of elements or a mapping with an 'elements' list")
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("dataset contains no elements")
	}

	seen := make(map[string]int, len(items))
	elements := make([]*blackboard.Element, 0, len(items))
	for i, it := range items {
		el := &blackboard.Element{
			ID:      strings.ToLower(strings.TrimSpace(it.ID)),
			Label:   strings.TrimSpace(it.Label),
			Content: strings.TrimSpace(it.Content),
		}
		if el.Label == "" && el.Content == "" {
			return nil, fmt.Errorf("element %d: label or content is required", i+1)
		}
		if el.ID != "" {
			if _, err := uuid.Parse(el.ID); err != nil {
				return nil, fmt.Errorf("element %d: id %q is not a valid UUID", i+1, it.ID)
			}
			if prev, dup := seen[el.ID]; dup {
				return nil, fmt.Errorf("element %d: id %s already used by element %d", i+1, el.ID, prev)
			}
			seen[el.ID] = i + 1
		}
		elements = append(elements, el)
	}
	return elements, nil
}

// Load reads and parses a dataset file.
func Load(path string) ([]*blackboard.Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("dataset file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	elements, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return elements, nil
}
