package mapper

import (
	"fmt"

	"github.com/antigravity-dev/ragforge/internal/models"
)

// Mapper applies a declarative models.Mapping to a decoded source record.
type Mapper struct{}

// New creates a Mapper.
func New() *Mapper {
	return &Mapper{}
}

// Apply projects record onto a NormalizedItem per mapping. A mapping valid
// for template T is guaranteed to succeed on every record matching T's
// required fingerprint (see Detector).
func (m *Mapper) Apply(mapping models.Mapping, record interface{}) (*models.NormalizedItem, error) {
	root, ok := record.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing-required-field: record is not an object")
	}

	content := make(map[string]string, len(mapping.Fields))
	var id, title string

	for target, fm := range mapping.Fields {
		value, err := resolveBinding(root, fm)
		if err != nil {
			return nil, err
		}

		transformed, err := applyTransform(fm.Transform, value)
		if err != nil {
			return nil, err
		}

		str := renderFieldValue(transformed)

		switch target {
		case "id":
			id = str
		case "title":
			title = str
		default:
			content[target] = str
		}
	}

	if id == "" {
		return nil, fmt.Errorf("missing-required-field: mapping produced empty id")
	}

	return &models.NormalizedItem{
		ID:      id,
		Title:   title,
		Content: content,
	}, nil
}

// resolveBinding resolves a FieldMapping's source value: a single Path, or
// the first non-empty entry in Candidates.
func resolveBinding(root map[string]interface{}, fm models.FieldMapping) (interface{}, error) {
	if fm.Path != "" {
		return resolvePath(root, fm.Path), nil
	}
	for _, candidate := range fm.Candidates {
		if v := resolvePath(root, candidate); v != nil && v != "" {
			return v, nil
		}
	}
	return nil, nil
}

func renderFieldValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		out := ""
		for i, s := range v {
			if i > 0 {
				out += ", "
			}
			out += s
		}
		return out
	default:
		return fmt.Sprintf("%v", v)
	}
}
