package mapper

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/antigravity-dev/ragforge/internal/models"
)

var validate = validator.New()

// LoadMapping decodes and validates a mapping definition, rejecting unknown
// transform kinds at load time rather than deferring to Apply.
func LoadMapping(raw []byte) (*models.Mapping, error) {
	var mapping models.Mapping
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return nil, fmt.Errorf("submission-rejected: invalid mapping json: %w", err)
	}

	if err := validate.Struct(&mapping); err != nil {
		return nil, fmt.Errorf("submission-rejected: %w", err)
	}

	for field, fm := range mapping.Fields {
		if fm.Path == "" && len(fm.Candidates) == 0 {
			return nil, fmt.Errorf("submission-rejected: field %q has neither path nor candidates", field)
		}
		if fm.Transform != "" && !models.KnownTransforms[fm.Transform] {
			return nil, fmt.Errorf("submission-rejected: field %q uses unknown transform %q", field, fm.Transform)
		}
	}

	return &mapping, nil
}
