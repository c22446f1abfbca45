package mapper

import (
	"strings"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

const defaultSampleSize = 64

// Detector scores decoded top-level items against the built-in templates.
type Detector struct {
	sampleSize int
}

// NewDetector creates a Detector sampling up to the default 64 top-level
// items (or the sole root).
func NewDetector() *Detector {
	return &Detector{sampleSize: defaultSampleSize}
}

// Detect inspects up to d.sampleSize items and returns the first template
// whose required fingerprint fields all match across the sample; ties are
// broken by higher coverage of optional fields. Absent a match, returns
// TemplateGeneric.
func (d *Detector) Detect(items []interface{}) interfaces.StructureTemplate {
	sample := items
	if len(sample) > d.sampleSize {
		sample = sample[:d.sampleSize]
	}
	if len(sample) == 0 {
		return interfaces.TemplateGeneric
	}

	bestTemplate := interfaces.TemplateGeneric
	bestCoverage := -1

	for _, fp := range builtinTemplates {
		if !allItemsMatchRequired(sample, fp.required) {
			continue
		}
		coverage := optionalCoverage(sample, fp.optional)
		if coverage > bestCoverage {
			bestCoverage = coverage
			bestTemplate = fp.template
		}
	}

	return bestTemplate
}

func allItemsMatchRequired(items []interface{}, required []string) bool {
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return false
		}
		for _, path := range required {
			if resolvePath(m, path) == nil {
				return false
			}
		}
	}
	return true
}

func optionalCoverage(items []interface{}, optional []string) int {
	matched := 0
	for _, path := range optional {
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if resolvePath(m, path) != nil {
				matched++
				break
			}
		}
	}
	return matched
}

// resolvePath walks a dotted path (e.g. "fields.summary") through nested
// map[string]interface{} values, returning nil if any segment is absent.
func resolvePath(m map[string]interface{}, path string) interface{} {
	segments := strings.Split(path, ".")
	var current interface{} = m
	for _, seg := range segments {
		asMap, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		val, ok := asMap[seg]
		if !ok {
			return nil
		}
		current = val
	}
	return current
}
