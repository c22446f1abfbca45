package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

func TestDetect_IssueTracker(t *testing.T) {
	d := NewDetector()

	items := []interface{}{
		map[string]interface{}{
			"key": "JIRA-1",
			"fields": map[string]interface{}{
				"summary":   "Outage",
				"issuetype": "Bug",
				"status":    "Open",
			},
		},
	}

	assert.Equal(t, interfaces.TemplateIssueTracker, d.Detect(items))
}

func TestDetect_WikiPage(t *testing.T) {
	d := NewDetector()

	items := []interface{}{
		map[string]interface{}{
			"id":    "123",
			"title": "Runbook",
			"body": map[string]interface{}{
				"storage": map[string]interface{}{
					"value": "<p>steps</p>",
				},
			},
		},
	}

	assert.Equal(t, interfaces.TemplateWikiPage, d.Detect(items))
}

func TestDetect_FallsBackToGeneric(t *testing.T) {
	d := NewDetector()

	items := []interface{}{
		map[string]interface{}{"name": "anything", "value": 1},
	}

	assert.Equal(t, interfaces.TemplateGeneric, d.Detect(items))
}

func TestDetect_EmptyInputIsGeneric(t *testing.T) {
	d := NewDetector()
	assert.Equal(t, interfaces.TemplateGeneric, d.Detect(nil))
}

func TestDetect_MixedSampleRequiresAllItemsToMatch(t *testing.T) {
	d := NewDetector()

	items := []interface{}{
		map[string]interface{}{
			"key": "JIRA-1",
			"fields": map[string]interface{}{
				"summary":   "Outage",
				"issuetype": "Bug",
			},
		},
		map[string]interface{}{"unrelated": true},
	}

	assert.Equal(t, interfaces.TemplateGeneric, d.Detect(items))
}
