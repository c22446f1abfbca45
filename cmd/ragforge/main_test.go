package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFlag(t *testing.T) {
	assert.True(t, isFlag("-config"))
	assert.True(t, isFlag("--config"))
	assert.False(t, isFlag("serve"))
	assert.False(t, isFlag(""))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", contentTypeFor("report.pdf"))
	assert.Equal(t, "application/pdf", contentTypeFor("/tmp/scan.pdf"))
	assert.Equal(t, "application/json", contentTypeFor("jira-export.json"))
	assert.Equal(t, "application/json", contentTypeFor("no-extension"))
}

func TestSourceKindFor(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"jira-export.json", "jira"},
		{"wiki_dump.json", "wiki"},
		{"confluence.json", "confluence"},
		{"a-b-c.json", "a"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sourceKindFor(tc.path), tc.path)
	}
}

func TestIndexOfDash(t *testing.T) {
	assert.Equal(t, 4, indexOfDash("jira-export"))
	assert.Equal(t, 4, indexOfDash("wiki_dump"))
	assert.Equal(t, -1, indexOfDash("noseparator"))
}
