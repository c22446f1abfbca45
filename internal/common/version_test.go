package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion_ReturnsCurrentVersion(t *testing.T) {
	prev := Version
	defer func() { Version = prev }()

	Version = "9.9.9"
	assert.Equal(t, "9.9.9", GetVersion())
}

func TestGetFullVersion_IncludesBuildAndCommit(t *testing.T) {
	prevV, prevB, prevC := Version, BuildTime, GitCommit
	defer func() { Version, BuildTime, GitCommit = prevV, prevB, prevC }()

	Version, BuildTime, GitCommit = "1.2.3", "2026-07-29", "abc123"
	assert.Equal(t, "1.2.3 (build: 2026-07-29, commit: abc123)", GetFullVersion())
}
