package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDs_HavePrefixesAndAreUnique(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
		gen    func() string
	}{
		{"job", "job_", NewJobID},
		{"item", "item_", NewItemID},
		{"blob", "blob_", NewBlobID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := tc.gen()
			b := tc.gen()
			assert.True(t, strings.HasPrefix(a, tc.prefix))
			assert.NotEqual(t, a, b)
		})
	}
}
