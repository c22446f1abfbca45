package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix.
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewItemID generates a unique normalized-item ID with the "item_" prefix.
func NewItemID() string {
	return "item_" + uuid.New().String()
}

// NewBlobID generates a unique blob key component with the "blob_" prefix.
func NewBlobID() string {
	return "blob_" + uuid.New().String()
}
