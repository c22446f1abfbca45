package models

// Blob is an immutable (after successful put) byte object addressed by a
// path-like, forward-slash key. Ownership passes to the writer at put time;
// readers hold read-only handles.
type Blob struct {
	Key         string `json:"key"`
	Content     []byte `json:"-"`
	ContentType string `json:"content_type"`
	ETag        string `json:"etag"`
	Size        int64  `json:"size"`
}

// BlobInfo is the metadata-only projection of a Blob, returned by List.
type BlobInfo struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	ETag        string `json:"etag"`
	Size        int64  `json:"size"`
}
