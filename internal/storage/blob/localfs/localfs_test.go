package localfs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/storage/blob"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)
	return s
}

func TestPutGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	etag, err := s.Put(ctx, "job_1/input/a.json", bytes.NewReader([]byte(`{"a":1}`)), "application/json")
	require.NoError(t, err)
	assert.NotEmpty(t, etag)

	data, contentType, err := s.Get(ctx, "job_1/input/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
	assert.Equal(t, "application/json", contentType)
}

func TestGet_MissingKeyReturnsErrNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _, err := s.Get(ctx, "does/not/exist.json")
	assert.True(t, errors.Is(err, blob.ErrNotFound))
}

func TestPut_RejectsPathEscape(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Put(ctx, "../outside.json", bytes.NewReader([]byte("x")), "application/json")
	require.Error(t, err)
	var permErr *blob.PermanentError
	assert.ErrorAs(t, err, &permErr)
}

func TestList_FiltersByPrefixAndSortsKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Put(ctx, "job_2/result/b.json", bytes.NewReader([]byte("b")), "application/json")
	require.NoError(t, err)
	_, err = s.Put(ctx, "job_2/result/a.json", bytes.NewReader([]byte("a")), "application/json")
	require.NoError(t, err)
	_, err = s.Put(ctx, "job_3/result/c.json", bytes.NewReader([]byte("c")), "application/json")
	require.NoError(t, err)

	infos, err := s.List(ctx, "job_2/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "job_2/result/a.json", infos[0].Key)
	assert.Equal(t, "job_2/result/b.json", infos[1].Key)
}

func TestDelete_MissingKeyIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Delete(ctx, "never/existed.json")
	assert.NoError(t, err)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.Exists(ctx, "job_4/x.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Put(ctx, "job_4/x.json", bytes.NewReader([]byte("x")), "application/json")
	require.NoError(t, err)

	ok, err = s.Exists(ctx, "job_4/x.json")
	require.NoError(t, err)
	assert.True(t, ok)
}
