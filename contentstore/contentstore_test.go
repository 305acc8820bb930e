package contentstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreconvo/domain"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	store := NewFilesystemStore(t.TempDir())
	ctx := context.Background()

	ref, err := store.Put(ctx, "images", []byte("fake-png-bytes"), domain.ContentTypeImage)
	require.NoError(t, err)
	assert.Contains(t, ref, "images/")
	assert.Contains(t, ref, ".img")

	data, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-png-bytes"), data)
}

func TestFilesystemStoreGetMissingRef(t *testing.T) {
	store := NewFilesystemStore(t.TempDir())
	_, err := store.Get(context.Background(), "images/nonexistent.img")
	require.Error(t, err)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrNotFound, kind)
}

func TestBase64StoreRoundTrip(t *testing.T) {
	store := NewBase64Store()
	ctx := context.Background()

	ref, err := store.Put(ctx, "audio", []byte("fake-wav-bytes"), domain.ContentTypeAudio)
	require.NoError(t, err)
	assert.Contains(t, ref, "base64:audio:")

	data, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-wav-bytes"), data)
}

func TestBase64StoreRejectsMalformedRef(t *testing.T) {
	store := NewBase64Store()
	_, err := store.Get(context.Background(), "not-a-valid-ref")
	require.Error(t, err)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrInvalidReference, kind)
}
