package memory_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/vfs"
	memorystorage "github.com/tendant/simple-vfs/pkg/vfs/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "offline/0b6e2c5e-5a50-4c77-9a0e-4c1a6b6f3c11"
	testData := "Hello, World! This is test data."

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData))
		assert.NoError(t, err)
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("UploadReplaces", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, testKey, bytes.NewReader([]byte("v2"))))

		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()
		data, _ := io.ReadAll(reader)
		assert.Equal(t, "v2", string(data))
	})

	t.Run("Delete", func(t *testing.T) {
		assert.NoError(t, backend.Delete(ctx, testKey))

		_, err := backend.Download(ctx, testKey)
		assert.ErrorIs(t, err, vfs.ErrNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		err := backend.Delete(ctx, "offline/missing")
		assert.ErrorIs(t, err, vfs.ErrNotFound)
	})
}
