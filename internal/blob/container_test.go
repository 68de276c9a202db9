package blob_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/blob"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleIndex = []byte(`{"version":1,"namespaces":[{"name":"simple_net","doc":"","strings":["Tensor"],"items":[[3,0,-1,-1,null,null]],"parents":[]}]}`)

func TestWrapOpen_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range []blob.Compression{blob.CompressionNone, blob.CompressionLZ4, blob.CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			raw := bytes.Repeat(sampleIndex, 20)
			wrapped, err := blob.Wrap(raw, c)
			require.NoError(t, err)
			assert.True(t, blob.IsContainer(wrapped))

			got, h, err := blob.Open(wrapped)
			require.NoError(t, err)
			require.NotNil(t, h)
			assert.Equal(t, c, h.Compression)
			assert.Equal(t, uint64(len(raw)), h.RawSize)
			assert.Equal(t, raw, got)
		})
	}
}

func TestOpen_BareJSON(t *testing.T) {
	t.Parallel()

	got, h, err := blob.Open(sampleIndex)
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Equal(t, sampleIndex, got)
}

func TestOpen_Corruption(t *testing.T) {
	t.Parallel()

	wrapped, err := blob.Wrap(sampleIndex, blob.CompressionNone)
	require.NoError(t, err)

	t.Run("flipped payload byte", func(t *testing.T) {
		t.Parallel()
		bad := append([]byte(nil), wrapped...)
		bad[blob.HeaderSize+5] ^= 0xFF
		_, _, err := blob.Open(bad)
		assert.ErrorIs(t, err, apperrors.ErrChecksumMismatch)
	})

	t.Run("truncated payload", func(t *testing.T) {
		t.Parallel()
		_, _, err := blob.Open(wrapped[:len(wrapped)-3])
		assert.ErrorIs(t, err, apperrors.ErrInvalidContainer)
	})

	t.Run("truncated header", func(t *testing.T) {
		t.Parallel()
		_, _, err := blob.Open(wrapped[:10])
		assert.ErrorIs(t, err, apperrors.ErrInvalidContainer)
	})

	for _, c := range []blob.Compression{blob.CompressionNone, blob.CompressionLZ4, blob.CompressionZstd} {
		t.Run("inflated raw size "+c.String(), func(t *testing.T) {
			t.Parallel()
			_, _, err := blob.Open(withRawSize(t, c, blob.MaxRawSize))
			assert.ErrorIs(t, err, apperrors.ErrInvalidContainer)
		})
	}
}

// withRawSize wraps a tiny document and overwrites the header's raw size.
func withRawSize(t *testing.T, c blob.Compression, size uint64) []byte {
	t.Helper()
	wrapped, err := blob.Wrap([]byte("{}"), c)
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(wrapped[16:24], size)
	return wrapped
}

func TestOpen_InflatedRawSizeDoesNotPreallocate(t *testing.T) {
	for _, c := range []blob.Compression{blob.CompressionLZ4, blob.CompressionZstd} {
		data := withRawSize(t, c, blob.MaxRawSize)

		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		_, _, err := blob.Open(data)
		runtime.ReadMemStats(&after)

		require.ErrorIs(t, err, apperrors.ErrInvalidContainer)
		assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20), c.String())
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	c, err := blob.ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, blob.CompressionZstd, c)

	c, err = blob.ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, blob.CompressionNone, c)

	_, err = blob.ParseCompression("brotli")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "index.dsix")
	require.NoError(t, blob.WriteFile(path, sampleIndex))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleIndex, got)
	assert.NoFileExists(t, path+".tmp")
}

func TestWriteFile_FailureRemovesTemp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "index.dsix")
	require.NoError(t, os.Mkdir(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "occupied"), nil, 0644))

	err := blob.WriteFile(path, sampleIndex)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renaming index file")
	assert.NoFileExists(t, path+".tmp")
}

func TestParseIndex(t *testing.T) {
	t.Parallel()

	idx, err := blob.ParseIndex(sampleIndex)
	require.NoError(t, err)
	require.Len(t, idx.Namespaces, 1)

	name, ok := blob.PeekName(idx.Namespaces[0])
	require.True(t, ok)
	assert.Equal(t, "simple_net", name)

	ns, err := blob.DecodeNamespace(idx.Namespaces[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"Tensor"}, ns.Strings)
	assert.Len(t, ns.Items, 1)

	_, err = blob.ParseIndex([]byte(`{"version":2,"namespaces":[]}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidContainer)

	_, err = blob.ParseIndex([]byte(`not json`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidContainer)
}
