package snapshot

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_ByName(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		c, err := ByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	_, err := ByName("snappy")
	require.Error(t, err)
}

func TestCodecNames(t *testing.T) {
	assert.Equal(t, []string{"lz4", "none", "zstd"}, CodecNames())
}

func TestBlockStream_RoundTrip(t *testing.T) {
	// Compressible payload spanning several blocks plus a partial tail
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 400)

	for _, name := range CodecNames() {
		t.Run(name, func(t *testing.T) {
			codec, err := ByName(name)
			require.NoError(t, err)

			var buf bytes.Buffer
			bw := newBlockWriter(&buf, codec, 4096)
			_, err = bw.Write(payload)
			require.NoError(t, err)
			require.NoError(t, bw.Close())

			if name != "none" {
				assert.Less(t, buf.Len(), len(payload))
			}

			got := make([]byte, len(payload))
			br := newBlockReader(&buf, codec)
			_, err = io.ReadFull(br, got)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestBlockStream_IncompressibleStoredRaw(t *testing.T) {
	payload := make([]byte, 8192)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	codec, err := ByName("lz4")
	require.NoError(t, err)

	var buf bytes.Buffer
	bw := newBlockWriter(&buf, codec, 4096)
	_, err = bw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	// Two raw blocks cost only the 8-byte frame each
	assert.LessOrEqual(t, buf.Len(), len(payload)+2*blockHeaderSize)

	got := make([]byte, len(payload))
	br := newBlockReader(&buf, codec)
	_, err = io.ReadFull(br, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestBlockStream_LeavesTrailerUnread(t *testing.T) {
	codec, err := ByName("none")
	require.NoError(t, err)

	var buf bytes.Buffer
	bw := newBlockWriter(&buf, codec, 1024)
	_, err = bw.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, bw.Close())
	buf.Write([]byte("TRAILER"))

	got := make([]byte, 7)
	br := newBlockReader(&buf, codec)
	_, err = io.ReadFull(br, got)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	rest, err := io.ReadAll(&buf)
	require.NoError(t, err)
	assert.Equal(t, "TRAILER", string(rest))
}

func TestBlockStream_Truncated(t *testing.T) {
	codec, err := ByName("none")
	require.NoError(t, err)

	var buf bytes.Buffer
	bw := newBlockWriter(&buf, codec, 1024)
	_, err = bw.Write(bytes.Repeat([]byte("x"), 512))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()/2])
	got := make([]byte, 512)
	br := newBlockReader(truncated, codec)
	_, err = io.ReadFull(br, got)
	require.Error(t, err)
}
