package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec compresses and decompresses payload blocks.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name returns the stable codec name stored in snapshot headers.
	Name() string
	// Compress returns the compressed form of data, or nil if the data
	// is incompressible and should be stored raw.
	Compress(data []byte) ([]byte, error)
	// Decompress expands src into dst. len(dst) is the exact
	// uncompressed size.
	Decompress(src, dst []byte) error
}

var codecs = map[string]Codec{
	"none": noneCodec{},
	"lz4":  lz4Codec{},
	"zstd": zstdCodec{},
}

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", name)
	}
	return c, nil
}

// CodecNames returns the registered codec names, sorted.
func CodecNames() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// noneCodec stores every block raw.
type noneCodec struct{}

func (noneCodec) Name() string { return "none" }

func (noneCodec) Compress([]byte) ([]byte, error) {
	return nil, nil // always incompressible
}

func (noneCodec) Decompress(src, dst []byte) error {
	if len(src) != len(dst) {
		return errors.New("decompressed size mismatch")
	}
	copy(dst, src)
	return nil
}

// lz4Codec uses LZ4 block compression (fast, moderate ratio).
type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Compress(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // Incompressible
	}
	return compressed[:n], nil
}

func (lz4Codec) Decompress(src, dst []byte) error {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return errors.New("decompressed size mismatch")
	}
	return nil
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// zstdCodec uses ZSTD block compression (better ratio than LZ4).
type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) Compress(data []byte) ([]byte, error) {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(data, nil), nil
}

func (zstdCodec) Decompress(src, dst []byte) error {
	dec := getZstdDecoder()
	defer putZstdDecoder(dec)

	decoded, err := dec.DecodeAll(src, dst[:0])
	if err != nil {
		return err
	}
	if len(decoded) != len(dst) {
		return errors.New("decompressed size mismatch")
	}
	if len(decoded) > 0 && &decoded[0] != &dst[0] {
		copy(dst, decoded)
	}
	return nil
}
