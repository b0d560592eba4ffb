package snapshot

import (
	"encoding/binary"
	"errors"
	"io"
)

// The payload section is a sequence of independently framed blocks:
//
//	[UncompressedSize uint32][CompressedSize uint32][Data...]
//
// CompressedSize == 0 means the block is stored raw. Blocks whose
// compressed form saves less than 10% are stored raw as well, so
// incompressible data costs only the 8-byte frame per block.

const (
	blockHeaderSize = 8

	// defaultBlockSize is the amount of payload gathered per block.
	// Large enough to amortize the frame and give the codec real
	// context, small enough to bound per-block memory.
	defaultBlockSize = 256 * 1024
)

// blockWriter frames and compresses a byte stream into blocks.
type blockWriter struct {
	w       io.Writer
	codec   Codec
	buf     []byte
	n       int
	scratch [blockHeaderSize]byte
}

func newBlockWriter(w io.Writer, codec Codec, blockSize int) *blockWriter {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	return &blockWriter{
		w:     w,
		codec: codec,
		buf:   make([]byte, blockSize),
	}
}

func (bw *blockWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := copy(bw.buf[bw.n:], p)
		bw.n += n
		p = p[n:]
		written += n

		if bw.n == len(bw.buf) {
			if err := bw.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Close flushes the final partial block. It does not close the
// underlying writer.
func (bw *blockWriter) Close() error {
	if bw.n == 0 {
		return nil
	}
	return bw.flush()
}

func (bw *blockWriter) flush() error {
	data := bw.buf[:bw.n]
	bw.n = 0

	compressed, err := bw.codec.Compress(data)
	if err != nil {
		return err
	}

	// If compression doesn't help (ratio > 0.9), store raw
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		binary.LittleEndian.PutUint32(bw.scratch[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(bw.scratch[4:], 0) // 0 = raw
		if _, err := bw.w.Write(bw.scratch[:]); err != nil {
			return err
		}
		_, err := bw.w.Write(data)
		return err
	}

	binary.LittleEndian.PutUint32(bw.scratch[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(bw.scratch[4:], uint32(len(compressed)))
	if _, err := bw.w.Write(bw.scratch[:]); err != nil {
		return err
	}
	_, err = bw.w.Write(compressed)
	return err
}

// blockReader reconstructs the byte stream written by blockWriter.
// It reads exactly to block boundaries and never consumes bytes past
// the final block, so trailing data (the checksum footer) stays in the
// underlying reader.
type blockReader struct {
	r       io.Reader
	codec   Codec
	block   []byte
	off     int
	scratch [blockHeaderSize]byte
}

func newBlockReader(r io.Reader, codec Codec) *blockReader {
	return &blockReader{r: r, codec: codec}
}

func (br *blockReader) Read(p []byte) (int, error) {
	for br.off == len(br.block) {
		if err := br.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, br.block[br.off:])
	br.off += n
	return n, nil
}

func (br *blockReader) next() error {
	if _, err := io.ReadFull(br.r, br.scratch[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	uncompressedSize := binary.LittleEndian.Uint32(br.scratch[0:])
	compressedSize := binary.LittleEndian.Uint32(br.scratch[4:])
	if uncompressedSize == 0 {
		return errors.New("empty block")
	}

	if cap(br.block) < int(uncompressedSize) {
		br.block = make([]byte, uncompressedSize)
	}
	br.block = br.block[:uncompressedSize]
	br.off = 0

	if compressedSize == 0 {
		// Raw block
		_, err := io.ReadFull(br.r, br.block)
		return err
	}

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(br.r, compressed); err != nil {
		return err
	}
	return br.codec.Decompress(compressed, br.block)
}
