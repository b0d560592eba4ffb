package snapshot

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/vaginessa/duckstation/memarena"
)

// saveChunkSize bounds the data written between context checks.
const saveChunkSize = 1 << 20

// Save writes a snapshot of the arena's current contents to w.
//
// The arena is read through a temporary whole-arena view, so Save
// observes the same bytes as every live view. The caller is responsible
// for quiescing writers if a consistent image is required.
func Save(ctx context.Context, w io.Writer, a *memarena.Arena, optFns ...Option) error {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	codec, err := ByName(o.codec)
	if err != nil {
		return err
	}

	view, err := a.CreateView(0, a.Size(), memarena.ProtRead)
	if err != nil {
		return fmt.Errorf("snapshot: failed to map arena: %w", err)
	}
	defer view.Close()

	data := view.Bytes()
	pageSize := os.Getpagesize()

	hdr := FileHeader{
		Magic:     MagicNumber,
		Version:   Version,
		PageSize:  uint32(pageSize),
		ArenaSize: a.Size(),
	}
	hdr.setCodecName(codec.Name())
	if o.sparse {
		hdr.Flags |= FlagSparse
	}

	cw := NewChecksumWriter(w)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return err
	}

	var present *roaring.Bitmap
	if o.sparse {
		present, err = scanPages(ctx, data, pageSize)
		if err != nil {
			return err
		}
		idx, err := present.ToBytes()
		if err != nil {
			return err
		}
		if err := binary.Write(cw, binary.LittleEndian, uint32(len(idx))); err != nil {
			return err
		}
		if _, err := cw.Write(idx); err != nil {
			return err
		}
	}

	bw := newBlockWriter(cw, codec, o.blockSize)
	if o.sparse {
		err = writeSparse(ctx, bw, data, pageSize, present)
	} else {
		err = writeDense(ctx, bw, data)
	}
	if err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}

	// Footer: CRC32 over header, index and payload. Written to the
	// underlying writer so it is not part of its own checksum.
	return binary.Write(w, binary.LittleEndian, cw.Sum())
}

// scanPages returns the set of pages that contain at least one non-zero
// byte.
func scanPages(ctx context.Context, data []byte, pageSize int) (*roaring.Bitmap, error) {
	present := roaring.New()
	numPages := (len(data) + pageSize - 1) / pageSize

	for page := 0; page < numPages; page++ {
		if page%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		start := page * pageSize
		end := min(start+pageSize, len(data))
		if !isZero(data[start:end]) {
			present.Add(uint32(page))
		}
	}
	return present, nil
}

func writeDense(ctx context.Context, w io.Writer, data []byte) error {
	for off := 0; off < len(data); off += saveChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+saveChunkSize, len(data))
		if _, err := w.Write(data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func writeSparse(ctx context.Context, w io.Writer, data []byte, pageSize int, present *roaring.Bitmap) error {
	it := present.Iterator()
	for i := 0; it.HasNext(); i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		page := int(it.Next())
		start := page * pageSize
		end := min(start+pageSize, len(data))
		if _, err := w.Write(data[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// isZero reports whether b contains only zero bytes.
func isZero(b []byte) bool {
	for len(b) >= 8 {
		if binary.LittleEndian.Uint64(b) != 0 {
			return false
		}
		b = b[8:]
	}
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
