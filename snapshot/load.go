package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/vaginessa/duckstation/memarena"
)

// Load restores a snapshot from r into the arena, overwriting its
// entire contents. The arena must have the same size the snapshot was
// taken with.
//
// The write goes through a temporary whole-arena view, so the restored
// bytes are immediately visible in every other view of the arena.
func Load(ctx context.Context, r io.Reader, a *memarena.Arena) error {
	cr := NewChecksumReader(r)

	var hdr FileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("snapshot: failed to read header: %w", err)
	}
	if hdr.Magic != MagicNumber {
		return ErrInvalidMagic
	}
	if hdr.Version != Version {
		return ErrInvalidVersion
	}
	if hdr.ArenaSize != a.Size() {
		return ErrSizeMismatch
	}

	codec, err := ByName(hdr.codecName())
	if err != nil {
		return err
	}

	sparse := hdr.Flags&FlagSparse != 0
	pageSize := os.Getpagesize()
	if sparse && int(hdr.PageSize) != pageSize {
		// Sparse page numbering only lines up when both sides agree
		// on the page size.
		return ErrPageSizeMismatch
	}

	var present *roaring.Bitmap
	if sparse {
		var idxLen uint32
		if err := binary.Read(cr, binary.LittleEndian, &idxLen); err != nil {
			return fmt.Errorf("snapshot: failed to read page index: %w", err)
		}
		idx := make([]byte, idxLen)
		if _, err := io.ReadFull(cr, idx); err != nil {
			return fmt.Errorf("snapshot: failed to read page index: %w", err)
		}
		present = roaring.New()
		if _, err := present.ReadFrom(bytes.NewReader(idx)); err != nil {
			return fmt.Errorf("snapshot: invalid page index: %w", err)
		}
	}

	view, err := a.CreateView(0, a.Size(), memarena.ProtRead|memarena.ProtWrite)
	if err != nil {
		return fmt.Errorf("snapshot: failed to map arena: %w", err)
	}
	defer view.Close()

	data := view.Bytes()
	br := newBlockReader(cr, codec)

	if sparse {
		err = readSparse(ctx, br, data, pageSize, present)
	} else {
		err = readDense(ctx, br, data)
	}
	if err != nil {
		return err
	}

	// Footer is read from the underlying reader; it is not part of the
	// checksummed range.
	var expected uint32
	if err := binary.Read(r, binary.LittleEndian, &expected); err != nil {
		return fmt.Errorf("snapshot: failed to read checksum: %w", err)
	}
	return cr.Verify(expected)
}

func readDense(ctx context.Context, r io.Reader, data []byte) error {
	for off := 0; off < len(data); off += saveChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+saveChunkSize, len(data))
		if _, err := io.ReadFull(r, data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func readSparse(ctx context.Context, r io.Reader, data []byte, pageSize int, present *roaring.Bitmap) error {
	// Absent pages restore to zero
	clear(data)

	it := present.Iterator()
	for i := 0; it.HasNext(); i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		page := int(it.Next())
		start := page * pageSize
		if start >= len(data) {
			return fmt.Errorf("snapshot: page index out of range: %d", page)
		}
		end := min(start+pageSize, len(data))
		if _, err := io.ReadFull(r, data[start:end]); err != nil {
			return err
		}
	}
	return nil
}
