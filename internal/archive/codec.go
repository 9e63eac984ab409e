package archive

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"replicasync/internal/common"
)

// ArchiveVersion is the little-endian u32 tag at the start of every archive file.
// Any other value reads back as an empty table.
const ArchiveVersion uint32 = 3

// headerSize is the size of the version tag.
const headerSize = 4

// readEntries reads a version tag and an entry table from r. Errors are either
// *versionError or a *ReadError without a path.
func readEntries[E EntryState[E]](r io.Reader, width int) (map[HashedPath]Row[E], error) {
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, &ReadError{Kind: KindIO, Err: err}
	}
	if version != ArchiveVersion {
		return nil, &versionError{version: version}
	}

	var rows map[HashedPath]Row[E]
	if err := msgpack.NewDecoder(r).Decode(&rows); err != nil {
		return nil, &ReadError{Kind: KindDecode, Err: err}
	}
	if rows == nil {
		rows = make(map[HashedPath]Row[E])
	}
	for hashed, row := range rows {
		if len(row) != width {
			return nil, &ReadError{
				Kind: KindDecode,
				Err:  fmt.Errorf("%w: row %d has %d slots, want %d", common.ErrRowWidth, hashed, len(row), width),
			}
		}
	}
	return rows, nil
}

// writeEntries writes the version tag followed by the serialized table.
// Map keys are sorted so the same table always produces the same bytes.
func writeEntries[E EntryState[E]](w io.Writer, rows map[HashedPath]Row[E]) error {
	if err := binary.Write(w, binary.LittleEndian, ArchiveVersion); err != nil {
		return &WriteError{Kind: KindIO, Err: err}
	}
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(rows); err != nil {
		return &WriteError{Kind: KindEncode, Err: err}
	}
	return nil
}
