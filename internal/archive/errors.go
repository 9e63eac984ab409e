package archive

import (
	"fmt"

	"replicasync/internal/common"
)

// ErrorKind separates underlying I/O failures from payload format failures.
type ErrorKind int

const (
	// KindIO is a filesystem failure (open, seek, read, write, truncate, remove).
	KindIO ErrorKind = iota
	// KindDecode is a payload that could not be decoded or has malformed rows.
	KindDecode
	// KindEncode is a table that could not be serialized.
	KindEncode
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindEncode:
		return "encode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ReadError explains why an archive file couldn't be read.
type ReadError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read archive %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is lets callers match on common.ErrIO / common.ErrCorrupt.
func (e *ReadError) Is(target error) bool {
	return kindMatches(e.Kind, target)
}

// WriteError explains why an archive file couldn't be written.
type WriteError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write archive %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool {
	return kindMatches(e.Kind, target)
}

// LockError reports a failure to acquire the exclusive lock on an archive file.
// The archive never retries it.
type LockError struct {
	Path string
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock archive %s: %v", e.Path, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }

func (e *LockError) Is(target error) bool {
	return target == common.ErrLocked
}

func kindMatches(kind ErrorKind, target error) bool {
	switch kind {
	case KindIO:
		return target == common.ErrIO
	case KindDecode, KindEncode:
		return target == common.ErrCorrupt
	}
	return false
}

// versionError is absorbed by Read: a foreign or stale archive reads as empty.
type versionError struct {
	version uint32
}

func (e *versionError) Error() string {
	return fmt.Sprintf("invalid archive version %d (want %d)", e.version, ArchiveVersion)
}
