// Package state probes what a path looks like in each replica.
package state

import (
	"errors"
	"io/fs"
	"os"

	log "github.com/sirupsen/logrus"

	"replicasync/internal/archive"
	"replicasync/internal/replica"
)

// Kind is the file type recorded for one replica.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindFile
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindFile:
		return "file"
	case KindDirectory:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Entry is the archived state of a path in a single replica. Only the fields
// relevant to Kind are set, so plain struct equality is a change check.
type Entry struct {
	Kind    Kind        `msgpack:"k"`
	Size    int64       `msgpack:"s,omitempty"`
	ModTime int64       `msgpack:"m,omitempty"` // unix nanoseconds
	Mode    fs.FileMode `msgpack:"p,omitempty"`
	Target  string      `msgpack:"t,omitempty"`
}

// Empty is the state of a path that does not exist in a replica.
var Empty = Entry{}

func (e Entry) Equal(other Entry) bool {
	return e == other
}

func (e Entry) IsEmpty() bool {
	return e.Kind == KindEmpty
}

func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Lstat probes a single absolute path without following symlinks. A path
// that cannot be stat'ed is reported as Empty.
func Lstat(path string) Entry {
	info, err := os.Lstat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Debugf("lstat %s: %v", path, err)
		}
		return Empty
	}
	return fromFileInfo(path, info)
}

func fromFileInfo(path string, info fs.FileInfo) Entry {
	mode := info.Mode()
	switch {
	case mode.IsDir():
		return Entry{Kind: KindDirectory, Mode: mode.Perm()}
	case mode&fs.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			log.Debugf("readlink %s: %v", path, err)
		}
		return Entry{Kind: KindSymlink, Target: target}
	default:
		return Entry{
			Kind:    KindFile,
			Size:    info.Size(),
			ModTime: info.ModTime().UnixNano(),
			Mode:    mode.Perm(),
		}
	}
}

// FromRoots probes rel under every root and returns the aligned row.
func FromRoots(roots replica.Roots, rel string) archive.Row[Entry] {
	row := make(archive.Row[Entry], roots.Len())
	for i := range roots {
		row[i] = Lstat(roots.Join(i, rel))
	}
	return row
}
