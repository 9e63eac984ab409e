package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
)

// File abstracts over operations on a single archive file. Each file
// represents an entire (non-recursive) directory in the replicas.
//
// A File is Closed until the first Read or Write that touches disk; from then
// on it holds an exclusive lock and a read/write handle until Close. Callers
// should always defer Close.
type File struct {
	path string
	fh   *os.File
	lock *flock.Flock
}

func newFile(path string) *File {
	return &File{path: path}
}

// Path returns the on-disk location of the archive file.
func (f *File) Path() string {
	return f.path
}

// IsOpen reports whether the handle and lock are currently held.
func (f *File) IsOpen() bool {
	return f.fh != nil
}

func (f *File) String() string {
	return fmt.Sprintf("Archive(%s)", filepath.Base(f.path))
}

// Read loads the directory's entries. A missing archive file yields an empty
// table without touching disk. Otherwise the file is opened and locked
// (blocking until the lock is available) and parsed from the start.
//
// A version tag other than ArchiveVersion is logged and read as an empty
// table; the file is left as is. I/O and payload failures are returned as
// *ReadError, lock failures as *LockError.
func Read[E EntryState[E]](f *File, width int) (*Entries[E], error) {
	if f.fh == nil {
		exists, err := f.exists()
		if err != nil {
			return nil, &ReadError{Kind: KindIO, Path: f.path, Err: err}
		}
		if !exists {
			return NewEntries[E](width), nil
		}
		if err := f.open(false); err != nil {
			if errors.Is(err, errVanished) {
				return NewEntries[E](width), nil
			}
			var lockErr *LockError
			if errors.As(err, &lockErr) {
				return nil, lockErr
			}
			return nil, &ReadError{Kind: KindIO, Path: f.path, Err: err}
		}
	}

	rows, err := readFromFile[E](f.fh, f.path, width)
	if err != nil {
		return nil, err
	}
	return newEntriesFrom(width, rows), nil
}

// Write prunes all-empty rows from entries and persists the rest. An empty
// result removes the archive file instead of writing an empty payload.
func Write[E EntryState[E]](f *File, entries *Entries[E]) error {
	// prevents the archive sizes exploding
	entries.PruneDeleted()

	if entries.Len() == 0 {
		if err := f.RemoveAll(); err != nil {
			var lockErr *LockError
			if errors.As(err, &lockErr) {
				return lockErr
			}
			return &WriteError{Kind: KindIO, Path: f.path, Err: err}
		}
		return nil
	}

	if f.fh == nil {
		if err := f.open(true); err != nil {
			var lockErr *LockError
			if errors.As(err, &lockErr) {
				return lockErr
			}
			return &WriteError{Kind: KindIO, Path: f.path, Err: err}
		}
	}
	return writeToFile(f.fh, f.path, entries.entries)
}

// RemoveAll deletes the archive file, dropping the cached handle and lock.
// A File that is not open takes the lock first, so the removal is ordered
// after any current holder. It is a no-op when the file does not exist.
func (f *File) RemoveAll() error {
	if f.fh == nil {
		exists, err := f.exists()
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if err := f.open(false); err != nil {
			if errors.Is(err, errVanished) {
				return nil
			}
			return err
		}
	}
	log.Debugf("Removing %s (because entries are empty)", f)

	// remove while still locked so that waiters observe the removal
	removeErr := os.Remove(f.path)
	if err := f.release(); err != nil {
		log.Warnf("Failed to release %s: %v", f, err)
	}
	if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
		// some platforms refuse to remove a file that is still open
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Close releases the handle and the lock. It is safe to call more than once
// and on a File that was never opened.
func (f *File) Close() error {
	return f.release()
}

func (f *File) release() error {
	var errs []error
	if f.fh != nil {
		errs = append(errs, f.fh.Close())
		f.fh = nil
	}
	if f.lock != nil {
		log.Tracef("Unlocking archive file %s", f.path)
		errs = append(errs, f.lock.Unlock())
		f.lock = nil
		log.Trace("Unlocked")
	}
	return errors.Join(errs...)
}

func (f *File) exists() (bool, error) {
	_, err := os.Stat(f.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// errVanished is returned by open(false) when the file no longer exists.
var errVanished = errors.New("archive file vanished")

// open caches a read/write handle and takes the exclusive lock on it. With
// create unset, a file that is gone (possibly removed by the previous lock
// holder) yields errVanished. Lock failures are returned as *LockError.
func (f *File) open(create bool) error {
	flag := os.O_RDWR
	if create {
		flag |= os.O_CREATE
	}
	for {
		fh, err := os.OpenFile(f.path, flag, 0o600)
		if err != nil {
			if !create && errors.Is(err, fs.ErrNotExist) {
				return errVanished
			}
			return err
		}

		// the lock must never create the file itself
		lock := flock.New(f.path, flock.SetFlag(os.O_RDWR))
		log.Tracef("Acquiring exclusive lock for %s", f)
		if err := lock.Lock(); err != nil {
			fh.Close()
			if errors.Is(err, fs.ErrNotExist) {
				log.Debugf("%s removed before its lock was taken, reopening", f)
				continue
			}
			return &LockError{Path: f.path, Err: err}
		}
		log.Trace("Acquired lock")

		same, err := sameFile(fh, f.path)
		if err != nil {
			lock.Unlock()
			fh.Close()
			return err
		}
		if same {
			f.fh = fh
			f.lock = lock
			return nil
		}

		// the previous holder removed or replaced the file while we waited
		log.Debugf("%s changed while waiting for its lock, reopening", f)
		lock.Unlock()
		fh.Close()
	}
}

func sameFile(fh *os.File, path string) (bool, error) {
	held, err := fh.Stat()
	if err != nil {
		return false, err
	}
	current, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(held, current), nil
}

func readFromFile[E EntryState[E]](fh *os.File, path string, width int) (map[HashedPath]Row[E], error) {
	log.Debugf("Reading archive file %s", path)
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return nil, &ReadError{Kind: KindIO, Path: path, Err: err}
	}

	info, err := fh.Stat()
	if err != nil {
		return nil, &ReadError{Kind: KindIO, Path: path, Err: err}
	}
	if info.Size() == 0 {
		// created by a writer that has not taken the lock yet
		return make(map[HashedPath]Row[E]), nil
	}

	rows, err := readEntries[E](bufio.NewReader(fh), width)
	if err != nil {
		var verr *versionError
		if errors.As(err, &verr) {
			log.Errorf("Invalid archive version %d for file %s", verr.version, path)
			return make(map[HashedPath]Row[E]), nil
		}
		var rerr *ReadError
		if errors.As(err, &rerr) {
			rerr.Path = path
			return nil, rerr
		}
		return nil, &ReadError{Kind: KindIO, Path: path, Err: err}
	}
	return rows, nil
}

func writeToFile[E EntryState[E]](fh *os.File, path string, rows map[HashedPath]Row[E]) error {
	log.Infof("Writing %d entries to archive file %s", len(rows), path)
	if err := fh.Truncate(0); err != nil {
		return &WriteError{Kind: KindIO, Path: path, Err: err}
	}
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return &WriteError{Kind: KindIO, Path: path, Err: err}
	}

	w := bufio.NewWriter(fh)
	if err := writeEntries(w, rows); err != nil {
		var werr *WriteError
		if errors.As(err, &werr) {
			werr.Path = path
			return werr
		}
		return &WriteError{Kind: KindIO, Path: path, Err: err}
	}
	if err := w.Flush(); err != nil {
		return &WriteError{Kind: KindIO, Path: path, Err: err}
	}
	if err := fh.Sync(); err != nil {
		return &WriteError{Kind: KindIO, Path: path, Err: err}
	}
	return nil
}
