package irxfs

import (
	"bytes"
	"io"
	"io/fs"
	"time"
)

// file is an archive directory entry. It describes itself as both FileInfo
// and DirEntry.
type file struct {
	name   string
	size   int64
	offset int64 // absolute, on the device
	crc    uint8
}

var (
	_ fs.FileInfo = (*file)(nil)
	_ fs.DirEntry = (*file)(nil)
)

func (f *file) Name() string               { return f.name }
func (f *file) Size() int64                { return f.size }
func (f *file) Mode() fs.FileMode          { return 0444 }
func (f *file) Type() fs.FileMode          { return 0 }
func (f *file) ModTime() time.Time         { return time.Time{} }
func (f *file) IsDir() bool                { return false }
func (f *file) Sys() any                   { return nil }
func (f *file) Info() (fs.FileInfo, error) { return f, nil }
func (f *file) String() string             { return fs.FormatDirEntry(f) }

// openImage is a verified image held in memory.
type openImage struct {
	*bytes.Reader
	file *file
}

func (f *openImage) Stat() (fs.FileInfo, error) { return f.file, nil }
func (f *openImage) Close() error               { return nil }

// rootDir is "." opened for listing.
type rootDir struct {
	entries []file
	next    int
}

func (d *rootDir) Stat() (fs.FileInfo, error) { return rootInfo{}, nil }
func (d *rootDir) Close() error               { return nil }

func (d *rootDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: ".", Err: fs.ErrInvalid}
}

// ReadDir returns up to count entries, or all remaining ones if count <= 0.
func (d *rootDir) ReadDir(count int) ([]fs.DirEntry, error) {
	rest := d.entries[d.next:]
	if count > 0 {
		if len(rest) == 0 {
			return nil, io.EOF
		}
		rest = rest[:min(count, len(rest))]
	}
	list := make([]fs.DirEntry, len(rest))
	for i := range rest {
		list[i] = &rest[i]
	}
	d.next += len(rest)
	return list, nil
}

type rootInfo struct{}

func (rootInfo) Name() string       { return "." }
func (rootInfo) Size() int64        { return 0 }
func (rootInfo) Mode() fs.FileMode  { return fs.ModeDir | 0555 }
func (rootInfo) ModTime() time.Time { return time.Time{} }
func (rootInfo) IsDir() bool        { return true }
func (rootInfo) Sys() any           { return nil }
