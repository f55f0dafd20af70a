// Package irxfs stores IOP module images in a single flat archive.
//
// The platform SDK ships each module as a separate IRX file. Linking all of
// them into the program as individual symbols doesn't scale with variants, so
// the `iopboot pack` command bundles them into one archive, which is embedded
// or put next to the program. Images are looked up by name and verified
// against a CRC-8 stored in the directory before they are handed out.
package irxfs

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/fs"
	"math"
	"slices"
	"strings"

	"github.com/joomcode/errorx"
	"github.com/sigurn/crc8"

	"github.com/clktmr/ps2/iop/irx"
)

const magic = "IRXA"

const Align = 8
const alignMask = Align - 1

var (
	ErrNamespace = errorx.NewNamespace("irxfs")
	CorruptImage = ErrNamespace.NewType("corrupt_image")
	InvalidImage = ErrNamespace.NewType("invalid_archive")

	NameProperty = errorx.RegisterPrintableProperty("name")
)

var entryCRC8 = crc8.MakeTable(crc8.CRC8)

type FS struct {
	dev   io.ReaderAt
	files []file
}

var _ fs.FS = (*FS)(nil)

// dirEntry specifies the binary representation of an archive entry.
type dirEntry struct {
	Start, End int64 // name, as offsets into the names blob
	Size       int64
	Offset     int64
	CRC        uint8
	_          [7]byte
}

const entrySize = int64(4*8 + 8)

// Read opens an archive from image or block device.
//
// The directory is validated against the size of dev if it can be determined,
// i.e. dev has a Size method or is a regular file. Otherwise lengths are only
// trusted as far as data can actually be read.
func Read(dev io.ReaderAt) (f *FS, err error) {
	size, ok := deviceSize(dev)
	if !ok {
		size = math.MaxInt64
	}
	r := io.NewSectionReader(dev, 0, size)
	read := func(data any) {
		if err != nil {
			return
		}
		err = binary.Read(r, binary.BigEndian, data)
	}
	left := func() int64 {
		pos, _ := r.Seek(0, io.SeekCurrent)
		return size - pos
	}

	var hdr [len(magic)]byte
	read(hdr[:])
	if err == nil && string(hdr[:]) != magic {
		return nil, InvalidImage.New("invalid magic %q", hdr[:])
	}

	var lenEntries int64
	read(&lenEntries)
	if err == nil && (lenEntries < 0 || lenEntries > left()/entrySize) {
		return nil, InvalidImage.New("invalid entry count %d", lenEntries)
	}
	var entries []dirEntry
	for i := int64(0); err == nil && i < lenEntries; i++ {
		var e dirEntry
		read(&e)
		entries = append(entries, e)
	}

	var lenNames int64
	read(&lenNames)
	if err == nil && (lenNames < 0 || lenNames > left()) {
		return nil, InvalidImage.New("invalid names length %d", lenNames)
	}
	var names []byte
	if err == nil {
		names, err = io.ReadAll(io.LimitReader(r, lenNames))
		if err == nil && int64(len(names)) != lenNames {
			err = io.ErrUnexpectedEOF
		}
	}
	if err != nil {
		return nil, InvalidImage.Wrap(unexpectedEOF(err), "reading directory")
	}

	base := (size - left() + alignMask) &^ alignMask
	files := make([]file, len(entries))
	for idx, e := range entries {
		if e.Start < 0 || e.End < e.Start || e.End > lenNames {
			return nil, InvalidImage.New("entry %d: name out of range", idx)
		}
		if e.Offset < 0 || e.Size < 0 || e.Offset > size-base || e.Size > size-base-e.Offset {
			return nil, InvalidImage.New("entry %d: data out of range", idx)
		}
		name := string(names[e.Start:e.End])
		if idx > 0 && files[idx-1].name >= name {
			return nil, InvalidImage.New("entry %d: %q not sorted", idx, name)
		}
		files[idx] = file{name: name, size: e.Size, offset: e.Offset + base, crc: e.CRC}
	}

	return &FS{dev: dev, files: files}, nil
}

// deviceSize returns the size of dev, if it is known.
func deviceSize(dev io.ReaderAt) (int64, bool) {
	switch d := dev.(type) {
	case interface{ Size() int64 }:
		return d.Size(), true
	case interface{ Stat() (fs.FileInfo, error) }:
		info, err := d.Stat()
		if err == nil && info.Mode().IsRegular() {
			return info.Size(), true
		}
	}
	return 0, false
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Create writes an archive holding images to dev. Image names must be unique
// and valid fs paths without directories.
func Create(dev io.WriterAt, images ...*irx.Image) error {
	images = slices.Clone(images)
	slices.SortFunc(images, func(a, b *irx.Image) int { return strings.Compare(a.Name, b.Name) })

	var offset int64
	names := make([]byte, 0)
	entries := make([]dirEntry, 0, len(images))
	for i, img := range images {
		if !fs.ValidPath(img.Name) || strings.Contains(img.Name, "/") || img.Name == "." {
			return InvalidImage.New("invalid image name %q", img.Name)
		}
		if i > 0 && images[i-1].Name == img.Name {
			return InvalidImage.New("duplicate image %q", img.Name)
		}
		names = append(names, img.Name...)
		entries = append(entries, dirEntry{
			Start:  int64(len(names) - len(img.Name)),
			End:    int64(len(names)),
			Size:   int64(len(img.Data)),
			Offset: offset,
			CRC:    img.Checksum(),
		})
		offset += int64(len(img.Data))
		offset = (offset + alignMask) &^ alignMask
	}

	w := io.NewOffsetWriter(dev, 0)
	var err error
	write := func(data any) {
		if err != nil {
			return
		}
		err = binary.Write(w, binary.BigEndian, data)
	}
	write([]byte(magic))
	write(int64(len(entries)))
	write(entries)
	write(int64(len(names)))
	write(names)
	if err != nil {
		return err
	}
	written, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	written = (written + alignMask) &^ alignMask

	for i, img := range images {
		if _, err := dev.WriteAt(img.Data, entries[i].Offset+written); err != nil {
			return err
		}
	}
	return nil
}

// Open opens the named image for reading and returns it as an [fs.File].
// The image is read completely and its checksum verified before it is
// returned. The only directory is the root ".".
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return &rootDir{entries: f.files}, nil
	}
	file := f.lookup(name)
	if file == nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	data, err := f.read(file)
	if err != nil {
		return nil, err
	}
	return &openImage{bytes.NewReader(data), file}, nil
}

// Image reads the named image and verifies its checksum.
func (f *FS) Image(name string) (*irx.Image, error) {
	file := f.lookup(name)
	if file == nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	data, err := f.read(file)
	if err != nil {
		return nil, err
	}
	return irx.NewImage(name, data), nil
}

func (f *FS) read(file *file) ([]byte, error) {
	data, err := io.ReadAll(io.NewSectionReader(f.dev, file.offset, file.size))
	if err == nil && int64(len(data)) != file.size {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, CorruptImage.Wrap(err, "reading %s", file.name).
			WithProperty(NameProperty, file.name)
	}
	if crc8.Checksum(data, entryCRC8) != file.crc {
		return nil, CorruptImage.New("checksum mismatch for %s", file.name).
			WithProperty(NameProperty, file.name)
	}
	return data, nil
}

// lookup returns the named file, or nil if it is not present.
func (f *FS) lookup(name string) *file {
	i, found := slices.BinarySearchFunc(f.files, name, func(e file, s string) int {
		return strings.Compare(e.name, s)
	})
	if found {
		return &f.files[i]
	}
	return nil
}

// Bytes is a convenience to create an archive in memory.
func Bytes(images ...*irx.Image) ([]byte, error) {
	var buf writerAt
	if err := Create(&buf, images...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type writerAt struct{ bytes.Buffer }

func (w *writerAt) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > w.Len() {
		w.Write(make([]byte, end-w.Len()))
	}
	return copy(w.Bytes()[off:], p), nil
}
