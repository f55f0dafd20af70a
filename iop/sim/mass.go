package sim

import (
	"io"
	"os"
	"path"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
)

// DefaultMassSize is the size of images created by CreateMassImage if no size
// is given.
const DefaultMassSize = 32 * 1024 * 1024

// CreateMassImage creates a FAT32 formatted raw disk image at name, holding
// files. Parent directories of files are created as needed.
func CreateMassImage(name string, size int64, files map[string]io.Reader) error {
	if size <= 0 {
		size = DefaultMassSize
	}
	d, err := diskfs.Create(name, size, diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		return err
	}
	defer d.File.Close()

	fsys, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   0,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: "MASS",
	})
	if err != nil {
		return err
	}

	for fname, r := range files {
		fname = path.Join("/", fname)
		if dir := path.Dir(fname); dir != "/" {
			if err := fsys.Mkdir(dir); err != nil {
				return err
			}
		}
		f, err := fsys.OpenFile(fname, os.O_CREATE|os.O_RDWR)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, r); err != nil {
			return err
		}
	}
	return nil
}

// statImage looks up p in the FAT filesystem of image. FAT is case
// insensitive, so is the lookup.
func statImage(image, p string) (int32, error) {
	d, err := diskfs.Open(image, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return 0, err
	}
	defer d.File.Close()

	fsys, err := d.GetFilesystem(0)
	if err != nil {
		return StatusIO, nil
	}

	p = path.Join("/", p)
	if p == "/" {
		if _, err := fsys.ReadDir(p); err != nil {
			return StatusIO, nil
		}
		return 0, nil
	}
	infos, err := fsys.ReadDir(path.Dir(p))
	if err != nil {
		return StatusNoEntry, nil
	}
	for _, info := range infos {
		if strings.EqualFold(info.Name(), path.Base(p)) {
			return 0, nil
		}
	}
	return StatusNoEntry, nil
}
