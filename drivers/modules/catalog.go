package modules

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/clktmr/ps2/iop/irx"
)

// Catalog resolves module names to images.
type Catalog struct {
	fsys fs.FS
}

// NewCatalog looks up images in fsys, a directory or an irxfs archive. A
// module is read from "<name>.irx", falling back to "<name>".
func NewCatalog(fsys fs.FS) *Catalog {
	return &Catalog{fsys: fsys}
}

func (c *Catalog) Image(name string) (*irx.Image, error) {
	data, err := fs.ReadFile(c.fsys, name+".irx")
	if errors.Is(err, fs.ErrNotExist) {
		data, err = fs.ReadFile(c.fsys, name)
	}
	if err != nil {
		return nil, err
	}
	return irx.NewImage(name, data), nil
}

// Names lists the modules available at the root of the catalog.
func (c *Catalog) Names() ([]string, error) {
	entries, err := fs.ReadDir(c.fsys, ".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".irx"))
	}
	return names, nil
}

// Missing returns all modules of batches which can't be resolved.
func (c *Catalog) Missing(batches ...Batch) (missing []string) {
	for _, b := range batches {
		for _, name := range b {
			if _, err := c.Image(name); err != nil {
				missing = append(missing, name)
			}
		}
	}
	return
}
