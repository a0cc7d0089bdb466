package json

import (
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// File is an opened input file whose reads are decoded to UTF-8.
type File struct {
	io.Reader
	f billy.File
}

// Close closes the underlying file.
func (f *File) Close() error { return f.f.Close() }

// Open opens path on fs for parsing.
//
// A leading byte-order mark selects UTF-8 or UTF-16 decoding and is stripped;
// input without a BOM is read as UTF-8 unchanged.
func Open(fs billy.Filesystem, path string) (*File, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return &File{Reader: transform.NewReader(f, dec), f: f}, nil
}
