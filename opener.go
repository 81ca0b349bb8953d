package rangeserve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const defaultContentType = "application/octet-stream"

// Info describes a resource before it is opened.
type Info struct {
	Size        uint64
	ContentType string
}

// Opener looks up and opens resources by name.
// Stat is called before the range is resolved; Open only once it is
// satisfiable. Each Open returns a fresh handle that the caller owns.
type Opener interface {
	Stat(ctx context.Context, name string) (Info, error)
	Open(ctx context.Context, name string) (io.ReadSeekCloser, error)
}

// Dir serves regular files below a directory of the local file system.
// Names are slash separated and cannot escape the directory.
type Dir string

func (d Dir) resolve(name string) (string, error) {
	if strings.ContainsRune(name, 0) || (filepath.Separator != '/' && strings.ContainsRune(name, filepath.Separator)) {
		return "", fmt.Errorf("%w: invalid name %q", ErrResourceNotFound, name)
	}
	dir := string(d)
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, filepath.FromSlash(path.Clean("/"+name))), nil
}

func (d Dir) Stat(_ context.Context, name string) (Info, error) {
	fullName, err := d.resolve(name)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(fullName)
	if err != nil {
		return Info{}, mapOpenError(name, err)
	}
	if !fi.Mode().IsRegular() {
		return Info{}, fmt.Errorf("%w: %s is not a regular file", ErrResourceNotFound, name)
	}
	ctype := mime.TypeByExtension(filepath.Ext(fullName))
	if ctype == "" {
		ctype = defaultContentType
	}
	return Info{Size: uint64(fi.Size()), ContentType: ctype}, nil
}

func (d Dir) Open(_ context.Context, name string) (io.ReadSeekCloser, error) {
	fullName, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullName)
	if err != nil {
		return nil, mapOpenError(name, err)
	}
	return f, nil
}

func mapOpenError(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %v", ErrResourceNotFound, name, err)
	}
	return &IOError{Op: "open", Err: err}
}
