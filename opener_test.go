package rangeserve

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeDir(t *testing.T, files map[string][]byte) Dir {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		assert.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		assert.NoError(t, os.WriteFile(full, data, 0o644))
	}
	return Dir(dir)
}

func TestDir(t *testing.T) {
	content := makeData(1234)
	d := makeDir(t, map[string][]byte{
		"docs/manual.pdf": content,
		"blob":            content[:10],
	})
	ctx := context.Background()

	info, err := d.Stat(ctx, "/docs/manual.pdf")
	assert.NoError(t, err)
	assert.Equal(t, Info{Size: 1234, ContentType: "application/pdf"}, info)

	info, err = d.Stat(ctx, "blob")
	assert.NoError(t, err)
	assert.Equal(t, Info{Size: 10, ContentType: "application/octet-stream"}, info)

	f, err := d.Open(ctx, "video/../docs/manual.pdf")
	assert.NoError(t, err)
	got, err := io.ReadAll(f)
	assert.NoError(t, err)
	assert.Equal(t, content, got)
	assert.NoError(t, f.Close())
}

func TestDir_NotFound(t *testing.T) {
	d := makeDir(t, map[string][]byte{"docs/manual.pdf": makeData(10)})
	ctx := context.Background()

	for _, name := range []string{"missing", "docs", "/", "docs/manual.pdf\x00"} {
		_, err := d.Stat(ctx, name)
		assert.ErrorIs(t, err, ErrResourceNotFound, name)
	}
	_, err := d.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestDir_NoEscape(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(root, "secret"), []byte("x"), 0o644))
	assert.NoError(t, os.Mkdir(filepath.Join(root, "public"), 0o755))
	d := Dir(filepath.Join(root, "public"))

	_, err := d.Stat(context.Background(), "../secret")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}
