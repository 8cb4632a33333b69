package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.png", "c.jpeg", "notes.txt", "d.gif", "e.Jpeg"} {
		touch(t, filepath.Join(dir, name))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0755))

	images, err := ListImages(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.JPG"),
		filepath.Join(dir, "c.jpeg"),
		filepath.Join(dir, "e.Jpeg"),
	}, images)
}

func TestListImagesEmptyAndMissing(t *testing.T) {
	images, err := ListImages(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, images)

	_, err = ListImages(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDescriptorPath(t *testing.T) {
	dir := t.TempDir()
	descriptor := filepath.Join(dir, "custom.yaml")
	touch(t, descriptor)

	assert.Equal(t, filepath.Join(dir, "data.yaml"), DescriptorPath(dir, "data.yaml"))
	assert.Equal(t, descriptor, DescriptorPath(descriptor, "data.yaml"))
	assert.Equal(t, "", DescriptorPath("", "data.yaml"))
}

func TestImageDir(t *testing.T) {
	root := t.TempDir()
	descriptor := filepath.Join(root, "data.yaml")
	touch(t, descriptor)

	t.Run("directory without subpath folder", func(t *testing.T) {
		assert.Equal(t, root, ImageDir(root, "images/val"))
	})

	touch(t, filepath.Join(root, "images", "val", "a.jpg"))

	t.Run("directory with subpath folder", func(t *testing.T) {
		assert.Equal(t, filepath.Join(root, "images", "val"), ImageDir(root, "images/val"))
	})

	t.Run("descriptor file uses its parent", func(t *testing.T) {
		assert.Equal(t, filepath.Join(root, "images", "val"), ImageDir(descriptor, "images/val"))
	})

	t.Run("empty subpath", func(t *testing.T) {
		assert.Equal(t, root, ImageDir(root, ""))
	})
}
