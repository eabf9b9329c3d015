package relkey_test

import (
	"errors"
	"testing"

	"release-hub/pkg/relkey"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeCatalogRoundtrip(t *testing.T) {
	c := relkey.Coordinate{
		Channel:  "alpha",
		Target:   "darwin",
		Arch:     "aarch64",
		Format:   "tauri",
		Version:  "1.2.3-beta.1",
		Filename: "app.1.2.3.aarch64.app.tar.gz",
	}

	path, err := c.EncodeCatalog()
	assert.NoError(t, err)
	assert.Equal(t, "alpha/darwin/aarch64/tauri/1.2.3-beta.1/app.1.2.3.aarch64.app.tar.gz", path)

	got, err := relkey.Decode(relkey.ShapeCatalog, path)
	assert.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestEncodeDecodePlainRoundtrip(t *testing.T) {
	c := relkey.Coordinate{
		Target:   "windows",
		Arch:     "x86_64",
		Version:  "2.0.0",
		Filename: "setup.exe",
	}

	path, err := c.EncodePlain()
	assert.NoError(t, err)
	assert.Equal(t, "windows/x86_64/2.0.0/setup.exe", path)

	got, err := relkey.Decode(relkey.ShapePlain, path)
	assert.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestEncodeRejectsUnsafeSegments(t *testing.T) {
	cases := []relkey.Coordinate{
		{Channel: "alpha", Target: "..", Arch: "a", Format: "f", Version: "1.0.0", Filename: "x"},
		{Channel: "alpha", Target: "t", Arch: "", Format: "f", Version: "1.0.0", Filename: "x"},
		{Channel: "alpha", Target: "t", Arch: "a", Format: "f", Version: "1.0.0", Filename: "a/b"},
		{Channel: "al\\pha", Target: "t", Arch: "a", Format: "f", Version: "1.0.0", Filename: "x"},
		{Channel: "alpha", Target: "t", Arch: "a", Format: ".", Version: "1.0.0", Filename: "x"},
	}
	for _, c := range cases {
		_, err := c.EncodeCatalog()
		assert.Error(t, err, "coordinate %+v should be rejected", c)
	}
}

func TestDecodeWrongDepth(t *testing.T) {
	// 4 段路径按 Catalog 形态解码：深度正好是另一形态的，报 AmbiguousShape
	_, err := relkey.Decode(relkey.ShapeCatalog, "darwin/aarch64/1.0.0/app.tar.gz")
	assert.True(t, errors.Is(err, relkey.ErrAmbiguousShape))

	_, err = relkey.Decode(relkey.ShapePlain, "alpha/darwin/aarch64/tauri/1.0.0/app.tar.gz")
	assert.True(t, errors.Is(err, relkey.ErrAmbiguousShape))

	// 两种形态都对不上的深度是普通格式错误
	_, err = relkey.Decode(relkey.ShapeCatalog, "a/b/c")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, relkey.ErrAmbiguousShape))
}

func TestDecodeRejectsTraversal(t *testing.T) {
	_, err := relkey.Decode(relkey.ShapePlain, "darwin/../1.0.0/app.tar.gz")
	assert.Error(t, err)
}
