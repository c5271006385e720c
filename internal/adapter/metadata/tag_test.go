package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

// id3v1 builds a file body ending in an ID3v1 tag.
func id3v1(title, artist, album, year string) []byte {
	field := func(s string, n int) []byte {
		b := make([]byte, n)
		copy(b, s)
		return b
	}

	body := make([]byte, 256)
	body = append(body, "TAG"...)
	body = append(body, field(title, 30)...)
	body = append(body, field(artist, 30)...)
	body = append(body, field(album, 30)...)
	body = append(body, field(year, 4)...)
	body = append(body, field("", 30)...)
	body = append(body, 255)
	return body
}

func TestTagReader_ID3v1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.mp3")
	require.NoError(t, os.WriteFile(path, id3v1("Blue in Green", "Miles Davis", "Kind of Blue", "1959"), 0o644))

	track, err := NewTagReader().Read(path)
	require.NoError(t, err)
	assert.Equal(t, "Blue in Green", track.Title)
	assert.Equal(t, "Miles Davis", track.Artist)
	assert.Equal(t, "Kind of Blue", track.Album)
	assert.Equal(t, 1959, track.Year)
	assert.EqualValues(t, 256+128, track.FileSize)
}

func TestTagReader_UntaggedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "My Song.flac")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	track, err := NewTagReader().Read(path)
	require.NoError(t, err)
	assert.Equal(t, "My Song", track.Title)
	assert.Equal(t, path, track.Path)
	assert.Empty(t, track.Artist)
}

func TestTagReader_Errors(t *testing.T) {
	r := NewTagReader()

	_, err := r.Read("")
	assert.ErrorIs(t, err, domain.ErrInvalidFilePath)

	_, err = r.Read(filepath.Join(t.TempDir(), "missing.mp3"))
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	_, err = r.Read(t.TempDir())
	assert.ErrorIs(t, err, domain.ErrInvalidFilePath)
}
