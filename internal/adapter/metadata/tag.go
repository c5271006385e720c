// Package metadata reads track descriptors from media file tags.
package metadata

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// TagReader implements ports.MetadataReader with github.com/dhowden/tag.
// Files without readable tags still produce a track named after the file.
type TagReader struct{}

// NewTagReader creates a tag reader.
func NewTagReader() *TagReader {
	return &TagReader{}
}

// Read extracts the track descriptor of the file at path.
func (r *TagReader) Read(path string) (*domain.Track, error) {
	if path == "" {
		return nil, domain.ErrInvalidFilePath
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, domain.ErrInvalidFilePath
	}

	name := filepath.Base(path)
	track := &domain.Track{
		Path:     path,
		Title:    strings.TrimSuffix(name, filepath.Ext(name)),
		FileSize: info.Size(),
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil || m == nil {
		// Untagged files keep the basic descriptor
		return track, nil
	}

	if title := strings.TrimSpace(m.Title()); title != "" {
		track.Title = title
	}
	track.Artist = strings.TrimSpace(m.Artist())
	track.Album = strings.TrimSpace(m.Album())
	track.Genre = strings.TrimSpace(m.Genre())
	if year := m.Year(); year > 0 {
		track.Year = year
	}
	track.TrackNumber, _ = m.Track()

	return track, nil
}

// Verify interface implementation
var _ ports.MetadataReader = (*TagReader)(nil)
