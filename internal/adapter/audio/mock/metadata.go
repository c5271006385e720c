package mock

import (
	"path/filepath"
	"strings"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// MetadataReader derives track metadata from the file name.
// Paths listed in Fail produce an error (for testing).
type MetadataReader struct {
	Fail map[string]error
}

// Read returns a track named after the file.
func (r *MetadataReader) Read(path string) (*domain.Track, error) {
	if path == "" {
		return nil, domain.ErrInvalidFilePath
	}
	if err, ok := r.Fail[path]; ok {
		return nil, err
	}

	name := filepath.Base(path)
	title := strings.TrimSuffix(name, filepath.Ext(name))

	return &domain.Track{
		Path:     path,
		Title:    title,
		Artist:   "Mock Artist",
		Album:    "Mock Album",
		Genre:    "Mock Genre",
		Year:     2024,
		Duration: DefaultLength,
	}, nil
}

// Verify that MetadataReader implements the MetadataReader interface
var _ ports.MetadataReader = (*MetadataReader)(nil)
