package sqlite

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tejashwikalptaru/playqueue/internal/database"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

const trackColumns = "id, path, title, artist, album, genre, year, track_number, duration_ms, file_size, date_added"

// TrackRepository implements ports.TrackRepository on the tracks table.
//
// Thread-safe: every statement goes through the single writer.
type TrackRepository struct {
	store Store
	now   func() time.Time
}

// NewTrackRepository creates a track repository. The schema must already be migrated.
func NewTrackRepository(store Store) *TrackRepository {
	return &TrackRepository{store: store, now: time.Now}
}

// Save inserts or updates a track keyed by its path.
// New tracks get a UUID; the stored ID is written back into track.
func (r *TrackRepository) Save(ctx context.Context, track *domain.Track) error {
	if track == nil || track.Path == "" {
		return domain.NewValidationError("path", nil, "track path is required")
	}
	path := filepath.Clean(track.Path)

	id := track.ID
	if id == "" {
		id = uuid.NewString()
	}
	added := track.DateAdded
	if added.IsZero() {
		added = r.now()
	}

	v, err := r.store.QueryScalar(ctx, `INSERT INTO tracks (`+trackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			genre = excluded.genre,
			year = excluded.year,
			track_number = excluded.track_number,
			duration_ms = excluded.duration_ms,
			file_size = excluded.file_size
		RETURNING id, date_added`,
		id, path, track.Title, track.Artist, track.Album, track.Genre,
		track.Year, track.TrackNumber, track.Duration.Milliseconds(), track.FileSize, added.UnixMilli())
	if err != nil {
		return domain.NewRepositoryError("save", "tracks", "failed to upsert track", err)
	}

	track.ID = database.AsString(v)
	track.Path = path
	if track.DateAdded.IsZero() {
		track.DateAdded = time.UnixMilli(added.UnixMilli())
	}
	return nil
}

// FindByPath retrieves a track by path.
func (r *TrackRepository) FindByPath(ctx context.Context, path string) (*domain.Track, error) {
	rs, err := r.store.Query(ctx, "SELECT "+trackColumns+" FROM tracks WHERE path = ?", filepath.Clean(path))
	if err != nil {
		return nil, domain.NewRepositoryError("find", "tracks", "failed to query track", err)
	}
	if rs.Len() == 0 {
		return nil, domain.ErrTrackNotFound
	}
	track := scanTrack(rs.Rows[0])
	return &track, nil
}

// List returns every track ordered by artist, album and track number.
func (r *TrackRepository) List(ctx context.Context) ([]domain.Track, error) {
	rs, err := r.store.Query(ctx, "SELECT "+trackColumns+" FROM tracks ORDER BY artist, album, track_number, path")
	if err != nil {
		return nil, domain.NewRepositoryError("list", "tracks", "failed to query tracks", err)
	}

	tracks := make([]domain.Track, 0, rs.Len())
	for _, row := range rs.Rows {
		tracks = append(tracks, scanTrack(row))
	}
	return tracks, nil
}

// Count returns the number of tracks in the library.
func (r *TrackRepository) Count(ctx context.Context) (int, error) {
	v, err := r.store.QueryScalar(ctx, "SELECT COUNT(*) FROM tracks")
	if err != nil {
		return 0, domain.NewRepositoryError("count", "tracks", "failed to count tracks", err)
	}
	return int(database.AsInt64(v)), nil
}

// Delete removes a track by ID.
func (r *TrackRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.store.Execute(ctx, "DELETE FROM tracks WHERE id = ?", id); err != nil {
		return domain.NewRepositoryError("delete", "tracks", "failed to delete track", err)
	}
	return nil
}

func scanTrack(row []any) domain.Track {
	return domain.Track{
		ID:          database.AsString(row[0]),
		Path:        database.AsString(row[1]),
		Title:       database.AsString(row[2]),
		Artist:      database.AsString(row[3]),
		Album:       database.AsString(row[4]),
		Genre:       database.AsString(row[5]),
		Year:        int(database.AsInt64(row[6])),
		TrackNumber: int(database.AsInt64(row[7])),
		Duration:    time.Duration(database.AsInt64(row[8])) * time.Millisecond,
		FileSize:    database.AsInt64(row[9]),
		DateAdded:   time.UnixMilli(database.AsInt64(row[10])),
	}
}

// Verify interface implementation
var _ ports.TrackRepository = (*TrackRepository)(nil)
