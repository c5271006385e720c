package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/tejashwikalptaru/playqueue/internal/domain"
	"github.com/tejashwikalptaru/playqueue/internal/operation"
	"github.com/tejashwikalptaru/playqueue/internal/ports"
)

// ImportOperation is the name of the import operation in events.
const ImportOperation = "import"

// ImportItem is a media file waiting to be imported.
type ImportItem struct {
	Path string
}

// Key identifies the item by its cleaned path.
func (i ImportItem) Key() string {
	return filepath.Clean(i.Path)
}

// supportedExts lists the extensions picked up when walking directories.
var supportedExts = []string{
	// Common formats
	".mp3", ".mp2", ".mp1",
	".ogg", ".oga",
	".wav", ".aif", ".aiff",
	".flac", ".fla",
	".aac", ".m4a", ".m4b", ".mp4",
	".wma",
	".wv",          // WavPack
	".ape", ".mac", // APE
	".mpc", ".mp+", ".mpp", // Musepack
	".ofr", ".ofs", // OptimFROG
	".tta",
	".ac3",
	// MOD/Tracker formats
	".mod", ".xm", ".it", ".s3m", ".mtm", ".umx", ".mo3",
}

// ImportService imports media files into the library. Files are queued on a
// cancelable operation; its worker reads the tags of each file and stores the
// track through the repository, one file at a time.
type ImportService struct {
	logger *slog.Logger
	reader ports.MetadataReader
	tracks ports.TrackRepository
	bus    ports.EventBus

	op       *operation.Operation[ImportItem]
	imported atomic.Int64
}

// NewImportService creates an import service. progress supplies the labels and
// debounce of the progress events; zero values use the defaults.
func NewImportService(
	logger *slog.Logger,
	reader ports.MetadataReader,
	tracks ports.TrackRepository,
	bus ports.EventBus,
	progress operation.ProgressConfig,
) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	if progress.ActionMessage == "" {
		progress.ActionMessage = "Importing media"
	}
	if progress.CancelMessage == "" {
		progress.CancelMessage = "Import canceled"
	}

	s := &ImportService{
		logger: logger.With(slog.String("component", "import")),
		reader: reader,
		tracks: tracks,
		bus:    bus,
	}
	s.op = operation.New(operation.Config[ImportItem]{
		Name:     ImportOperation,
		Progress: progress,
		Describe: func(item ImportItem) string { return filepath.Base(item.Path) },
	}, s.importFile, bus, logger)
	return s
}

// importFile is the per item handler run on the worker goroutine.
func (s *ImportService) importFile(ctx context.Context, item ImportItem) error {
	track, err := s.reader.Read(item.Path)
	if err != nil {
		return err
	}

	// Reading tags can be slow; skip the write if the round was canceled meanwhile
	if err := s.op.CheckForCanceled(); err != nil {
		return err
	}

	if err := s.tracks.Save(ctx, track); err != nil {
		return err
	}

	s.imported.Add(1)
	s.logger.Debug("track imported", slog.String("path", track.Path), slog.String("id", track.ID))
	if s.bus != nil {
		s.bus.Publish(domain.NewTrackImportedEvent(*track))
	}
	return nil
}

// QueuePath queues a file, or every supported file below a directory.
// Returns how many files were queued; files already queued are not counted.
// Relative paths are made absolute before they are stored.
func (s *ImportService) QueuePath(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, domain.ErrInvalidFilePath
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, domain.ErrFileNotFound
	}
	if err != nil {
		return 0, err
	}

	if !info.IsDir() {
		if !IsFormatSupported(path) {
			return 0, domain.ErrUnsupportedFormat
		}
		return s.QueueFiles(path), nil
	}

	files, err := collectAudioFiles(ctx, path)
	if err != nil {
		return 0, err
	}
	n := s.QueueFiles(files...)
	s.logger.Info("directory queued", slog.String("path", path), slog.Int("files", n))
	return n, nil
}

// QueueFiles queues files without checking them. Returns how many were accepted.
func (s *ImportService) QueueFiles(paths ...string) int {
	items := make([]ImportItem, 0, len(paths))
	for _, p := range paths {
		items = append(items, ImportItem{Path: p})
	}
	return s.op.EnqueueAll(items...)
}

// Start spawns the import worker.
func (s *ImportService) Start(ctx context.Context) {
	s.op.Start(ctx)
}

// Drain imports every queued file on the calling goroutine.
// Returns domain.ErrCanceled (wrapped) if the import was canceled.
func (s *ImportService) Drain(ctx context.Context) error {
	return s.op.Drain(ctx)
}

// Cancel cancels the running import. The file in flight finishes first.
func (s *ImportService) Cancel() bool {
	return s.op.Cancel()
}

// IsImporting reports whether files are being imported.
func (s *ImportService) IsImporting() bool {
	return s.op.IsRunning()
}

// Pending returns the number of files waiting to be imported.
func (s *ImportService) Pending() int {
	return s.op.Pending()
}

// Progress returns the counters of the current import round.
func (s *ImportService) Progress() domain.OperationProgress {
	return s.op.Progress()
}

// Imported returns how many tracks were stored since the service was created.
func (s *ImportService) Imported() int {
	return int(s.imported.Load())
}

// Shutdown stops the worker. The file in flight finishes first.
func (s *ImportService) Shutdown() error {
	s.op.Stop()
	return nil
}

// IsFormatSupported checks if a file extension is supported.
func IsFormatSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range supportedExts {
		if ext == supported {
			return true
		}
	}
	return false
}

// SupportedFormats returns the list of supported file extensions.
func SupportedFormats() []string {
	formats := make([]string, len(supportedExts))
	copy(formats, supportedExts)
	return formats
}

// collectAudioFiles recursively collects the supported files below root, in lexical order.
func collectAudioFiles(ctx context.Context, root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Skip files and folders we can't access
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsFormatSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Verify that ImportService implements the expected interface patterns
var _ interface {
	QueuePath(context.Context, string) (int, error)
	QueueFiles(...string) int
	Start(context.Context)
	Drain(context.Context) error
	Cancel() bool
	IsImporting() bool
	Pending() int
	Progress() domain.OperationProgress
	Shutdown() error
} = (*ImportService)(nil)
