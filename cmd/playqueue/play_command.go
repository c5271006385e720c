package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/playqueue/internal/app"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var engineID string
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "play <file>...",
		Short: "Play files in order",
		Long:  "Play files in order on the active engine. Files already in the library use their stored tags.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				return runPlay(ctx, cmd, a, args, engineID, showProgress)
			})
		},
	}

	cmd.Flags().StringVarP(&engineID, "engine", "e", "", "Engine to play on")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Show the playback position")
	return cmd
}

func runPlay(ctx context.Context, cmd *cobra.Command, a *app.Application, paths []string, engineID string, showProgress bool) error {
	tracks := make([]domain.Track, 0, len(paths))
	for _, path := range paths {
		track, err := lookupTrack(ctx, a, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		tracks = append(tracks, track)
	}

	if engineID != "" {
		if _, err := a.Playback().SwitchEngine(engineID); err != nil {
			return err
		}
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	queue := a.PlayQueue()
	var failure error
	endSub := a.Bus().Subscribe(domain.EventEngineEndOfStream, func(domain.Event) {
		if queue.CurrentIndex() == queue.Len()-1 {
			stopLoop()
		}
	})
	defer a.Bus().Unsubscribe(endSub)

	// Errors are reported by the presenter; the main loop records the first one
	errSub := a.Loop().Subscribe(domain.EventEngineError, func(event domain.Event) {
		if failure == nil {
			failure = event.(domain.EngineErrorEvent).Error
		}
		stopLoop()
	})
	defer a.Loop().Unsubscribe(errSub)

	a.Presenter().ShowPosition(showProgress)
	queue.Add(tracks...)
	if err := queue.PlayAt(0); err != nil {
		return err
	}

	a.Run(loopCtx)

	if failure != nil {
		return failure
	}
	if ctx.Err() != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Playback stopped")
	}
	return nil
}

// lookupTrack returns the library entry for path, or reads its tags.
func lookupTrack(ctx context.Context, a *app.Application, path string) (domain.Track, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.Track{}, err
	}

	track, err := a.Tracks().FindByPath(ctx, abs)
	if err == nil {
		return *track, nil
	}
	if !errors.Is(err, domain.ErrTrackNotFound) {
		return domain.Track{}, err
	}

	read, err := a.Metadata().Read(abs)
	if err != nil {
		return domain.Track{}, err
	}
	return *read, nil
}
