package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/playqueue/internal/app"
	"github.com/tejashwikalptaru/playqueue/internal/operation"
	"github.com/tejashwikalptaru/playqueue/internal/service"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>...",
		Short: "Import media files or folders into the library",
		Long:  "Import media files or folders into the library. Interrupting the command cancels the import after the file in flight.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				return runImport(ctx, cmd, a, args)
			})
		},
	}
}

func runImport(ctx context.Context, cmd *cobra.Command, a *app.Application, paths []string) error {
	out := cmd.OutOrStdout()

	queued := 0
	for _, path := range paths {
		n, err := a.Import().QueuePath(ctx, path)
		if err != nil {
			return fmt.Errorf("queue %s: %w", path, err)
		}
		queued += n
	}
	if queued == 0 {
		fmt.Fprintln(out, "Nothing to import")
		return nil
	}

	// The import drains on its own goroutine while this one runs the main loop
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	result := make(chan error, 1)
	go func() {
		result <- a.Import().Drain(context.Background())
		stopLoop()
	}()
	go func() {
		select {
		case <-ctx.Done():
			a.Presenter().RequestCancel(service.ImportOperation)
		case <-loopCtx.Done():
		}
	}()

	a.Run(loopCtx)

	err := <-result
	if operation.IsCanceled(err) {
		fmt.Fprintf(out, "Import canceled, %d tracks imported\n", a.Import().Imported())
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d tracks\n", a.Import().Imported())
	return nil
}
