package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/playqueue/internal/app"
)

func newTracksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tracks",
		Short: "List the tracks in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				tracks, err := a.Tracks().List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(tracks) == 0 {
					fmt.Fprintln(out, "The library is empty")
					return nil
				}

				rows := make([][]string, 0, len(tracks))
				for _, t := range tracks {
					number := ""
					if t.TrackNumber > 0 {
						number = strconv.Itoa(t.TrackNumber)
					}
					rows = append(rows, []string{t.Artist, t.Album, number, t.Title, formatLength(t.Duration), t.Path})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Artist", "Album", "#", "Title", "Length", "Path"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				))
				fmt.Fprintf(out, "%d tracks\n", len(tracks))
				return nil
			})
		},
	}
}

func formatLength(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
