package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/playqueue/internal/app"
	"github.com/tejashwikalptaru/playqueue/internal/domain"
)

func newEnginesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engines",
		Short: "List the playback engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(_ context.Context, a *app.Application) error {
				slots := a.Engines().Slots()
				rows := make([][]string, 0, len(slots))
				for _, slot := range slots {
					rows = append(rows, []string{slot.ID, slot.Name, slotStatus(slot)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Status"}, rows, nil))
				return nil
			})
		},
	}

	cmd.AddCommand(newEnginesPreferCommand(ctx))
	return cmd
}

func newEnginesPreferCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prefer <id>",
		Short: "Remember the engine to use on the next start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				slot, err := a.Engines().Slot(args[0])
				if err != nil {
					return err
				}
				if slot.Disabled {
					return fmt.Errorf("%w: %s (%s)", domain.ErrEngineDisabled, slot.ID, slot.Reason)
				}
				if err := a.Preferences().SetEngine(ctx, slot.ID); err != nil {
					return fmt.Errorf("save preference: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Preferred engine set to %s\n", slot.ID)
				return nil
			})
		},
	}
}

func slotStatus(slot domain.EngineSlot) string {
	switch {
	case slot.Disabled:
		return "disabled: " + slot.Reason
	case slot.Active:
		return "active"
	case slot.Pending:
		return "pending"
	default:
		return "available"
	}
}
