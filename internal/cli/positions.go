package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"portfolio-trader/internal/errors"
	"portfolio-trader/pkg/utils"
)

// newPositionsCmd lists and manages stored position snapshots.
func newPositionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Show stored positions",
		Long:  "List position snapshots from the last saved session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("snapshot store is not available")
				return errors.ErrSnapshotNotFound
			}

			records, err := app.Store.GetAllPositions(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}

			if len(records) == 0 {
				output.Dim("No stored positions.")
				return nil
			}

			table := NewTable(output, "SYMBOL", "SIDE", "QTY", "ENTRY", "UPDATED")
			var total int64
			for _, r := range records {
				table.AddRow(
					r.Symbol,
					r.Side.String(),
					utils.FormatQuantity(r.Quantity),
					fmt.Sprintf("%.4f", r.EntryPrice),
					r.UpdatedAt.Format("2006-01-02 15:04:05"),
				)
				total += r.Side.Polarize(r.Quantity)
			}
			table.Render()
			output.Println()
			output.Printf("Net exposure: %s\n", utils.FormatSignedQuantity(total))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [symbol]",
		Short: "Delete stored positions",
		Long:  "Delete the snapshot for one symbol, or all snapshots when none is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("snapshot store is not available")
				return errors.ErrSnapshotNotFound
			}

			if len(args) == 1 {
				if err := app.Store.DeletePosition(cmd.Context(), args[0]); err != nil {
					return err
				}
				output.Success("Deleted snapshot for %s", args[0])
				return nil
			}

			records, err := app.Store.GetAllPositions(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range records {
				if err := app.Store.DeletePosition(cmd.Context(), r.Symbol); err != nil {
					return err
				}
			}
			output.Success("Deleted %d snapshots", len(records))
			return nil
		},
	})

	return cmd
}
