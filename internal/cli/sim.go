package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"portfolio-trader/internal/models"
	"portfolio-trader/internal/portfolio"
	"portfolio-trader/internal/venue"
	"portfolio-trader/pkg/utils"
)

// newSimCmd runs a one-shot trading session against the simulated venue.
func newSimCmd(app *App) *cobra.Command {
	var (
		symbol   string
		qty      int64
		side     string
		closePos bool
	)

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Trade against the simulated venue",
		Long: `Run a single order against the in-process simulated venue.

Positions are restored from the snapshot store before the order and
saved back afterwards, so consecutive runs accumulate.`,
		Example: `  trader sim --symbol AAPL --qty 100 --side buy
  trader sim --symbol AAPL --qty 50 --side sell
  trader sim --symbol AAPL --close`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			sv := venue.NewSimVenue(venue.SimVenueConfig{
				Latency:     app.Config.Sim.Latency,
				PartialLots: app.Config.Sim.PartialLots,
				Prices:      app.Config.Sim.Prices,
				Logger:      app.Logger,
			})

			p := portfolio.New(sv, app.Logger)
			brokerID, account := app.Config.Account.BrokerID, app.Config.Account.Account
			if brokerID == "" || account == "" {
				brokerID, account = "SIM", "sim-account"
			}
			p.SetAccountInfo(brokerID, account)
			p.SetOrderTimeout(app.Config.Orders.Timeout)
			if app.Config.Orders.ExternalReports == "adopt" {
				p.SetExternalReportPolicy(portfolio.AdoptExternal)
			}
			if app.Config.Orders.CancelOnTimeout {
				p.SetOrderTimeoutPolicy(portfolio.CancelOnTimeout)
			}

			sv.OnReport(p.RouteExecutionReport)
			sv.OnCancelReject(p.RouteCancelReject)

			if app.Store != nil {
				if err := p.RestoreSnapshot(cmd.Context(), app.Store, sv); err != nil {
					output.Warning("Failed to restore positions: %v", err)
				}
			}

			t := p.CreateTrade(symbol)

			var err error
			switch {
			case closePos:
				err = t.CloseMarket(true)
			default:
				var s models.Side
				s, err = parseSide(side)
				if err != nil {
					return err
				}
				err = t.MarketOrder(qty, s, true)
			}
			if err != nil {
				return err
			}

			pos := t.Position()
			if output.IsJSON() {
				output.JSON(pos)
			} else {
				output.Bold("Position")
				output.Printf("  Symbol:   %s\n", pos.Symbol)
				output.Printf("  Side:     %s\n", pos.Side)
				output.Printf("  Quantity: %s\n", utils.FormatQuantity(pos.Quantity))
				output.Printf("  Entry:    %.4f\n", pos.EntryPrice)
				output.Printf("  Avg Px:   %.4f\n", pos.AveragePrice)
			}

			if app.Store != nil {
				if err := p.SaveSnapshot(cmd.Context(), app.Store); err != nil {
					output.Warning("Failed to save positions: %v", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "instrument symbol")
	cmd.Flags().Int64Var(&qty, "qty", 0, "order quantity")
	cmd.Flags().StringVar(&side, "side", "buy", "order side (buy|sell)")
	cmd.Flags().BoolVar(&closePos, "close", false, "flatten the position instead of sending an order")
	cmd.MarkFlagRequired("symbol")

	return cmd
}

func parseSide(s string) (models.Side, error) {
	switch strings.ToLower(s) {
	case "buy", "long":
		return models.SideBuy, nil
	case "sell", "short":
		return models.SideSell, nil
	}
	return models.SideNone, fmt.Errorf("invalid side %q, want buy or sell", s)
}
