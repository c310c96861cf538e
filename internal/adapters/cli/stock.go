package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"inventory-ledger/internal/app"
)

func (c *commands) stockCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "stock", Short: "Inspect and correct stock"}

	var product, location string
	var asJSON bool
	snapshot := &cobra.Command{
		Use:     "snapshot",
		Aliases: []string{"ls"},
		Short:   "Show stock rows",
		Args:    cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			p, err := parseOptionalID("product id", product)
			if err != nil {
				return err
			}
			l, err := parseOptionalID("location id", location)
			if err != nil {
				return err
			}
			res, err := svc.GetStock(cmd.Context(), p, l)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printStock(cmd.OutOrStdout(), res)
			return nil
		}),
	}
	snapshot.Flags().StringVar(&product, "product", "", "product id")
	snapshot.Flags().StringVar(&location, "location", "", "location id")
	snapshot.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	var hist app.MoveHistoryRequest
	var histProduct, histLocation string
	history := &cobra.Command{
		Use:   "history",
		Short: "Page through the movement log of a product",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			p, err := parseID("product id", histProduct)
			if err != nil {
				return err
			}
			if hist.LocationID, err = parseOptionalID("location id", histLocation); err != nil {
				return err
			}
			hist.ProductID = p
			res, err := svc.GetMoveHistory(cmd.Context(), hist)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
	history.Flags().StringVar(&histProduct, "product", "", "product id (required)")
	history.Flags().StringVar(&histLocation, "location", "", "location id")
	history.Flags().Int64Var(&hist.AfterSeq, "after", 0, "return moves after this sequence number")
	history.Flags().IntVar(&hist.Limit, "limit", 0, "page size (default 100, max 1000)")
	_ = history.MarkFlagRequired("product")

	cmd.AddCommand(snapshot, history, c.adjustCmd(), c.transferCmd(), c.recountCmd(), c.reconcileCmd())
	return cmd
}

func (c *commands) adjustCmd() *cobra.Command {
	var product, location, delta, cost string
	var req app.AdjustRequest
	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Record a manual correction (signed delta)",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			var err error
			if req.ProductID, err = parseID("product id", product); err != nil {
				return err
			}
			if req.LocationID, err = parseID("location id", location); err != nil {
				return err
			}
			if req.Delta, err = parseDecimal("delta", delta); err != nil {
				return err
			}
			if cost != "" {
				if req.UnitCost, err = parseDecimal("unit cost", cost); err != nil {
					return err
				}
			}
			move, err := svc.Adjust(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), move)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&product, "product", "", "product id (required)")
	f.StringVar(&location, "location", "", "location id (required)")
	f.StringVar(&delta, "delta", "", "signed quantity change (required)")
	f.StringVar(&cost, "cost", "", "unit cost of added stock")
	f.StringVar(&req.LotNumber, "lot", "", "lot number")
	f.StringVar(&req.Reason, "reason", "", "adjustment, return, damage or recount (default adjustment)")
	f.StringVar(&req.Note, "note", "", "free-text note")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("delta")
	return cmd
}

func (c *commands) transferCmd() *cobra.Command {
	var product, from, to, qty string
	var req app.TransferRequest
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move stock between locations",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			var err error
			if req.ProductID, err = parseID("product id", product); err != nil {
				return err
			}
			if req.FromLocationID, err = parseID("source location id", from); err != nil {
				return err
			}
			if req.ToLocationID, err = parseID("destination location id", to); err != nil {
				return err
			}
			if req.Qty, err = parseDecimal("qty", qty); err != nil {
				return err
			}
			move, err := svc.Transfer(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), move)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&product, "product", "", "product id (required)")
	f.StringVar(&from, "from", "", "source location id (required)")
	f.StringVar(&to, "to", "", "destination location id (required)")
	f.StringVar(&qty, "qty", "", "quantity (required)")
	f.StringVar(&req.LotNumber, "lot", "", "lot number")
	f.StringVar(&req.Note, "note", "", "free-text note")
	for _, name := range []string{"product", "from", "to", "qty"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (c *commands) recountCmd() *cobra.Command {
	var product, location, counted string
	var req app.RecountRequest
	cmd := &cobra.Command{
		Use:   "recount",
		Short: "Record a physical count",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			var err error
			if req.ProductID, err = parseID("product id", product); err != nil {
				return err
			}
			if req.LocationID, err = parseID("location id", location); err != nil {
				return err
			}
			if req.Counted, err = parseDecimal("counted", counted); err != nil {
				return err
			}
			move, err := svc.Recount(cmd.Context(), req)
			if err != nil {
				return err
			}
			if move == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Count matches; nothing recorded.")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), move)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&product, "product", "", "product id (required)")
	f.StringVar(&location, "location", "", "location id (required)")
	f.StringVar(&counted, "counted", "", "counted quantity (required)")
	f.StringVar(&req.LotNumber, "lot", "", "lot number")
	f.StringVar(&req.Note, "note", "", "free-text note")
	for _, name := range []string{"product", "location", "counted"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (c *commands) reconcileCmd() *cobra.Command {
	var product, location string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stock rows against the movement log",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			p, err := parseID("product id", product)
			if err != nil {
				return err
			}
			l, err := parseOptionalID("location id", location)
			if err != nil {
				return err
			}
			res, err := svc.Reconcile(cmd.Context(), p, l)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Consistent {
				return fmt.Errorf("%d discrepancies found", len(res.Discrepancies))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&product, "product", "", "product id (required)")
	cmd.Flags().StringVar(&location, "location", "", "location id")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}
