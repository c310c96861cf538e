package cli

import (
	"github.com/spf13/cobra"

	"inventory-ledger/internal/app"
)

func (c *commands) alertsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "alerts", Short: "Stock alerts"}

	scan := &cobra.Command{
		Use:   "scan",
		Short: "Evaluate the stock snapshot against thresholds",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			res, err := svc.ScanAlerts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			alerts, err := svc.ListAlerts(cmd.Context(), status)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), alerts)
		}),
	}
	list.Flags().StringVar(&status, "status", "", "active, acknowledged or resolved")

	cmd.AddCommand(
		scan, list,
		c.byID("ack", "Acknowledge an alert", "alert id", wrapID(app.ApplicationService.AcknowledgeAlert)),
		c.byID("resolve", "Resolve an alert", "alert id", wrapID(app.ApplicationService.ResolveAlert)),
	)
	return cmd
}

func (c *commands) reorderCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "reorder", Short: "Purchase suggestions"}

	var products []string
	var period int
	suggest := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest purchase quantities from stock, open purchase orders and a demand forecast",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			ids, err := parseIDs("product id", products)
			if err != nil {
				return err
			}
			sugs, err := svc.SuggestReorders(cmd.Context(), app.ReorderRequest{ProductIDs: ids, PeriodDays: period})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sugs)
		}),
	}
	suggest.Flags().StringSliceVar(&products, "product", nil, "product id (repeatable; default all)")
	suggest.Flags().IntVar(&period, "period", 30, "forecast period in days")

	cmd.AddCommand(suggest)
	return cmd
}

func (c *commands) syncCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sync", Short: "Sales channel availability feed"}

	var products []string
	push := &cobra.Command{
		Use:   "push",
		Short: "Publish current available quantity per product",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			ids, err := parseIDs("product id", products)
			if err != nil {
				return err
			}
			sent, err := svc.PushAvailability(cmd.Context(), ids)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sent)
		}),
	}
	push.Flags().StringSliceVar(&products, "product", nil, "product id (repeatable; default all)")

	cmd.AddCommand(push)
	return cmd
}
