package cli

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"inventory-ledger/internal/app"
	"inventory-ledger/internal/core"
)

func (c *commands) reservationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "reservation", Aliases: []string{"res"}, Short: "Hold and release stock for sales orders"}

	var file string
	reserve := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve a batch of lines (JSON request on stdin or --file)",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			var req app.ReserveRequest
			if err := readJSON(cmd, file, &req); err != nil {
				return err
			}
			res, err := svc.Reserve(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
	reserve.Flags().StringVarP(&file, "file", "f", "", "request file (default stdin)")

	release := &cobra.Command{
		Use:   "release ORDER_ID",
		Short: "Release every reservation of an order",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID("order id", args[0])
			if err != nil {
				return err
			}
			res, err := svc.Release(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}

	list := &cobra.Command{
		Use:   "list ORDER_ID",
		Short: "List the reservations of an order",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID("order id", args[0])
			if err != nil {
				return err
			}
			res, err := svc.ListReservations(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}

	cmd.AddCommand(reserve, release, list)
	return cmd
}

func (c *commands) purchaseOrderCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "po", Short: "Purchase orders"}

	var createFile string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a draft purchase order (JSON request on stdin or --file)",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			var req app.CreatePurchaseOrderRequest
			if err := readJSON(cmd, createFile, &req); err != nil {
				return err
			}
			po, err := svc.CreatePurchaseOrder(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), po)
		}),
	}
	create.Flags().StringVarP(&createFile, "file", "f", "", "request file (default stdin)")

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List purchase orders",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			pos, err := svc.ListPurchaseOrders(cmd.Context(), status)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pos)
		}),
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")

	var receiveFile string
	receive := &cobra.Command{
		Use:   "receive ID",
		Short: "Receive goods against a purchase order (JSON lines on stdin or --file)",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID("purchase order id", args[0])
			if err != nil {
				return err
			}
			var req app.ReceivePurchaseOrderRequest
			if err := readJSON(cmd, receiveFile, &req); err != nil {
				return err
			}
			req.ID = id
			res, err := svc.ReceivePurchaseOrder(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
	receive.Flags().StringVarP(&receiveFile, "file", "f", "", "request file (default stdin)")

	cmd.AddCommand(
		create, list, receive,
		c.byID("get", "Show a purchase order", "purchase order id", wrapID(app.ApplicationService.GetPurchaseOrder)),
		c.byID("send", "Mark a draft as sent to the supplier", "purchase order id", wrapID(app.ApplicationService.SendPurchaseOrder)),
		c.byID("confirm", "Record supplier confirmation", "purchase order id", wrapID(app.ApplicationService.ConfirmPurchaseOrder)),
		c.byID("cancel", "Cancel a purchase order with no receipts", "purchase order id", wrapID(app.ApplicationService.CancelPurchaseOrder)),
	)
	return cmd
}

func (c *commands) salesOrderCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "so", Short: "Sales orders"}

	var createFile string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a pending sales order (JSON request on stdin or --file)",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			var req app.CreateSalesOrderRequest
			if err := readJSON(cmd, createFile, &req); err != nil {
				return err
			}
			so, err := svc.CreateSalesOrder(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), so)
		}),
	}
	create.Flags().StringVarP(&createFile, "file", "f", "", "request file (default stdin)")

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List sales orders",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			orders, err := svc.ListSalesOrders(cmd.Context(), status)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), orders)
		}),
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")

	cmd.AddCommand(
		create, list,
		c.byID("get", "Show a sales order", "sales order id", wrapID(app.ApplicationService.GetSalesOrder)),
		c.byID("confirm", "Confirm and reserve stock", "sales order id", wrapID(app.ApplicationService.ConfirmSalesOrder)),
		c.byID("process", "Start processing", "sales order id", wrapID(app.ApplicationService.StartProcessing)),
		c.lineQty("pick", "Record picked quantities (JSON lines on stdin or --file)", false, app.ApplicationService.PickSalesOrder),
		c.byID("pack", "Mark picked lines packed", "sales order id", wrapID(app.ApplicationService.PackSalesOrder)),
		c.lineQty("ship", "Ship picked quantities; with --all ships everything picked", true, app.ApplicationService.ShipSalesOrder),
		c.byID("deliver", "Record delivery", "sales order id", wrapID(app.ApplicationService.DeliverSalesOrder)),
		c.byID("cancel", "Cancel and release reservations", "sales order id", wrapID(app.ApplicationService.CancelSalesOrder)),
	)
	return cmd
}

type idAction func(ctx context.Context, svc app.ApplicationService, id uuid.UUID) (any, error)

// wrapID adapts an ApplicationService method expression into an idAction.
func wrapID[T any](fn func(app.ApplicationService, context.Context, uuid.UUID) (T, error)) idAction {
	return func(ctx context.Context, svc app.ApplicationService, id uuid.UUID) (any, error) {
		return fn(svc, ctx, id)
	}
}

// byID builds a "<use> ID" subcommand that prints what action returns.
func (c *commands) byID(use, short, what string, action idAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID(what, args[0])
			if err != nil {
				return err
			}
			res, err := action(cmd.Context(), svc, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func (c *commands) lineQty(use, short string, allowAll bool, fn func(app.ApplicationService, context.Context, app.LineQtyRequest) (*core.TransitionResult, error)) *cobra.Command {
	var file string
	var all bool
	cmd := &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID("sales order id", args[0])
			if err != nil {
				return err
			}
			var req app.LineQtyRequest
			if !all {
				if err := readJSON(cmd, file, &req); err != nil {
					return err
				}
			}
			req.ID = id
			res, err := fn(svc, cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "request file (default stdin)")
	if allowAll {
		cmd.Flags().BoolVar(&all, "all", false, "ship every picked, unshipped quantity")
	}
	return cmd
}
