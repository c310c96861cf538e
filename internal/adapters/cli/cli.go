// Package cli is the ledgerctl command tree. Every command calls the ApplicationService
// and prints the result as indented JSON unless it has a table view.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"inventory-ledger/internal/app"
)

// NewRootCommand builds the command tree. svc is resolved lazily so that --help works
// without a database.
func NewRootCommand(svc func() (app.ApplicationService, error)) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the inventory ledger: stock, orders, alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c := &commands{svc: svc}
	root.AddCommand(
		c.warehouseCmd(),
		c.locationCmd(),
		c.stockCmd(),
		c.reservationCmd(),
		c.purchaseOrderCmd(),
		c.salesOrderCmd(),
		c.alertsCmd(),
		c.reorderCmd(),
		c.syncCmd(),
	)
	return root
}

type commands struct {
	svc func() (app.ApplicationService, error)
}

// run adapts a command body that needs the service into a cobra RunE.
func (c *commands) run(fn func(cmd *cobra.Command, args []string, svc app.ApplicationService) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, err := c.svc()
		if err != nil {
			return err
		}
		return fn(cmd, args, svc)
	}
}

// ── Location directory ────────────────────────────────────────────────────────

func (c *commands) warehouseCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "warehouse", Aliases: []string{"wh"}, Short: "Manage warehouses"}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List warehouses",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, svc app.ApplicationService) error {
			ws, err := svc.ListWarehouses(cmd.Context(), all)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ws)
		}),
	}
	list.Flags().BoolVar(&all, "all", false, "include inactive warehouses")

	var req app.CreateWarehouseRequest
	create := &cobra.Command{
		Use:   "create CODE NAME",
		Short: "Create a warehouse",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			req.Code, req.Name = args[0], args[1]
			wh, err := svc.CreateWarehouse(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), wh)
		}),
	}
	create.Flags().StringVar(&req.Address, "address", "", "street address")
	create.Flags().BoolVar(&req.IsDefault, "default", false, "make this the default warehouse")

	setDefault := &cobra.Command{
		Use:   "default ID",
		Short: "Make a warehouse the default",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID("warehouse id", args[0])
			if err != nil {
				return err
			}
			wh, err := svc.SetDefaultWarehouse(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), wh)
		}),
	}

	deactivate := &cobra.Command{
		Use:   "deactivate ID",
		Short: "Deactivate a non-default warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID("warehouse id", args[0])
			if err != nil {
				return err
			}
			wh, err := svc.DeactivateWarehouse(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), wh)
		}),
	}

	cmd.AddCommand(list, create, setDefault, deactivate)
	return cmd
}

func (c *commands) locationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "location", Aliases: []string{"loc"}, Short: "Manage locations"}

	list := &cobra.Command{
		Use:   "list WAREHOUSE_ID",
		Short: "List the locations of a warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID("warehouse id", args[0])
			if err != nil {
				return err
			}
			locs, err := svc.ListLocations(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), locs)
		}),
	}

	var req app.CreateLocationRequest
	create := &cobra.Command{
		Use:   "create WAREHOUSE_ID CODE",
		Short: "Create a location",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID("warehouse id", args[0])
			if err != nil {
				return err
			}
			req.WarehouseID, req.Code = id, args[1]
			loc, err := svc.CreateLocation(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), loc)
		}),
	}
	f := create.Flags()
	f.StringVar(&req.Type, "type", "", "storage, staging, receiving, damage or returns (default storage)")
	f.StringVar(&req.Zone, "zone", "", "")
	f.StringVar(&req.Aisle, "aisle", "", "")
	f.StringVar(&req.Rack, "rack", "", "")
	f.StringVar(&req.Shelf, "shelf", "", "")
	f.StringVar(&req.Bin, "bin", "", "")

	setDefault := &cobra.Command{
		Use:   "default ID",
		Short: "Make a location the default of its warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID("location id", args[0])
			if err != nil {
				return err
			}
			loc, err := svc.SetDefaultLocation(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), loc)
		}),
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an empty location",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, svc app.ApplicationService) error {
			id, err := parseID("location id", args[0])
			if err != nil {
				return err
			}
			if err := svc.DeleteLocation(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Location deleted.")
			return nil
		}),
	}

	cmd.AddCommand(list, create, setDefault, del)
	return cmd
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func parseID(what, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return id, nil
}

func parseOptionalID(what, s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseID(what, s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseIDs(what string, ss []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		id, err := parseID(what, s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func parseDecimal(what, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return d, nil
}

// readJSON decodes a request body from path, or from stdin when path is "" or "-".
func readJSON(cmd *cobra.Command, path string, v any) error {
	var r io.Reader = cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStock(w io.Writer, res *app.StockResult) {
	fmt.Fprintln(w, strings.Repeat("=", 118))
	fmt.Fprintf(w, "  %-36s %-36s %-10s %10s %10s %10s\n", "PRODUCT", "LOCATION", "LOT", "QTY", "RESERVED", "AVAILABLE")
	fmt.Fprintln(w, strings.Repeat("-", 118))
	for _, it := range res.Items {
		fmt.Fprintf(w, "  %-36s %-36s %-10s %10s %10s %10s\n",
			it.ProductID, it.LocationID, it.LotNumber, it.Qty, it.ReservedQty, it.AvailableQty)
	}
	fmt.Fprintln(w, strings.Repeat("-", 118))
	fmt.Fprintf(w, "  %-84s %10s %10s %10s\n", "TOTAL", res.TotalQty, res.TotalReserved, res.TotalAvailable)
	fmt.Fprintln(w, strings.Repeat("=", 118))
}
