package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	ledgerapp "github.com/pos/backend/internal/application/ledger"
	"github.com/spf13/cobra"
)

func newInvoiceCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Commit sales and read the ledger",
	}
	cmd.AddCommand(
		newCreateInvoiceCommand(rt),
		newListInvoicesCommand(rt),
		newShowInvoiceCommand(rt),
		newExportInvoicesCommand(rt),
	)
	return cmd
}

// parseLine reads CODE:QTY or CODE:QTY:PRICE
func parseLine(s string) (ledgerapp.InvoiceLineRequest, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ledgerapp.InvoiceLineRequest{}, fmt.Errorf("--item %q: want CODE:QTY or CODE:QTY:PRICE", s)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return ledgerapp.InvoiceLineRequest{}, fmt.Errorf("--item %q: quantity is not a whole number", s)
	}
	line := ledgerapp.InvoiceLineRequest{Code: strings.TrimSpace(parts[0]), Quantity: qty}
	if len(parts) == 3 {
		price, err := parseDecimal("item", strings.TrimSpace(parts[2]))
		if err != nil {
			return ledgerapp.InvoiceLineRequest{}, err
		}
		line.UnitPrice = &price
	}
	return line, nil
}

func newCreateInvoiceCommand(rt *runtime) *cobra.Command {
	var (
		tf      tenantFlags
		seller  string
		items   []string
		taxRate string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Sell: check stock, decrement it, append the invoice and write its receipt",
		Example: `  posctl invoice create --company "Cafe Lisboa" --shop-type RESTAURACAO \
    --seller joao --item CAF:2 --item AGUA:1:0.75`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := ledgerapp.CreateInvoiceRequest{
				Company:  tf.company,
				ShopType: tf.shopType,
				Seller:   seller,
			}
			for _, s := range items {
				line, err := parseLine(s)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, line)
			}
			if cmd.Flags().Changed("tax-rate") {
				rate, err := parseDecimal("tax-rate", taxRate)
				if err != nil {
					return err
				}
				req.TaxRate = &rate
			}
			resp, err := rt.app.Ledger.CreateInvoice(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	tf.register(cmd, true)
	f := cmd.Flags()
	f.StringVar(&seller, "seller", "", "username of the selling account")
	f.StringArrayVar(&items, "item", nil, "line as CODE:QTY[:PRICE], repeatable")
	f.StringVar(&taxRate, "tax-rate", "", "VAT rate as a fraction, e.g. 0.23 (default from config)")
	_ = cmd.MarkFlagRequired("seller")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newListInvoicesCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the ledger, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			invoices, err := rt.app.Ledger.ListInvoices(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), invoices)
		},
	}
}

func newShowInvoiceCommand(rt *runtime) *cobra.Command {
	var receiptOnly bool
	cmd := &cobra.Command{
		Use:   "show NUMBER",
		Short: "Show one invoice, or where its receipt is stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if receiptOnly {
				path, err := rt.app.Ledger.ReceiptPath(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			}
			inv, err := rt.app.Ledger.GetInvoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), inv)
		},
	}
	cmd.Flags().BoolVar(&receiptOnly, "receipt", false, "print only the receipt path")
	return cmd
}

func newExportInvoicesCommand(rt *runtime) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger as ';'-separated CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := rt.opts.Fs.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return rt.app.Ledger.ExportCSV(cmd.Context(), w)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}
