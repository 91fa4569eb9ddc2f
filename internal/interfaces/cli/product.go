package cli

import (
	"fmt"

	catalogapp "github.com/pos/backend/internal/application/catalog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newProductCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage the product catalog and stock",
	}
	cmd.AddCommand(
		newAddProductCommand(rt),
		newUpdateProductCommand(rt),
		newShowProductCommand(rt),
		newListProductsCommand(rt),
		newAdjustStockCommand(rt),
		newLowStockCommand(rt),
		newStockHistoryCommand(rt),
	)
	return cmd
}

func parseDecimal(flag, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %q is not a number", flag, value)
	}
	return d, nil
}

func newAddProductCommand(rt *runtime) *cobra.Command {
	var (
		tf    tenantFlags
		req   catalogapp.CreateProductRequest
		price string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product to a tenant's catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := parseDecimal("price", price)
			if err != nil {
				return err
			}
			req.Company, req.ShopType, req.Price = tf.company, tf.shopType, p
			resp, err := rt.app.Catalog.AddProduct(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	tf.register(cmd, true)
	f := cmd.Flags()
	f.StringVar(&req.Code, "code", "", "product code, unique per tenant")
	f.StringVar(&req.Name, "name", "", "product name")
	f.StringVar(&price, "price", "", "unit price excluding tax")
	f.StringVar(&req.Type, "type", "", "product type")
	f.IntVar(&req.Stock, "stock", 0, "opening stock")
	f.IntVar(&req.MinStock, "min-stock", 0, "low stock threshold")
	f.StringVar(&req.Image, "image", "", "image reference")
	for _, name := range []string{"code", "name", "price"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newUpdateProductCommand(rt *runtime) *cobra.Command {
	var (
		tf                     tenantFlags
		code, name, typ, image string
		price                  string
		minStock               int
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change product details; only the given flags are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tf.tenant()
			if err != nil {
				return err
			}
			var req catalogapp.UpdateProductRequest
			f := cmd.Flags()
			if f.Changed("name") {
				req.Name = &name
			}
			if f.Changed("type") {
				req.Type = &typ
			}
			if f.Changed("image") {
				req.Image = &image
			}
			if f.Changed("min-stock") {
				req.MinStock = &minStock
			}
			if f.Changed("price") {
				p, err := parseDecimal("price", price)
				if err != nil {
					return err
				}
				req.Price = &p
			}
			resp, err := rt.app.Catalog.UpdateProduct(cmd.Context(), tenant, code, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	tf.register(cmd, true)
	f := cmd.Flags()
	f.StringVar(&code, "code", "", "product code")
	f.StringVar(&name, "name", "", "new name")
	f.StringVar(&price, "price", "", "new unit price excluding tax")
	f.StringVar(&typ, "type", "", "new product type")
	f.IntVar(&minStock, "min-stock", 0, "new low stock threshold")
	f.StringVar(&image, "image", "", "new image reference")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newShowProductCommand(rt *runtime) *cobra.Command {
	var (
		tf   tenantFlags
		code string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tf.tenant()
			if err != nil {
				return err
			}
			resp, err := rt.app.Catalog.GetProduct(cmd.Context(), tenant, code)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	tf.register(cmd, true)
	cmd.Flags().StringVar(&code, "code", "", "product code")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newListProductsCommand(rt *runtime) *cobra.Command {
	var (
		tf     tenantFlags
		filter catalogapp.ProductListFilter
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products, optionally of one tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter.Company, filter.ShopType = tf.company, tf.shopType
			products, err := rt.app.Catalog.ListProducts(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), products)
		},
	}
	tf.register(cmd, false)
	f := cmd.Flags()
	f.StringVar(&filter.Search, "search", "", "case-insensitive text in name or code")
	f.BoolVar(&filter.LowStockOnly, "low-stock", false, "only products below their minimum stock")
	f.StringVar(&filter.SortBy, "sort", "", "sort by code, name, price, stock or created_at")
	f.StringVar(&filter.SortOrder, "order", "", "asc or desc")
	return cmd
}

func newAdjustStockCommand(rt *runtime) *cobra.Command {
	var (
		tf    tenantFlags
		code  string
		delta int
	)
	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Add to or remove from stock; stock never goes below zero",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tf.tenant()
			if err != nil {
				return err
			}
			resp, err := rt.app.Catalog.AdjustStock(cmd.Context(), tenant, code, delta)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	tf.register(cmd, true)
	cmd.Flags().StringVar(&code, "code", "", "product code")
	cmd.Flags().IntVar(&delta, "delta", 0, "signed stock change")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("delta")
	return cmd
}

func newLowStockCommand(rt *runtime) *cobra.Command {
	var tf tenantFlags
	cmd := &cobra.Command{
		Use:   "low-stock",
		Short: "List a tenant's products below their minimum stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tf.tenant()
			if err != nil {
				return err
			}
			products, err := rt.app.Catalog.ListLowStock(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), products)
		},
	}
	tf.register(cmd, true)
	return cmd
}

func newStockHistoryCommand(rt *runtime) *cobra.Command {
	var (
		tf   tenantFlags
		code string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the stock movements of a product, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tf.tenant()
			if err != nil {
				return err
			}
			movements, err := rt.app.Catalog.StockHistory(cmd.Context(), tenant, code)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), movements)
		},
	}
	tf.register(cmd, true)
	cmd.Flags().StringVar(&code, "code", "", "product code")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}
