// Package cli is the posctl command line: one subcommand per operation of
// the directory, catalog, ledger, reports and snapshots.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pos/backend/internal/domain/shared"
	"github.com/pos/backend/internal/infrastructure/config"
	"github.com/pos/backend/internal/infrastructure/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options configures the command tree
type Options struct {
	// Fs backs receipts and snapshots; the OS filesystem when nil
	Fs afero.Fs
	// Logger overrides the logger built from configuration
	Logger *zap.Logger
	// In, Out and Err replace the process streams when set
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type runtime struct {
	opts       Options
	configPath string
	app        *App
}

// Execute runs posctl with args and releases the store afterwards, also
// when the command fails
func Execute(ctx context.Context, opts Options, args []string) error {
	root, rt := newRootCommand(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, rt.close(context.WithoutCancel(ctx)))
}

func newRootCommand(opts Options) (*cobra.Command, *runtime) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	rt := &runtime{opts: opts}

	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Point of sale data core",
		Long:          "posctl manages accounts, the product catalog, the invoice ledger and sales reports of a multi-tenant point of sale.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.open(cmd.Context())
		},
	}
	if opts.In != nil {
		root.SetIn(opts.In)
	}
	if opts.Out != nil {
		root.SetOut(opts.Out)
	}
	if opts.Err != nil {
		root.SetErr(opts.Err)
	}
	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "config file (default: ./config.toml)")

	root.AddCommand(
		newMigrateCommand(rt),
		newAccountCommand(rt),
		newProductCommand(rt),
		newInvoiceCommand(rt),
		newReportCommand(rt),
		newSnapshotCommand(rt),
	)
	return root, rt
}

func (rt *runtime) open(ctx context.Context) error {
	cfg, err := config.LoadFile(rt.configPath)
	if err != nil {
		return err
	}
	log := rt.opts.Logger
	if log == nil {
		log, err = logger.New(&logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cfg.Log.Output,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	log.Debug("Opening store",
		zap.String("driver", cfg.Store.Driver),
		zap.String("env", cfg.App.Env))

	app, err := NewApp(cfg, log, rt.opts.Fs)
	if err != nil {
		return err
	}
	rt.app = app
	return nil
}

func (rt *runtime) close(ctx context.Context) error {
	if rt.app == nil {
		return nil
	}
	err := rt.app.Close(ctx)
	if rt.opts.Logger == nil {
		logger.Sync(rt.app.Logger)
	}
	rt.app = nil
	return err
}

// tenantFlags are the --company/--shop-type pair naming a tenant
type tenantFlags struct {
	company  string
	shopType string
}

func (f *tenantFlags) register(cmd *cobra.Command, required bool) {
	cmd.Flags().StringVar(&f.company, "company", "", "company name")
	cmd.Flags().StringVar(&f.shopType, "shop-type", "", "shop type (RESTAURACAO, FARMACIA, OFICINA, OUTRO)")
	if required {
		_ = cmd.MarkFlagRequired("company")
		_ = cmd.MarkFlagRequired("shop-type")
	} else {
		cmd.MarkFlagsRequiredTogether("company", "shop-type")
	}
}

func (f *tenantFlags) isSet() bool {
	return f.company != ""
}

func (f *tenantFlags) tenant() (shared.Tenant, error) {
	return shared.NewTenant(f.company, shared.ShopType(f.shopType))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
