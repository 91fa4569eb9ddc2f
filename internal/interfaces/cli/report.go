package cli

import (
	"github.com/pos/backend/internal/domain/report"
	"github.com/spf13/cobra"
)

func newReportCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Sales totals including tax",
	}
	cmd.AddCommand(
		newTotalsCommand(rt, "monthly", "Totals per calendar month", rt.monthly),
		newTotalsCommand(rt, "by-seller", "Totals per seller", rt.bySeller),
	)
	return cmd
}

type totalsFunc func(cmd *cobra.Command, tf *tenantFlags, sellers []string) (*report.Totals, error)

func newTotalsCommand(rt *runtime, use, short string, run totalsFunc) *cobra.Command {
	var (
		tf      tenantFlags
		sellers []string
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short + "; scoped to a tenant's sellers or to --seller, otherwise the whole ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			totals, err := run(cmd, &tf, sellers)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), totals)
		},
	}
	tf.register(cmd, false)
	cmd.Flags().StringSliceVar(&sellers, "seller", nil, "restrict to these sellers")
	cmd.MarkFlagsMutuallyExclusive("company", "seller")
	return cmd
}

func (rt *runtime) monthly(cmd *cobra.Command, tf *tenantFlags, sellers []string) (*report.Totals, error) {
	if tf.isSet() {
		tenant, err := tf.tenant()
		if err != nil {
			return nil, err
		}
		return rt.app.Reports.TenantMonthlyTotals(cmd.Context(), tenant)
	}
	return rt.app.Reports.MonthlyTotals(cmd.Context(), sellerScope(cmd, sellers))
}

func (rt *runtime) bySeller(cmd *cobra.Command, tf *tenantFlags, sellers []string) (*report.Totals, error) {
	if tf.isSet() {
		tenant, err := tf.tenant()
		if err != nil {
			return nil, err
		}
		return rt.app.Reports.TenantTotalsBySeller(cmd.Context(), tenant)
	}
	return rt.app.Reports.TotalsBySeller(cmd.Context(), sellerScope(cmd, sellers))
}

// sellerScope is nil (everyone) unless --seller was given
func sellerScope(cmd *cobra.Command, sellers []string) *report.Scope {
	if !cmd.Flags().Changed("seller") {
		return nil
	}
	return report.NewScope(sellers...)
}
