package cli

import (
	"bufio"
	"fmt"
	"strings"

	identityapp "github.com/pos/backend/internal/application/identity"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid username or password")

func newMigrateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.app.DB.Migrate(cmd.Context()); err != nil {
				return err
			}
			rt.app.Logger.Info("Schema up to date", zap.String("driver", rt.app.DB.Driver()))
			return nil
		},
	}
}

func newAccountCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage administrator and vendor accounts",
	}
	cmd.AddCommand(
		newRegisterAdminCommand(rt),
		newAddVendorCommand(rt),
		newLoginCommand(rt),
		newPasswdCommand(rt),
		newPhotoCommand(rt),
		newSellersCommand(rt),
		newListAccountsCommand(rt),
		newRecoverCommand(rt),
	)
	return cmd
}

func newRegisterAdminCommand(rt *runtime) *cobra.Command {
	var req identityapp.RegisterAdminRequest
	cmd := &cobra.Command{
		Use:   "register-admin",
		Short: "Register a tenant and its administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := rt.app.Directory.RegisterAdmin(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Company, "company", "", "company name")
	f.StringVar(&req.VAT, "vat", "", "company VAT number")
	f.StringVar(&req.ShopType, "shop-type", "", "shop type (RESTAURACAO, FARMACIA, OFICINA, OUTRO)")
	f.StringVar(&req.Username, "username", "", "administrator username")
	f.StringVar(&req.Email, "email", "", "administrator email")
	f.StringVar(&req.Password, "password", "", "administrator password")
	f.StringVar(&req.Photo, "photo", "", "profile photo reference")
	for _, name := range []string{"company", "shop-type", "username", "email", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newAddVendorCommand(rt *runtime) *cobra.Command {
	var req identityapp.AddVendorRequest
	cmd := &cobra.Command{
		Use:   "add-vendor",
		Short: "Add a seller account to a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := rt.app.Directory.AddVendor(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Company, "company", "", "company name")
	f.StringVar(&req.ShopType, "shop-type", "", "shop type (RESTAURACAO, FARMACIA, OFICINA, OUTRO)")
	f.StringVar(&req.Username, "username", "", "vendor username")
	f.StringVar(&req.Email, "email", "", "vendor email")
	f.StringVar(&req.Password, "password", "", "vendor password")
	f.StringVar(&req.Photo, "photo", "", "profile photo reference")
	for _, name := range []string{"company", "shop-type", "username", "email", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newLoginCommand(rt *runtime) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check a username and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := rt.app.Directory.Authenticate(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if account == nil {
				return errInvalidCredentials
			}
			return printJSON(cmd.OutOrStdout(), account)
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newPasswdCommand(rt *runtime) *cobra.Command {
	var username, oldPassword, newPassword string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ok, err := rt.app.Directory.ChangePassword(cmd.Context(), username, oldPassword, newPassword)
			if err != nil {
				return err
			}
			if !ok {
				return errInvalidCredentials
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return err
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&oldPassword, "old", "", "current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	for _, name := range []string{"username", "old", "new"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newPhotoCommand(rt *runtime) *cobra.Command {
	var username, ref string
	cmd := &cobra.Command{
		Use:   "photo",
		Short: "Set the profile photo of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ok, err := rt.app.Directory.UpdatePhoto(cmd.Context(), username, ref)
			if err != nil {
				return err
			}
			if !ok {
				return shared.NewDomainError(shared.ErrAccountNotFound.Code, "Account '"+username+"' not found")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "photo updated")
			return err
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&ref, "ref", "", "photo reference, empty to clear")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newSellersCommand(rt *runtime) *cobra.Command {
	var tf tenantFlags
	cmd := &cobra.Command{
		Use:   "sellers",
		Short: "List the usernames allowed to sell for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sellers, err := rt.app.Directory.SellersForTenant(cmd.Context(), tf.company, shared.ShopType(tf.shopType))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sellers)
		},
	}
	tf.register(cmd, true)
	return cmd
}

func newListAccountsCommand(rt *runtime) *cobra.Command {
	var tf tenantFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts, or the vendors of one tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				accounts []identityapp.AccountResponse
				err      error
			)
			if tf.isSet() {
				tenant, terr := tf.tenant()
				if terr != nil {
					return terr
				}
				accounts, err = rt.app.Directory.ListVendors(cmd.Context(), tenant)
			} else {
				accounts, err = rt.app.Directory.ListAccounts(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), accounts)
		},
	}
	tf.register(cmd, false)
	return cmd
}

// newRecoverCommand runs the whole recovery exchange in one process since
// issued codes live only as long as the directory service: the code is
// delivered on stderr, then the code and the new password are read from
// stdin, one per line.
func newRecoverCommand(rt *runtime) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Reset a forgotten password with a one-time code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			code, err := rt.app.Directory.RequestPasswordRecovery(ctx, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Recovery code for %s: %s\n", email, code)

			in := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprint(cmd.ErrOrStderr(), "Code: ")
			entered := readLine(in)
			fmt.Fprint(cmd.ErrOrStderr(), "New password: ")
			password := readLine(in)
			if err := in.Err(); err != nil {
				return err
			}

			ok, err := rt.app.Directory.ResetPassword(ctx, email, entered, password)
			if err != nil {
				return err
			}
			if !ok {
				return shared.ErrInvalidRecoveryCode
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "password reset")
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email the account was registered with")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func readLine(s *bufio.Scanner) string {
	if !s.Scan() {
		return ""
	}
	return strings.TrimSpace(s.Text())
}
