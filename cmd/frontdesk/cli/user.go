package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/service"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
		Long:  "Create and list the staff accounts that log in to the front-desk API.",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		username  string
		password  string
		companyID int64
		superuser bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		Example: `  frontdesk user create --username reception --company 1
  frontdesk user create --username ops --superuser --password 's3cret-pass'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(cmd.Context(), username, password, companyID, superuser)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Login name (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().Int64Var(&companyID, "company", 1, "Company the account belongs to")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "Grant superuser rights")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runUserCreate(ctx context.Context, username, password string, companyID int64, superuser bool) error {
	// Prompt for password if not provided
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, _, err := cfg.DevFallbacks(); err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	authSvc := service.NewAuthService(st, cfg.Auth.JWTSecret)
	u, err := authSvc.CreateAccount(ctx, username, password, companyID, superuser)
	if err != nil {
		return err
	}

	role := "staff"
	if u.IsSuperuser {
		role = "superuser"
	}
	fmt.Printf("Created %s %q (id %d, company %d)\n", role, u.Username, u.ID, u.CompanyID)
	return nil
}

// ---------- user list ----------

func newUserListCmd() *cobra.Command {
	var (
		companyID  int64
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List staff accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(cmd.Context(), companyID, jsonOutput)
		},
	}

	cmd.Flags().Int64Var(&companyID, "company", 0, "Only list accounts of this company (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUserList(ctx context.Context, companyID int64, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// Operators see every company unless --company narrows the list.
	actor := &model.User{IsSuperuser: companyID == 0, CompanyID: companyID}
	authSvc := service.NewAuthService(st, cfg.Auth.JWTSecret)
	users, err := authSvc.ListUsers(ctx, actor)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}

	if len(users) == 0 {
		fmt.Println("No accounts found. Use 'frontdesk user create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-24s %-8s %-10s\n", "ID", "USERNAME", "COMPANY", "SUPERUSER")
	fmt.Printf("%-6s %-24s %-8s %-10s\n", "--", "--------", "-------", "---------")
	for _, u := range users {
		su := "no"
		if u.IsSuperuser {
			su = "yes"
		}
		fmt.Printf("%-6d %-24s %-8d %-10s\n", u.ID, u.Username, u.CompanyID, su)
	}

	return nil
}
