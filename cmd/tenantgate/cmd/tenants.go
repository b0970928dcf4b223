package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/bunx"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/repository"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Tenant management commands",
}

var (
	tenantName       string
	tenantOwner      string
	assignIdentityID string
	assignTenantID   string
)

var tenantsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		tenant := &models.Tenant{Name: tenantName}
		if tenantOwner != "" {
			if _, err := repository.NewBunIdentityRepository(db).GetByID(ctx, tenantOwner); err != nil {
				return fmt.Errorf("owner %q: %w", tenantOwner, err)
			}
			tenant.OwnerIdentityID = &tenantOwner
		}

		if err := repository.NewBunTenantRepository(db).Create(ctx, tenant); err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tenant created: %s (%s)\n", tenant.ID, tenant.Name)
		return nil
	},
}

var tenantsAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Grant an identity explicit access to a tenant",
	Long:  `Records a tenant assignment. CustomerSuccess staff may only select and impersonate within assigned tenants.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		tenants := repository.NewBunTenantRepository(db)
		if _, err := tenants.GetByID(ctx, assignTenantID); err != nil {
			return fmt.Errorf("tenant %q: %w", assignTenantID, err)
		}
		if _, err := repository.NewBunIdentityRepository(db).GetByID(ctx, assignIdentityID); err != nil {
			return fmt.Errorf("identity %q: %w", assignIdentityID, err)
		}
		if err := tenants.Assign(ctx, assignIdentityID, assignTenantID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to tenant %s\n", assignIdentityID, assignTenantID)
		return nil
	},
}

func init() {
	tenantsCreateCmd.Flags().StringVar(&tenantName, "name", "", "Tenant name")
	tenantsCreateCmd.Flags().StringVar(&tenantOwner, "owner", "", "Owner identity id")
	_ = tenantsCreateCmd.MarkFlagRequired("name")

	tenantsAssignCmd.Flags().StringVar(&assignIdentityID, "identity", "", "Identity id")
	tenantsAssignCmd.Flags().StringVar(&assignTenantID, "tenant", "", "Tenant id")
	_ = tenantsAssignCmd.MarkFlagRequired("identity")
	_ = tenantsAssignCmd.MarkFlagRequired("tenant")

	tenantsCmd.AddCommand(tenantsCreateCmd, tenantsAssignCmd)
	rootCmd.AddCommand(tenantsCmd)
}
