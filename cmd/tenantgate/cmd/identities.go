package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/bunx"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/repository"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Identity management commands",
}

var (
	identityEmail     string
	identitySubject   string
	identityFirstName string
	identityLastName  string
	identityRole      string
	identityTenant    string
	identityStatus    string
)

var identitiesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an identity",
	Long: `Creates an identity bound to an external subject id. Identities are also
provisioned automatically on first sight; use this to pre-assign a role,
tenant or status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseIdentityStatus(identityStatus)
		if err != nil {
			return err
		}
		format, err := auth.ParseIdentifierFormat(cfg.Auth.IdentifierFormat)
		if err != nil {
			return err
		}

		ctx := context.Background()
		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		identity := &models.Identity{
			ID:                format.NewID(),
			ExternalSubjectID: identitySubject,
			Email:             strings.TrimSpace(identityEmail),
			FirstName:         identityFirstName,
			LastName:          identityLastName,
			Status:            status,
		}

		if identityRole != "" {
			role, err := repository.NewBunRoleRepository(db).GetByName(ctx, identityRole)
			if err != nil {
				return fmt.Errorf("role %q: %w", identityRole, err)
			}
			identity.RoleID = &role.ID
		}

		if identityTenant != "" {
			if _, err := repository.NewBunTenantRepository(db).GetByID(ctx, identityTenant); err != nil {
				return fmt.Errorf("tenant %q: %w", identityTenant, err)
			}
			identity.TenantID = &identityTenant
		}

		if err := repository.NewBunIdentityRepository(db).Create(ctx, identity); err != nil {
			return fmt.Errorf("failed to create identity: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Identity created: %s (%s)\n", identity.ID, identity.ExternalSubjectID)
		return nil
	},
}

func parseIdentityStatus(s string) (models.IdentityStatus, error) {
	status := models.IdentityStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case models.StatusActive, models.StatusInactive, models.StatusSuspended:
		return status, nil
	default:
		return "", fmt.Errorf("invalid status %q: must be ACTIVE, INACTIVE or SUSPENDED", s)
	}
}

func init() {
	f := identitiesCreateCmd.Flags()
	f.StringVar(&identitySubject, "subject", "", "External subject id (sub claim)")
	f.StringVar(&identityEmail, "email", "", "Email address")
	f.StringVar(&identityFirstName, "first-name", "", "First name")
	f.StringVar(&identityLastName, "last-name", "", "Last name")
	f.StringVar(&identityRole, "role", "", "Role name")
	f.StringVar(&identityTenant, "tenant", "", "Home tenant id")
	f.StringVar(&identityStatus, "status", string(models.StatusActive), "ACTIVE, INACTIVE or SUSPENDED")
	_ = identitiesCreateCmd.MarkFlagRequired("subject")
	_ = identitiesCreateCmd.MarkFlagRequired("email")

	identitiesCmd.AddCommand(identitiesCreateCmd)
	rootCmd.AddCommand(identitiesCmd)
}
