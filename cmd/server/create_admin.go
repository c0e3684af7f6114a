package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"user_backend/internal/config"
	"user_backend/internal/storage"
)

type adminInput struct {
	phone    string
	password string
	fullName string
}

// NewCreateAdminCmd creates the create-admin subcommand.
func NewCreateAdminCmd() *cobra.Command {
	var flags adminInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the first administrator",
		Long: `Seed the roles and create an active administrator. Values default to the
first_admin configuration section. An existing account with the same phone
number is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			input, err := resolveAdminInput(flags, cfg.FirstAdmin)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := config.ConnectDB(ctx, cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()

			users := newUserService(pool, newHasher(cfg.Security), storage.Disabled{}, logger)
			user, created, err := users.CreateAdmin(ctx, input.phone, input.password, input.fullName)
			if err != nil {
				return err
			}

			if created {
				cmd.Printf("Admin created (id %d)\n", user.ID)
			} else {
				cmd.Printf("A user with phone %s already exists (id %d, role %s)\n", user.PhoneNumber, user.ID, user.Role)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.phone, "phone", "", "admin phone number")
	cmd.Flags().StringVar(&flags.password, "password", "", "admin password")
	cmd.Flags().StringVar(&flags.fullName, "full-name", "", "admin full name")

	return cmd
}

// resolveAdminInput fills unset flags from the first_admin configuration.
func resolveAdminInput(flags adminInput, cfg config.FirstAdminConfig) (adminInput, error) {
	in := adminInput{phone: cfg.PhoneNumber, password: cfg.Password, fullName: cfg.FullName}
	if flags.phone != "" {
		in.phone = flags.phone
	}
	if flags.password != "" {
		in.password = flags.password
	}
	if flags.fullName != "" {
		in.fullName = flags.fullName
	}
	if in.fullName == "" {
		in.fullName = "Administrator"
	}

	if in.phone == "" || in.password == "" {
		return adminInput{}, oops.Code("CONFIG_INVALID").
			Errorf("admin phone number and password are required (flags or first_admin config)")
	}
	return in, nil
}
