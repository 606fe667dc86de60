package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"portal-backend/portal"
)

func newSeedAdminCommand(configPath *string) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first admin account if none exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.migrate(cmd.Context()); err != nil {
				return err
			}
			u, err := a.service().SeedAdmin(cmd.Context(), username, password)
			if errors.Is(err, portal.ErrAdminExists) {
				a.log.Info("an admin already exists, nothing to do")
				return nil
			}
			if err != nil {
				return err
			}
			a.log.WithField("username", u.Username).Info("admin created")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
