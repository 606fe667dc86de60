package cmd

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables or indexes for the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.migrate(cmd.Context()); err != nil {
				return err
			}
			a.log.WithField("store", a.cfg.Store).Info("migration complete")
			return nil
		},
	}
}
