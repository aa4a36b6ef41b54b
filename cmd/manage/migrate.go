package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Creates the database schema and the initial page tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening the core service applies the schema
			service, err := loadCore(v, cmd)
			if err != nil {
				return err
			}
			defer closeCore(service)
			root, err := service.EnsureRootPage(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Database ready, root page %d.\n", root.ID)
			return err
		},
	}
}
