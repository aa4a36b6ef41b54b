package main

import (
	"github.com/jo-hoe/cmsadmin/internal/images"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newUpdateRenditionsCmd(v *viper.Viper) *cobra.Command {
	var opts images.UpdateOptions
	cmd := &cobra.Command{
		Use:     "update_image_renditions",
		Aliases: []string{"wagtail_update_image_renditions"},
		Short:   "Regenerates image renditions",
		Long: `Regenerates every stored image rendition from its original image.

With --purge each rendition is deleted and created again; with --purge-only
renditions are deleted and left to be regenerated on their next use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := loadCore(v, cmd)
			if err != nil {
				return err
			}
			defer closeCore(service)
			return service.Renditions().UpdateRenditions(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&opts.Purge, "purge", false, "purge and regenerate all image renditions")
	cmd.Flags().BoolVar(&opts.PurgeOnly, "purge-only", false, "purge all image renditions without regenerating them")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "don't colorize the command output")
	return cmd
}
