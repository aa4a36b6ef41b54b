package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCreateSuperuserCmd(v *viper.Viper) *cobra.Command {
	var (
		username string
		password string
		noInput  bool
	)
	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Creates an admin account with every permission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noInput {
				if username == "" || password == "" {
					return errors.New("--username and --password are required with --noinput")
				}
			} else if err := promptCredentials(&username, &password); err != nil {
				return err
			}

			service, err := loadCore(v, cmd)
			if err != nil {
				return err
			}
			defer closeCore(service)
			if _, err := service.CreateSuperuser(cmd.Context(), username, password); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Superuser created successfully.")
			return err
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login of the new superuser")
	cmd.Flags().StringVar(&password, "password", "", "password of the new superuser (only with --noinput)")
	cmd.Flags().BoolVar(&noInput, "noinput", false, "do not prompt; requires --username and --password")
	return cmd
}

func notBlank(ans interface{}) error {
	if s, ok := ans.(string); ok && strings.TrimSpace(s) == "" {
		return errors.New("this field cannot be blank")
	}
	return nil
}

func promptCredentials(username, password *string) error {
	if *username == "" {
		if err := survey.AskOne(&survey.Input{Message: "Username:"}, username, survey.WithValidator(notBlank)); err != nil {
			return translateSurveyErr(err)
		}
	}
	var confirm string
	if err := survey.AskOne(&survey.Password{Message: "Password:"}, password, survey.WithValidator(notBlank)); err != nil {
		return translateSurveyErr(err)
	}
	if err := survey.AskOne(&survey.Password{Message: "Password (again):"}, &confirm); err != nil {
		return translateSurveyErr(err)
	}
	if confirm != *password {
		return errors.New("the two passwords didn't match")
	}
	return nil
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errors.New("operation cancelled")
	}
	return err
}
