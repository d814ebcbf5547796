package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/user"
)

func (cli *commandLine) addUserCommand() *cobra.Command {
	var name, email, role string

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update it when the email is taken. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, email, role, pwd)
			if err != nil {
				return err
			}
			cmd.Printf("saved %s (%s)\n", usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "the user's full name")
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	cmd.Flags().StringVar(&role, "role", user.RoleAdmin, "admin or guru")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, name, email, role, pwd string) (user.User, error) {
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	switch {
	case err == nil:
		uu := user.UpdateUser{Name: name, Role: role, Password: pwd}
		if err = uu.Validate(usr, cli.validate); err != nil {
			return user.User{}, err
		}
		return cli.usrSvc.Update(ctx, usr.ID, uu)
	case errors.Is(err, core.ErrNotFound):
		nu := user.NewUser{Name: name, Email: email, Role: role, Password: pwd}
		if err = nu.Validate(cli.validate); err != nil {
			return user.User{}, err
		}
		return cli.usrSvc.Create(ctx, nu)
	default:
		return user.User{}, err
	}
}
