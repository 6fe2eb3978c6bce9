package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/DhimiMohamed/taskmanager/account"
)

func newUserCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCmd(opts))
	return cmd
}

func newUserCreateCmd(opts *options) *cobra.Command {
	var (
		req      account.RegisterRequest
		verified bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validator.New().Struct(req); err != nil {
				return fmt.Errorf("invalid user: %w", err)
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.accounts.Register(ctx, req)
			if err != nil {
				return err
			}
			if verified {
				if u, err = a.accounts.Verify(ctx, u.VerifyToken); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s> verified=%t\n", u.ID, u.Email, u.IsVerified)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Email, "email", "", "login email")
	f.StringVar(&req.Password, "password", "", "password, at least 8 characters")
	f.StringVar(&req.FirstName, "first-name", "", "first name")
	f.StringVar(&req.LastName, "last-name", "", "last name")
	f.BoolVar(&verified, "verified", true, "mark the email as verified")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
