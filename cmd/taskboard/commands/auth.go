package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rtms/taskboard/internal/api"
	"github.com/rtms/taskboard/pkg/models"
	"github.com/spf13/cobra"
)

// NewLoginCommand creates the login command
func NewLoginCommand(a *app) *cobra.Command {
	var creds models.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, a, creds)
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func runLogin(cmd *cobra.Command, a *app, creds models.Credentials) error {
	ctx := cmd.Context()
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return errors.New("email and password are required")
	}

	s, err := a.api.Login(ctx, creds)
	if err != nil {
		a.logger.Error("login failed", "error", err)
		return errors.New(api.UserMessage(err, "Failed to login. Please check your credentials."))
	}
	if err := a.sessions.Set(ctx, s); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", creds.Email)
	return nil
}

// NewRegisterCommand creates the register command
func NewRegisterCommand(a *app) *cobra.Command {
	var reg models.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.Register(cmd.Context(), reg); err != nil {
				a.logger.Error("registration failed", "error", err)
				return errors.New(api.UserMessage(err, "Registration failed. Please try again."))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Run `taskboard login` to sign in.\n", reg.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Account password")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.sessions.Clear(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
