package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/domain/nav"
	"github.com/schoolhub/portal/internal/ports"
)

func newLoginCmd(c *cli) *cobra.Command {
	var in ports.LoginInput
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Signs in and stores the returned credential, replacing any previous session.
The password is prompted for when --password is omitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := passwordOrPrompt(in.Password)
			if err != nil {
				return err
			}
			in.Password = password

			m, _, err := c.session()
			if err != nil {
				return err
			}
			state, err := m.Login(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("login failed: %s", domainauth.UserMessage(err))
			}
			c.signedIn(state)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var in ports.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a student account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := passwordOrPrompt(in.Password)
			if err != nil {
				return err
			}
			in.Password = password

			m, _, err := c.session()
			if err != nil {
				return err
			}
			state, err := m.Register(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("registration failed: %s", domainauth.UserMessage(err))
			}
			c.signedIn(state)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "account email")
	f.StringVar(&in.Username, "username", "", "username")
	f.StringVar(&in.Password, "password", "", "account password")
	f.StringVar(&in.FirstName, "first-name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	f.StringVar(&in.Program, "program", "", "degree program")
	f.IntVar(&in.YearLevel, "year-level", 0, "year level (1-6)")
	for _, name := range []string{"email", "username", "first-name", "last-name"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, _, err := c.session()
			if err != nil {
				return err
			}
			m.Logout(cmd.Context())
			c.print(pterm.Success.Sprintln("Logged out"))
			return nil
		},
	}
}

func (c *cli) signedIn(state domainauth.State) {
	id, _ := state.Identity()
	c.print(pterm.Success.Sprintfln("Signed in as %s (%s)", displayName(id), id.Role))
	c.print(pterm.Info.Sprintfln("Landing page: %s", nav.LandingRouteFor(id.Role)))
}

// promptPassword reads a password from the terminal without echoing it.
var promptPassword = func() (string, error) { //nolint:gochecknoglobals // replaced in tests
	return pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
}

func passwordOrPrompt(password string) (string, error) {
	if password != "" {
		return password, nil
	}
	p, err := promptPassword()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return p, nil
}

func displayName(id domainauth.Identity) string {
	if id.Username != "" {
		return id.Username
	}
	return id.Email
}
