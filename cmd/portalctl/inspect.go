package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/schoolhub/portal/internal/adapters/gateway"
	"github.com/schoolhub/portal/internal/domain/access"
	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/domain/nav"
	"github.com/schoolhub/portal/internal/service"
)

// resolve bootstraps the stored session.
func (c *cli) resolve(ctx context.Context) (*service.SessionManager, *gateway.Client, error) {
	m, gw, err := c.session()
	if err != nil {
		return nil, nil, err
	}
	m.Bootstrap(ctx)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return m, gw, nil
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who the stored credential belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, _, err := c.resolve(cmd.Context())
			if err != nil {
				return err
			}
			state := m.State()
			id, ok := state.Identity()
			if !ok {
				c.print(pterm.Warning.Sprintln("Not logged in"))
				return nil
			}
			c.print(pterm.DefaultSection.Sprintln("Session"))
			return c.table(pterm.TableData{
				{"FIELD", "VALUE"},
				{"User", displayName(id)},
				{"Email", id.Email},
				{"Role", id.Role.String()},
				{"Landing", nav.LandingRouteFor(id.Role)},
			})
		},
	}
}

func newMenuCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "List the navigation entries of the signed-in role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, _, err := c.resolve(cmd.Context())
			if err != nil {
				return err
			}
			state := m.State()
			id, ok := state.Identity()
			if !ok {
				return errNotLoggedIn
			}
			data := pterm.TableData{{"LABEL", "PATH"}}
			for _, e := range nav.MenuFor(id.Role) {
				data = append(data, []string{e.Label, e.Path})
			}
			return c.table(data)
		},
	}
}

func newOpenCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Check whether the session may open a portal page",
		Long: `Runs the access guard of a portal page against the stored session and prints the
decision: render, or where the portal would redirect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/" + strings.TrimPrefix(args[0], "/")
			req, ok := access.ForPath(path)
			if !ok {
				return fmt.Errorf("unknown page %s", path)
			}
			m, _, err := c.resolve(cmd.Context())
			if err != nil {
				return err
			}
			state := m.State()
			d := access.Decide(state, req)
			switch d.Outcome {
			case access.OutcomeRender:
				c.print(pterm.Success.Sprintfln("%s: render", path))
			case access.OutcomeRedirectLogin, access.OutcomeRedirectRoot:
				c.print(pterm.Warning.Sprintfln("%s: %s -> %s", path, d.Outcome, d.Location))
			default:
				c.print(pterm.Info.Sprintfln("%s: %s", path, d.Outcome))
			}
			return nil
		},
	}
}

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource>",
		Short: "Fetch a gateway resource with the stored credential",
		Long: `Fetches a gateway resource such as /student/grades and prints it as JSON.
A credential the gateway rejects is forgotten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, gw, err := c.resolve(cmd.Context())
			if err != nil {
				return err
			}
			if !m.State().IsAuthenticated() {
				return errNotLoggedIn
			}

			var doc any
			err = m.Authorized(cmd.Context(), func(ctx context.Context, cred domainauth.Credential) error {
				return gw.Fetch(ctx, cred, args[0], &doc)
			})
			if err != nil {
				if m.State().IsAnonymous() {
					return fmt.Errorf("credential rejected, signed out: %s", domainauth.UserMessage(err))
				}
				return fmt.Errorf("fetch %s: %s", args[0], domainauth.UserMessage(err))
			}

			b, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
			c.print(string(b) + "\n")
			return nil
		},
	}
}
