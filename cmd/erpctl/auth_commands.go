package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLoginCmd(opts *options) *cobra.Command {
	var tenant, email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Long: `Sign in with tenant, email and password. The password is read from
--password, then ERP_PASSWORD, then the first line of standard input.

Examples:
  erpctl login --tenant greenfield --email admin@greenfield.edu
  echo "$PW" | erpctl login --tenant greenfield --email admin@greenfield.edu`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ERP_PASSWORD")
			}
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("password required: use --password, ERP_PASSWORD or stdin")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			client, _, err := opts.client(false)
			if err != nil {
				return err
			}
			resp, err := client.Login(cmd.Context(), LoginRequest{TenantID: tenant, Email: email, Password: password})
			if err != nil {
				return err
			}

			if err := saveSession(opts.sessionFile, &session{
				Server:       opts.server,
				Token:        resp.Token,
				RefreshToken: resp.RefreshToken,
			}); err != nil {
				return err
			}

			if ok, err := render(cmd, opts, resp); ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", resp.User.Email, resp.User.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Session saved to %s\n", opts.sessionFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := opts.client(true)
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context(), sess.RefreshToken); err != nil {
				return err
			}
			if err := os.Remove(opts.sessionFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and its permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := opts.client(true)
			if err != nil {
				return err
			}
			me, err := client.Me(cmd.Context())
			if err != nil {
				return err
			}
			if ok, err := render(cmd, opts, me); ok {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "User:\t%s\n", me.UserID)
			fmt.Fprintf(w, "Email:\t%s\n", me.Email)
			fmt.Fprintf(w, "Tenant:\t%s\n", me.TenantID)
			if me.BranchID != "" {
				fmt.Fprintf(w, "Branch:\t%s\n", me.BranchID)
			}
			fmt.Fprintf(w, "Roles:\t%s\n", strings.Join(me.Roles, ", "))
			fmt.Fprintf(w, "Expires:\t%s\n", me.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintln(w, "Permissions:")
			for _, p := range me.Permissions {
				fmt.Fprintf(w, "\t%s\n", p)
			}
			return w.Flush()
		},
	}
}

func newCanCmd(opts *options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "can <permission>...",
		Short: "Check whether the signed-in account holds permissions",
		Long: `Check permissions of the signed-in account. With several permissions
the check passes when any one is held, or every one with --all. The exit
status is 3 when the check fails.

Examples:
  erpctl can student:read:tenant
  erpctl can user:create:tenant role:manage:tenant --all`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := opts.client(true)
			if err != nil {
				return err
			}
			mode := "any"
			if all {
				mode = "all"
			}
			resp, err := client.Can(cmd.Context(), args, mode)
			if err != nil {
				return err
			}

			rendered, err := render(cmd, opts, resp)
			if err != nil {
				return err
			}
			if !rendered {
				verdict := "denied"
				if resp.Allowed {
					verdict = "allowed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s of %s)\n", verdict, resp.Mode, strings.Join(resp.Permissions, ", "))
			}

			if !resp.Allowed {
				return errDenied
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Require every permission instead of any")
	return cmd
}

// errDenied signals a failed permission check.
var errDenied = errors.New("permission denied")
