package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFeaturesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Show the tenant's module flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := opts.client(true)
			if err != nil {
				return err
			}
			resp, err := client.Features(cmd.Context())
			if err != nil {
				return err
			}
			return printFeatures(cmd, opts, resp)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key=true|false>...",
		Short: "Replace the tenant's stored flags",
		Long: `Replace the stored flags of the tenant. Keys may be bare module names;
keys left out fall back to the defaults.

Examples:
  erpctl features set fees=false library=true`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := parseFlagAssignments(args)
			if err != nil {
				return err
			}
			client, _, err := opts.client(true)
			if err != nil {
				return err
			}
			resp, err := client.SetFeatures(cmd.Context(), flags)
			if err != nil {
				return err
			}
			return printFeatures(cmd, opts, resp)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Reload the tenant's flags from their source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := opts.client(true)
			if err != nil {
				return err
			}
			resp, err := client.RefreshFeatures(cmd.Context())
			if err != nil {
				return err
			}
			return printFeatures(cmd, opts, resp)
		},
	})

	return cmd
}

func newNavCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "nav",
		Short: "Show the menu visible to the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := opts.client(true)
			if err != nil {
				return err
			}
			resp, err := client.Navigation(cmd.Context())
			if err != nil {
				return err
			}
			if ok, err := render(cmd, opts, resp); ok {
				return err
			}

			if len(resp.Items) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No menu entries (flags %s)\n", resp.State)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SECTION\tKEY\tLABEL\tPATH")
			for _, it := range resp.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Section, it.Key, it.Label, it.Path)
			}
			return w.Flush()
		},
	}
}

func printFeatures(cmd *cobra.Command, opts *options, resp *FeaturesResponse) error {
	if ok, err := render(cmd, opts, resp); ok {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Tenant: %s  State: %s  Source: %s\n", resp.TenantID, resp.State, resp.Source)
	if resp.Error != "" {
		fmt.Fprintf(out, "Last load error: %s\n", resp.Error)
	}

	keys := make([]string, 0, len(resp.Flags))
	for k := range resp.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FLAG\tENABLED")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%t\n", k, resp.Flags[k])
	}
	return w.Flush()
}

// parseFlagAssignments turns key=bool arguments into a flag set.
func parseFlagAssignments(args []string) (map[string]bool, error) {
	flags := make(map[string]bool, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (want key=true|false)", arg)
		}
		enabled, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %q", key, value)
		}
		flags[key] = enabled
	}
	return flags, nil
}
