package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const version = "1.0.0"

// options holds the global flags shared by every command.
type options struct {
	server      string
	token       string
	sessionFile string
	output      string
	timeout     time.Duration
}

// session is what login persists between invocations.
type session struct {
	Server       string `json:"server"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".erpctl-session.json"
	}
	return filepath.Join(dir, "erpctl", "session.json")
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "erpctl",
		Short: "Command-line client for the school ERP API",
		Long: `erpctl signs in to the school ERP API and inspects what the signed-in
account may do: its permissions, the tenant's enabled modules and the
menu those produce.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "table", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("invalid output format %q (must be table, json, or yaml)", opts.output)
			}
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.server, "server", envOr("ERP_SERVER", "http://localhost:8080"), "ERP API URL")
	flags.StringVar(&opts.token, "token", os.Getenv("ERP_TOKEN"), "Access token (default: from the saved session)")
	flags.StringVar(&opts.sessionFile, "session-file", defaultSessionFile(), "Where login stores the session")
	flags.StringVarP(&opts.output, "output", "o", "table", "Output format: table, json, yaml")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newCanCmd(opts),
		newFeaturesCmd(opts),
		newNavCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// client builds an API client, taking the token from --token or the
// saved session.
func (o *options) client(requireToken bool) (*ERPClient, *session, error) {
	sess, err := loadSession(o.sessionFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, err
	}
	if sess == nil {
		sess = &session{}
	}

	token := o.token
	if token == "" && (sess.Server == "" || sess.Server == o.server) {
		token = sess.Token
	}
	if requireToken && token == "" {
		return nil, nil, errors.New("not logged in: run 'erpctl login' or pass --token")
	}
	return NewERPClient(o.server, token, o.timeout), sess, nil
}

func loadSession(path string) (*session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", path, err)
	}
	return &s, nil
}

func saveSession(path string, s *session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	// replace rather than rewrite so a looser mode on an old file is dropped
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// render prints data as JSON or YAML. It reports false for table output,
// which each command prints itself.
func render(cmd *cobra.Command, opts *options, data any) (bool, error) {
	out := cmd.OutOrStdout()
	switch opts.output {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(data)
	case "yaml":
		raw, err := yaml.Marshal(data)
		if err != nil {
			return true, err
		}
		_, err = out.Write(raw)
		return true, err
	default:
		return false, nil
	}
}
