package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/app"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/config"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
)

type harness struct {
	server  string
	session string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{ShutdownTimeout: time.Second},
		Log:    config.LogConfig{Level: "error", Format: "json"},
		Auth: config.AuthConfig{
			JWTSecret:     "erpctl-test-secret",
			JWTExpiry:     time.Minute,
			RefreshExpiry: time.Hour,
			Issuer:        "erp-test",
			PublicPaths:   []string{"/health", "/v1/auth/login", "/v1/auth/refresh"},
		},
		Audit:       config.AuditConfig{Enabled: false},
		Persistence: config.PersistenceConfig{Type: "memory"},
		Features:    config.FeaturesConfig{Source: "store"},
		Bootstrap:   config.BootstrapConfig{TenantID: "t1", Email: "admin@school.test", Password: "bootstrap-password"},
	}
	a, err := app.NewBuilder(cfg, "test").WithLogger(logger.NewNop()).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv := httptest.NewServer(adaptor.FiberApp(a.Handler()))
	t.Cleanup(srv.Close)

	return &harness{
		server:  srv.URL,
		session: filepath.Join(t.TempDir(), "erpctl", "session.json"),
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append(args, "--server", h.server, "--session-file", h.session, "--token", ""))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	out, err := h.run(t, "login", "--tenant", "t1", "--email", "admin@school.test", "--password", "bootstrap-password")
	require.NoError(t, err, out)
	require.Contains(t, out, "Logged in as admin@school.test")
}

func TestLoginSavesSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	info, err := os.Stat(h.session)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	sess, err := loadSession(h.session)
	require.NoError(t, err)
	assert.Equal(t, h.server, sess.Server)
	assert.NotEmpty(t, sess.Token)
	assert.NotEmpty(t, sess.RefreshToken)
}

func TestLoginTightensExistingSessionMode(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(h.session), 0o700))
	require.NoError(t, os.WriteFile(h.session, []byte("{}"), 0o644))
	require.NoError(t, os.Chmod(h.session, 0o644))

	h.login(t)

	info, err := os.Stat(h.session)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(h.session))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "login", "--tenant", "t1", "--email", "admin@school.test", "--password", "nope")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "invalid credentials", apiErr.Message)

	_, statErr := os.Stat(h.session)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWhoamiJSON(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "whoami", "-o", "json")
	require.NoError(t, err, out)

	var me MeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &me))
	assert.Equal(t, "t1", me.TenantID)
	assert.Equal(t, "admin@school.test", me.Email)
	assert.Contains(t, me.Permissions, "feature:manage:tenant")
}

func TestCan(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "can", "student:read:tenant", "user:create:tenant", "--all")
	require.NoError(t, err)
	assert.Equal(t, "allowed (all of student:read:tenant, user:create:tenant)\n", out)

	out, err = h.run(t, "can", "hostel:read:tenant")
	assert.ErrorIs(t, err, errDenied)
	assert.Contains(t, out, "denied")
}

func TestFeaturesSetAndNav(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "features", "set", "fees=false", "library=true", "-o", "yaml")
	require.NoError(t, err, out)
	assert.Contains(t, out, "fees.enabled: false")
	assert.Contains(t, out, "library.enabled: true")
	assert.Contains(t, out, "source: store")

	out, err = h.run(t, "nav")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Dashboard")
	assert.Contains(t, out, "Library")
	assert.NotContains(t, out, "/fees")

	out, err = h.run(t, "features")
	require.NoError(t, err, out)
	assert.Contains(t, out, "State: ready")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out, err := h.run(t, "logout")
	require.NoError(t, err, out)

	_, statErr := os.Stat(h.session)
	assert.True(t, os.IsNotExist(statErr))

	_, err = h.run(t, "whoami")
	assert.ErrorContains(t, err, "not logged in")
}

func TestInvalidOutputFormat(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "features", "-o", "xml")
	assert.ErrorContains(t, err, "invalid output format")
}

func TestParseFlagAssignments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]bool
		wantErr bool
	}{
		{"bare and full keys", []string{"fees=false", "exams.enabled=1"}, map[string]bool{"fees": false, "exams.enabled": true}, false},
		{"missing value", []string{"fees"}, nil, true},
		{"empty key", []string{"=true"}, nil, true},
		{"not a bool", []string{"fees=maybe"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlagAssignments(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
