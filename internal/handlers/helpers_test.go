package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/audit"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/auth"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/featureflag"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/grading"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/middleware"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/persistence"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/store"
)

const testPassword = "correct-horse-battery"

// captureRecorder keeps audit records in memory.
type captureRecorder struct {
	mu      sync.Mutex
	records []*audit.Record
}

func (r *captureRecorder) Record(_ context.Context, rec *audit.Record) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = audit.NewID()
	r.records = append(r.records, rec)
	return rec.ID, nil
}

func (r *captureRecorder) all() []*audit.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*audit.Record(nil), r.records...)
}

func (r *captureRecorder) last(t *testing.T) *audit.Record {
	t.Helper()
	all := r.all()
	if len(all) == 0 {
		t.Fatal("no audit records written")
	}
	return all[len(all)-1]
}

type testEnv struct {
	app         *fiber.App
	engine      *persistence.MemoryEngine
	jwt         *auth.JWTService
	users       *store.UserStore
	students    *store.StudentStore
	revocations *auth.RevocationList
	flags       *featureflag.StoreSource
	recorder    *captureRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	engine := persistence.NewMemoryEngine()
	jwtService := auth.NewJWTService("handler-test-secret", 15*time.Minute, time.Hour, "erp-test")
	users := store.NewUserStore(engine)
	students := store.NewStudentStore(engine)
	revocations := auth.NewRevocationList(engine)
	flags := &featureflag.StoreSource{Engine: engine}
	registry := featureflag.NewRegistry(flags, logger.NewNop())
	recorder := &captureRecorder{}
	auditor := audit.NewAuditor(recorder, logger.NewNop())

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Use(middleware.AuditContext())
	app.Use(middleware.JWTAuth(jwtService, revocations, []string{
		"/health", "/health/live", "/health/ready",
		"/v1/auth/login", "/v1/auth/refresh",
	}))
	app.Use(middleware.AuditMiddleware(auditor))

	Routes{
		Auth:     NewAuthHandler(jwtService, users, revocations),
		Features: NewFeatureHandler(registry),
		Users:    NewUserHandler(users),
		Students: NewStudentHandler(students),
		Exams:    NewExamHandler(grading.DefaultScale),
		Health:   NewHealthHandler("test", map[string]Probe{"persistence": EngineProbe(engine)}),
		Registry: registry,
	}.Register(app)

	return &testEnv{
		app:         app,
		engine:      engine,
		jwt:         jwtService,
		users:       users,
		students:    students,
		revocations: revocations,
		flags:       flags,
		recorder:    recorder,
	}
}

// seedUser stores an active user with testPassword.
func (e *testEnv) seedUser(t *testing.T, tenantID, email, branchID string, roles ...string) store.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := e.users.Create(store.User{
		TenantID:     tenantID,
		BranchID:     branchID,
		Email:        email,
		Name:         email,
		Roles:        roles,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// tokenFor issues an access token carrying exactly permissions.
func (e *testEnv) tokenFor(t *testing.T, userID, tenantID, branchID string, permissions ...string) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(auth.Identity{
		UserID:      userID,
		Email:       userID + "@school.test",
		TenantID:    tenantID,
		BranchID:    branchID,
		Permissions: permissions,
	})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

type request struct {
	method  string
	path    string
	token   string
	body    any
	headers map[string]string
}

func (e *testEnv) do(t *testing.T, r request) *http.Response {
	t.Helper()
	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	req.Header.Set("User-Agent", "handler-test")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", r.method, r.path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return out
}
