package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/audit"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/featureflag"
)

func TestFeatureHandler_ListMergesDefaults(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.flags.Save("t1", featureflag.Set{"fees": false}))
	token := env.tokenFor(t, "u1", "t1", "", "dashboard:read:default")

	resp := env.do(t, request{method: http.MethodGet, path: "/v1/features", token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[FeaturesResponse](t, resp)
	assert.Equal(t, "t1", body.TenantID)
	assert.Equal(t, string(featureflag.StateReady), body.State)
	assert.Equal(t, "store", body.Source)
	assert.False(t, body.Flags["fees.enabled"])
	assert.True(t, body.Flags["exams.enabled"])
}

func TestFeatureHandler_UpdateRequiresManage(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "u1", "t1", "", "dashboard:read:default")

	resp := env.do(t, request{
		method: http.MethodPut, path: "/v1/features", token: token,
		body: UpdateFeaturesRequest{Flags: map[string]bool{"exams": false}},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFeatureHandler_UpdateTakesEffect(t *testing.T) {
	env := newTestEnv(t)
	manager := env.tokenFor(t, "owner", "t1", "", "feature:manage:tenant", "exam:grade:branch")

	grade := request{
		method: http.MethodPost, path: "/v1/exams/grade", token: manager,
		body: map[string]any{"score": 45, "maxScore": 50},
	}
	resp := env.do(t, grade)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, request{
		method: http.MethodPut, path: "/v1/features", token: manager,
		body: UpdateFeaturesRequest{Flags: map[string]bool{"exams": false}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[FeaturesResponse](t, resp)
	assert.False(t, body.Flags["exams.enabled"])

	rec := env.recorder.last(t)
	assert.Equal(t, audit.ActionUpdate, rec.Action)
	assert.Equal(t, "features", rec.EntityType)
	assert.Equal(t, audit.Change{Old: true, New: false}, rec.Changes["exams.enabled"])

	resp = env.do(t, grade)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "gate refreshed after save")
}

func TestFeatureHandler_UpdateReadOnlySource(t *testing.T) {
	registry := featureflag.NewRegistry(featureflag.StaticSource{}, nil)
	h := NewFeatureHandler(registry)
	env := newTestEnv(t)
	env.app.Put("/static/features", h.Update)

	resp := env.do(t, request{
		method: http.MethodPut, path: "/static/features",
		token: env.tokenFor(t, "owner", "t1", "", "feature:manage:tenant"),
		body:  UpdateFeaturesRequest{Flags: map[string]bool{"exams": false}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestFeatureHandler_Navigation(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.flags.Save("t1", featureflag.Set{"exams.enabled": false}))
	token := env.tokenFor(t, "u1", "t1", "b1",
		"dashboard:read:default", "exam:read:branch", "student:read:branch")

	resp := env.do(t, request{method: http.MethodGet, path: "/v1/me/navigation", token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[NavigationResponse](t, resp)
	assert.Equal(t, "ready", body.State)
	keys := make([]string, 0, len(body.Items))
	for _, it := range body.Items {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{"dashboard", "students"}, keys)
}

func TestFeatureHandler_NavigationRequiresActor(t *testing.T) {
	h := NewFeatureHandler(featureflag.NewRegistry(featureflag.StaticSource{}, nil))
	env := newTestEnv(t)
	env.app.Get("/anon/navigation", h.Navigation)

	resp := env.do(t, request{method: http.MethodGet, path: "/anon/navigation"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
