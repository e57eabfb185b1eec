package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/grading"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/middleware"
)

func TestExamHandler_Grade(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "teacher", "t1", "b1", "exam:grade:branch")

	tests := []struct {
		name   string
		body   map[string]any
		letter string
		pct    float64
	}{
		{"top band", map[string]any{"score": 47, "maxScore": 50}, "A+", 94},
		{"boundary", map[string]any{"score": 33, "maxScore": 100}, "D", 33},
		{"zero", map[string]any{"score": 0, "maxScore": 40}, "F", 0},
		{
			"custom scale",
			map[string]any{
				"score": 60, "maxScore": 100,
				"scale": []grading.Band{{Min: 50, Letter: "Pass", Points: 1}, {Min: 0, Letter: "Fail"}},
			},
			"Pass", 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, request{method: http.MethodPost, path: "/v1/exams/grade", token: token, body: tt.body})
			require.Equal(t, http.StatusOK, resp.StatusCode)

			got := decode[GradeResponse](t, resp)
			assert.Equal(t, tt.letter, got.Letter)
			assert.InDelta(t, tt.pct, got.Percentage, 0.001)
		})
	}

	assert.Empty(t, env.recorder.all(), "grading is not audited")
}

func TestExamHandler_GradeRejects(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "teacher", "t1", "b1", "exam:grade:branch")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing score", map[string]any{"maxScore": 50}, "score"},
		{"negative score", map[string]any{"score": -1, "maxScore": 50}, "score"},
		{"zero max", map[string]any{"score": 1, "maxScore": 0}, "maxScore"},
		{"score above max", map[string]any{"score": 51, "maxScore": 50}, "score"},
		{
			"scale without zero band",
			map[string]any{"score": 1, "maxScore": 2, "scale": []grading.Band{{Min: 50, Letter: "P"}}},
			"scale",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, request{method: http.MethodPost, path: "/v1/exams/grade", token: token, body: tt.body})
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Contains(t, decode[middleware.ErrorResponse](t, resp).Fields, tt.field)
		})
	}
}

func TestExamHandler_GradeRequiresPermission(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "clerk", "t1", "b1", "exam:read:branch")

	resp := env.do(t, request{
		method: http.MethodPost, path: "/v1/exams/grade", token: token,
		body: map[string]any{"score": 1, "maxScore": 2},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
