package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/grading"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/middleware"
)

// ExamHandler converts raw marks to grades.
type ExamHandler struct {
	scale grading.Scale
}

func NewExamHandler(scale grading.Scale) *ExamHandler {
	if len(scale) == 0 {
		scale = grading.DefaultScale
	}
	return &ExamHandler{scale: scale}
}

// GradeRequest carries one score. Scale overrides the school's scale for
// this call.
type GradeRequest struct {
	Score    *float64       `json:"score" validate:"required,gte=0"`
	MaxScore float64        `json:"maxScore" validate:"required,gt=0"`
	Scale    []grading.Band `json:"scale" validate:"omitempty,dive"`
}

// GradeResponse is the computed grade.
type GradeResponse struct {
	Percentage float64 `json:"percentage"`
	Letter     string  `json:"letter"`
	Points     float64 `json:"points"`
}

// Grade computes a letter grade. Nothing is stored, so no audit record is
// written.
func (h *ExamHandler) Grade(c *fiber.Ctx) error {
	middleware.SkipAudit(c)

	var req GradeRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	scale := h.scale
	if len(req.Scale) > 0 {
		custom, err := grading.NewScale(req.Scale)
		if err != nil {
			return middleware.ValidationFailed(c, map[string]string{"scale": err.Error()})
		}
		scale = custom
	}

	pct, err := grading.Percentage(*req.Score, req.MaxScore)
	if err != nil {
		return middleware.ValidationFailed(c, map[string]string{"score": err.Error()})
	}
	band, err := scale.Grade(pct)
	if err != nil {
		return middleware.ValidationFailed(c, map[string]string{"score": err.Error()})
	}

	return c.JSON(GradeResponse{
		Percentage: pct,
		Letter:     band.Letter,
		Points:     band.Points,
	})
}
