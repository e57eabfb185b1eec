package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/featureflag"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/middleware"
)

// Routes is the HTTP surface of the API. Authentication and audit
// middleware are installed by the caller ahead of Register; every route
// here declares its own capability requirement.
type Routes struct {
	Auth     *AuthHandler
	Features *FeatureHandler
	Users    *UserHandler
	Students *StudentHandler
	Exams    *ExamHandler
	Health   *HealthHandler
	Registry *featureflag.Registry

	// LoginLimit, when set, guards the credential endpoints.
	LoginLimit fiber.Handler
}

// Register mounts every route on router.
func (r Routes) Register(router fiber.Router) {
	router.Get("/health", r.Health.Check)
	router.Get("/health/live", r.Health.Liveness)
	router.Get("/health/ready", r.Health.Readiness)

	v1 := router.Group("/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/login", r.limited(r.Auth.Login)...)
	authRoutes.Post("/refresh", r.limited(r.Auth.Refresh)...)
	authRoutes.Post("/logout", r.Auth.Logout)
	authRoutes.Get("/me", r.Auth.Me)
	authRoutes.Get("/can", r.Auth.Can)

	v1.Get("/me/navigation", r.Features.Navigation)

	v1.Get("/features", r.Features.List)
	v1.Put("/features", middleware.RequirePermission(authz.FeatureManageTenant), r.Features.Update)
	v1.Post("/features/refresh", middleware.RequirePermission(authz.FeatureManageTenant), r.Features.Refresh)

	users := v1.Group("/users", middleware.RequireFeature(r.Registry, featureflag.ModuleUsers.Key()))
	users.Get("/", middleware.RequirePermission(authz.UserRead), r.Users.List)
	users.Post("/", middleware.RequirePermission(authz.UserCreate), r.Users.Create)
	users.Get("/:id", middleware.RequireAnyPermission(authz.UserRead, authz.UserReadOwn), r.Users.Get)
	users.Put("/:id", middleware.RequirePermission(authz.UserUpdate), r.Users.Update)
	users.Delete("/:id", middleware.RequirePermission(authz.UserDelete), r.Users.Delete)

	students := v1.Group("/students", middleware.RequireFeature(r.Registry, featureflag.ModuleAcademics.Key()))
	students.Get("/", middleware.RequireAnyPermission(authz.StudentReadTenant, authz.StudentReadBranch), r.Students.List)
	students.Post("/", middleware.RequireAnyPermission(authz.StudentCreateTenant, authz.StudentCreateBranch), r.Students.Create)
	students.Get("/:id", middleware.RequireAnyPermission(authz.StudentReadTenant, authz.StudentReadBranch), r.Students.Get)
	students.Put("/:id", middleware.RequireAnyPermission(authz.StudentUpdateTenant, authz.StudentUpdateBranch), r.Students.Update)
	students.Delete("/:id", middleware.RequirePermission(authz.StudentDeleteTenant), r.Students.Delete)

	exams := v1.Group("/exams", middleware.RequireFeature(r.Registry, featureflag.ModuleExams.Key()))
	exams.Post("/grade", middleware.RequirePermission(authz.ExamGradeBranch), r.Exams.Grade)
}

func (r Routes) limited(h fiber.Handler) []fiber.Handler {
	if r.LoginLimit == nil {
		return []fiber.Handler{h}
	}
	return []fiber.Handler{r.LoginLimit, h}
}
