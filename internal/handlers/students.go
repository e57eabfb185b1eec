package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/audit"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/middleware"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/pagination"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/store"
)

const studentEntityType = "student"

// StudentHandler manages enrolments. Actors holding only the branch scope
// of a student permission see and change students of their own branch.
type StudentHandler struct {
	students *store.StudentStore
}

func NewStudentHandler(students *store.StudentStore) *StudentHandler {
	return &StudentHandler{students: students}
}

// StudentRequest is the body of create and full update calls.
type StudentRequest struct {
	BranchID      string `json:"branchId" validate:"omitempty,max=64"`
	AdmissionNo   string `json:"admissionNo" validate:"required,notblank,max=32"`
	FirstName     string `json:"firstName" validate:"required,notblank,max=80"`
	LastName      string `json:"lastName" validate:"omitempty,max=80"`
	ClassName     string `json:"className" validate:"required,notblank,max=16"`
	Section       string `json:"section" validate:"omitempty,max=8"`
	DateOfBirth   string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	GuardianName  string `json:"guardianName" validate:"omitempty,max=120"`
	GuardianPhone string `json:"guardianPhone" validate:"omitempty,e164"`
	Status        string `json:"status" validate:"omitempty,oneof=active graduated withdrawn"`
}

func (r StudentRequest) apply(st *store.Student) {
	st.BranchID = r.BranchID
	st.AdmissionNo = r.AdmissionNo
	st.FirstName = r.FirstName
	st.LastName = r.LastName
	st.ClassName = r.ClassName
	st.Section = r.Section
	st.DateOfBirth = r.DateOfBirth
	st.GuardianName = r.GuardianName
	st.GuardianPhone = r.GuardianPhone
	st.Status = r.Status
}

// branchOnly reports whether the actor holds the branch scoped variant of
// a tenant wide permission but not the permission itself.
func branchOnly(actor *authz.Actor, tenantWide authz.Permission) bool {
	if tenantWide.Scope() != authz.ScopeTenant {
		return false
	}
	return !authz.HasPermission(actor, tenantWide) &&
		authz.HasPermission(actor, tenantWide.WithScope(authz.ScopeBranch))
}

// List returns students filtered by ?className= and ?status=, paginated.
func (h *StudentHandler) List(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	filter := store.StudentFilter{
		BranchID:  c.Query("branchId"),
		ClassName: c.Query("className"),
		Status:    c.Query("status"),
	}
	if branchOnly(actor, authz.StudentReadTenant) {
		filter.BranchID = actor.BranchID
	}

	students, err := h.students.List(actor.TenantID, filter)
	if err != nil {
		return storeError(c, err)
	}
	params := pagination.Parse(c.Query("page"), c.Query("limit"))
	return c.JSON(pagination.Slice(students, params))
}

// Get returns one student. Students of other branches are reported as
// missing to branch-scoped actors.
func (h *StudentHandler) Get(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	st, err := h.students.Get(actor.TenantID, c.Params("id"))
	if err != nil {
		return storeError(c, err)
	}
	if branchOnly(actor, authz.StudentReadTenant) && st.BranchID != actor.BranchID {
		return middleware.NotFound(c, "student not found")
	}
	setETag(c, st.Version)
	return c.JSON(st)
}

// Create enrols a student. Branch-scoped actors enrol into their branch.
func (h *StudentHandler) Create(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)

	var req StudentRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}
	if branchOnly(actor, authz.StudentCreateTenant) {
		if req.BranchID != "" && req.BranchID != actor.BranchID {
			return middleware.Forbidden(c, "cannot enrol into another branch")
		}
		req.BranchID = actor.BranchID
	}
	if req.BranchID == "" {
		return middleware.ValidationFailed(c, map[string]string{"branchId": "branchId is a required field"})
	}

	st := store.Student{TenantID: actor.TenantID}
	req.apply(&st)
	created, err := h.students.Create(st)
	if err != nil {
		if store.IsDuplicate(err) || store.IsNotFound(err) {
			return storeError(c, err)
		}
		return middleware.BadRequest(c, err.Error())
	}

	changes, _ := audit.Diff(nil, created)
	middleware.AnnotateAudit(c, audit.ActionCreate, studentEntityType, created.ID, changes)
	setETag(c, created.Version)
	return c.Status(fiber.StatusCreated).JSON(created)
}

// Update replaces a student record. An If-Match header pins the version.
func (h *StudentHandler) Update(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)

	version, err := expectedVersion(c)
	if err != nil {
		return err
	}

	var req StudentRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	current, err := h.students.Get(actor.TenantID, c.Params("id"))
	if err != nil {
		return storeError(c, err)
	}

	if branchOnly(actor, authz.StudentUpdateTenant) {
		if current.BranchID != actor.BranchID {
			return middleware.NotFound(c, "student not found")
		}
		if req.BranchID != "" && req.BranchID != actor.BranchID {
			return middleware.Forbidden(c, "cannot move a student to another branch")
		}
	}
	if req.BranchID == "" {
		req.BranchID = current.BranchID
	}

	next := current
	req.apply(&next)
	updated, err := h.students.Update(next, version)
	if err != nil {
		if store.IsDuplicate(err) || store.IsNotFound(err) || store.IsVersionConflict(err) {
			return storeError(c, err)
		}
		return middleware.BadRequest(c, err.Error())
	}

	changes, _ := audit.Diff(current, updated)
	middleware.AnnotateAudit(c, audit.ActionUpdate, studentEntityType, updated.ID, changes)
	setETag(c, updated.Version)
	return c.JSON(updated)
}

// Delete removes a student record.
func (h *StudentHandler) Delete(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	id := c.Params("id")
	if err := h.students.Delete(actor.TenantID, id); err != nil {
		return storeError(c, err)
	}
	middleware.AnnotateAudit(c, audit.ActionDelete, studentEntityType, id, nil)
	return c.SendStatus(fiber.StatusNoContent)
}
