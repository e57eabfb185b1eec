package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/persistence"
)

const studentEntity = "student"

// Student statuses.
const (
	StudentActive    = "active"
	StudentGraduated = "graduated"
	StudentWithdrawn = "withdrawn"
)

var validStatuses = map[string]bool{
	StudentActive:    true,
	StudentGraduated: true,
	StudentWithdrawn: true,
}

// Student is an enrolled pupil. AdmissionNo is unique within the tenant.
type Student struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	BranchID      string    `json:"branchId"`
	AdmissionNo   string    `json:"admissionNo"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	ClassName     string    `json:"className"`
	Section       string    `json:"section,omitempty"`
	DateOfBirth   string    `json:"dateOfBirth,omitempty"`
	GuardianName  string    `json:"guardianName,omitempty"`
	GuardianPhone string    `json:"guardianPhone,omitempty"`
	Status        string    `json:"status"`
	Version       uint64    `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// StudentFilter narrows List. Empty fields match everything.
type StudentFilter struct {
	BranchID  string
	ClassName string
	Status    string
}

func (f StudentFilter) matches(s Student) bool {
	if f.BranchID != "" && s.BranchID != f.BranchID {
		return false
	}
	if f.ClassName != "" && s.ClassName != f.ClassName {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

// StudentStore keeps students under students/<tenant>/<id> with a
// per-tenant unique admission number index.
type StudentStore struct {
	engine persistence.Engine
	mu     sync.Mutex
	now    func() time.Time
	newID  func() string
}

// NewStudentStore creates a student store on engine.
func NewStudentStore(engine persistence.Engine) *StudentStore {
	return &StudentStore{
		engine: engine,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func studentKey(tenantID, id string) string {
	return docKey("students", tenantID, id)
}

func admissionKey(tenantID, admissionNo string) string {
	return indexKey("students", "admission", tenantID, admissionNo)
}

func normalizeStudent(s *Student) error {
	s.TenantID = cleanString(s.TenantID)
	s.BranchID = cleanString(s.BranchID)
	s.AdmissionNo = cleanString(s.AdmissionNo)
	s.FirstName = cleanString(s.FirstName)
	s.LastName = cleanString(s.LastName)
	s.ClassName = cleanString(s.ClassName)
	s.Section = cleanString(s.Section)
	s.DateOfBirth = cleanString(s.DateOfBirth)
	s.GuardianName = cleanString(s.GuardianName)
	s.GuardianPhone = cleanString(s.GuardianPhone)
	s.Status = cleanString(s.Status, true)

	switch {
	case s.TenantID == "":
		return errors.New("student tenant is required")
	case s.AdmissionNo == "":
		return errors.New("admission number is required")
	case s.FirstName == "":
		return errors.New("first name is required")
	}
	if s.Status == "" {
		s.Status = StudentActive
	}
	if !validStatuses[s.Status] {
		return fmt.Errorf("invalid student status: %q", s.Status)
	}
	if s.DateOfBirth != "" {
		if _, err := time.Parse(time.DateOnly, s.DateOfBirth); err != nil {
			return fmt.Errorf("date of birth must be YYYY-MM-DD: %w", err)
		}
	}
	return nil
}

// Create enrols a student. ID, Version and timestamps are assigned here.
func (s *StudentStore) Create(st Student) (created Student, err error) {
	defer func() { record(studentEntity, "create", err) }()

	if err := normalizeStudent(&st); err != nil {
		return Student{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAdmission(st.TenantID, st.AdmissionNo); err != nil {
		return Student{}, err
	}

	if st.ID == "" {
		st.ID = s.newID()
	}
	now := stamp(s.now)
	st.Version = 1
	st.CreatedAt = now
	st.UpdatedAt = now

	if err := s.write(st, ""); err != nil {
		return Student{}, err
	}
	return st, nil
}

// Get returns a student by id.
func (s *StudentStore) Get(tenantID, id string) (st Student, err error) {
	defer func() { record(studentEntity, "get", err) }()
	err = load(s.engine, studentEntity, studentKey(tenantID, id), &st)
	return st, err
}

// List returns the tenant's students matching filter, ordered by
// admission number.
func (s *StudentStore) List(tenantID string, filter StudentFilter) (out []Student, err error) {
	defer func() { record(studentEntity, "list", err) }()

	all, err := loadAll[Student](s.engine, studentKey(tenantID, ""))
	if err != nil {
		return nil, err
	}
	out = make([]Student, 0, len(all))
	for _, st := range all {
		if filter.matches(st) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AdmissionNo < out[j].AdmissionNo })
	return out, nil
}

// Update replaces a stored student. When expectedVersion is non-zero it
// must match the stored version.
func (s *StudentStore) Update(st Student, expectedVersion uint64) (updated Student, err error) {
	defer func() { record(studentEntity, "update", err) }()

	if err := normalizeStudent(&st); err != nil {
		return Student{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current Student
	if err := load(s.engine, studentEntity, studentKey(st.TenantID, st.ID), &current); err != nil {
		return Student{}, err
	}
	if expectedVersion != 0 && expectedVersion != current.Version {
		return Student{}, &VersionConflictError{
			Type: studentEntity, ID: st.ID,
			ExpectedVersion: expectedVersion, CurrentVersion: current.Version,
		}
	}

	stale := ""
	if st.AdmissionNo != current.AdmissionNo {
		if err := s.checkAdmission(st.TenantID, st.AdmissionNo); err != nil {
			return Student{}, err
		}
		stale = current.AdmissionNo
	}

	st.Version = current.Version + 1
	st.CreatedAt = current.CreatedAt
	st.UpdatedAt = stamp(s.now)

	if err := s.write(st, stale); err != nil {
		return Student{}, err
	}
	return st, nil
}

// Delete removes a student and its admission index entry.
func (s *StudentStore) Delete(tenantID, id string) (err error) {
	defer func() { record(studentEntity, "delete", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	var current Student
	if err := load(s.engine, studentEntity, studentKey(tenantID, id), &current); err != nil {
		return err
	}
	return s.engine.BatchDelete([]string{
		studentKey(tenantID, id),
		admissionKey(tenantID, current.AdmissionNo),
	})
}

func (s *StudentStore) checkAdmission(tenantID, admissionNo string) error {
	_, err := s.engine.Get(admissionKey(tenantID, admissionNo))
	if err == nil {
		return &DuplicateError{Type: studentEntity, Field: "admission number", Value: admissionNo}
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("check admission index: %w", err)
	}
	return nil
}

func (s *StudentStore) write(st Student, staleAdmission string) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode student: %w", err)
	}
	if err := s.engine.BatchSet(map[string][]byte{
		studentKey(st.TenantID, st.ID):            raw,
		admissionKey(st.TenantID, st.AdmissionNo): []byte(st.ID),
	}); err != nil {
		return fmt.Errorf("store student: %w", err)
	}
	if staleAdmission != "" {
		if err := s.engine.Delete(admissionKey(st.TenantID, staleAdmission)); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("drop stale admission index: %w", err)
		}
	}
	return nil
}
