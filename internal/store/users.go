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

const userEntity = "user"

// User is a staff or guardian account within one tenant.
type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	BranchID     string    `json:"branchId,omitempty"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Roles        []string  `json:"roles"`
	Permissions  []string  `json:"permissions,omitempty"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	Active       bool      `json:"active"`
	Version      uint64    `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public returns a copy of u without credentials, suitable for responses
// and audit snapshots.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// UserStore keeps users under users/<tenant>/<id> with a per-tenant
// unique email index.
type UserStore struct {
	engine persistence.Engine
	// mu serialises writes so the email index check and the write that
	// claims it cannot interleave.
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewUserStore creates a user store on engine.
func NewUserStore(engine persistence.Engine) *UserStore {
	return &UserStore{
		engine: engine,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func userKey(tenantID, id string) string {
	return docKey("users", tenantID, id)
}

func emailKey(tenantID, email string) string {
	return indexKey("users", "email", tenantID, email)
}

func normalizeUser(u *User) error {
	u.TenantID = cleanString(u.TenantID)
	u.BranchID = cleanString(u.BranchID)
	u.Email = cleanString(u.Email, true)
	u.Name = cleanString(u.Name)
	if u.TenantID == "" {
		return errors.New("user tenant is required")
	}
	if u.Email == "" {
		return errors.New("user email is required")
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}
	return nil
}

// Create stores a new user. ID, Version and timestamps are assigned here.
func (s *UserStore) Create(u User) (created User, err error) {
	defer func() { record(userEntity, "create", err) }()

	if err := normalizeUser(&u); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.engine.Get(emailKey(u.TenantID, u.Email)); err == nil {
		return User{}, &DuplicateError{Type: userEntity, Field: "email", Value: u.Email}
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return User{}, fmt.Errorf("check email index: %w", err)
	}

	if u.ID == "" {
		u.ID = s.newID()
	}
	now := stamp(s.now)
	u.Version = 1
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := s.write(u, ""); err != nil {
		return User{}, err
	}
	return u, nil
}

// Get returns a user by id.
func (s *UserStore) Get(tenantID, id string) (u User, err error) {
	defer func() { record(userEntity, "get", err) }()
	err = load(s.engine, userEntity, userKey(tenantID, id), &u)
	return u, err
}

// GetByEmail looks a user up through the email index. Matching is
// case-insensitive.
func (s *UserStore) GetByEmail(tenantID, email string) (u User, err error) {
	defer func() { record(userEntity, "get_by_email", err) }()

	email = cleanString(email, true)
	raw, err := s.engine.Get(emailKey(tenantID, email))
	if errors.Is(err, persistence.ErrNotFound) {
		return User{}, &NotFoundError{Type: userEntity, Key: email}
	}
	if err != nil {
		return User{}, fmt.Errorf("read email index: %w", err)
	}
	err = load(s.engine, userEntity, userKey(tenantID, string(raw)), &u)
	return u, err
}

// List returns the users of a tenant ordered by email.
func (s *UserStore) List(tenantID string) (users []User, err error) {
	defer func() { record(userEntity, "list", err) }()

	users, err = loadAll[User](s.engine, userKey(tenantID, ""))
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// Update replaces a stored user. When expectedVersion is non-zero it must
// match the stored version. ID, TenantID and CreatedAt cannot change.
func (s *UserStore) Update(u User, expectedVersion uint64) (updated User, err error) {
	defer func() { record(userEntity, "update", err) }()

	if err := normalizeUser(&u); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current User
	if err := load(s.engine, userEntity, userKey(u.TenantID, u.ID), &current); err != nil {
		return User{}, err
	}
	if expectedVersion != 0 && expectedVersion != current.Version {
		return User{}, &VersionConflictError{
			Type: userEntity, ID: u.ID,
			ExpectedVersion: expectedVersion, CurrentVersion: current.Version,
		}
	}

	if u.Email != current.Email {
		if _, err := s.engine.Get(emailKey(u.TenantID, u.Email)); err == nil {
			return User{}, &DuplicateError{Type: userEntity, Field: "email", Value: u.Email}
		} else if !errors.Is(err, persistence.ErrNotFound) {
			return User{}, fmt.Errorf("check email index: %w", err)
		}
	}

	u.Version = current.Version + 1
	u.CreatedAt = current.CreatedAt
	u.UpdatedAt = stamp(s.now)

	staleEmail := ""
	if u.Email != current.Email {
		staleEmail = current.Email
	}
	if err := s.write(u, staleEmail); err != nil {
		return User{}, err
	}
	return u, nil
}

// Delete removes a user and its email index entry.
func (s *UserStore) Delete(tenantID, id string) (err error) {
	defer func() { record(userEntity, "delete", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	var current User
	if err := load(s.engine, userEntity, userKey(tenantID, id), &current); err != nil {
		return err
	}
	return s.engine.BatchDelete([]string{
		userKey(tenantID, id),
		emailKey(tenantID, current.Email),
	})
}

// write stores the document and its index entry in one batch, dropping
// the index entry of staleEmail when the address changed.
func (s *UserStore) write(u User, staleEmail string) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.engine.BatchSet(map[string][]byte{
		userKey(u.TenantID, u.ID):     raw,
		emailKey(u.TenantID, u.Email): []byte(u.ID),
	}); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	if staleEmail != "" {
		if err := s.engine.Delete(emailKey(u.TenantID, staleEmail)); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("drop stale email index: %w", err)
		}
	}
	return nil
}
