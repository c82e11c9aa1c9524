package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fieldops.lk/internal/audit"
	"fieldops.lk/internal/ids"
	"fieldops.lk/internal/rbac"
)

// Bootstrap credentials for the guaranteed super_admin account. These are the
// documented insecure defaults; operators are expected to rotate the password
// after first login.
const (
	BootstrapUserID   = "USER-ADMIN-001"
	BootstrapUsername = "admin"
	BootstrapPassword = "admin123"
	BootstrapName     = "System Administrator"
	BootstrapEmail    = "admin@slt.lk"
)

// Service provides user-management operations with role-based checks applied
// before any store mutation.
type Service struct {
	store Store
	trail *audit.Log
	now   func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, trail *audit.Log, opts ...Option) *Service {
	s := &Service{store: store, trail: trail, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureBootstrap guarantees exactly one super_admin exists, synthesizing the
// default account on first run. Safe to call repeatedly.
func (s *Service) EnsureBootstrap(ctx context.Context) error {
	users, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: list users: %w", err)
	}
	for _, u := range users {
		if u.Role == rbac.RoleSuperAdmin {
			return nil
		}
	}
	hash, err := HashPassword(BootstrapPassword)
	if err != nil {
		return fmt.Errorf("bootstrap: hash password: %w", err)
	}
	admin := User{
		ID:                  BootstrapUserID,
		Username:            BootstrapUsername,
		Name:                BootstrapName,
		Email:               BootstrapEmail,
		PasswordHash:        hash,
		DefaultPasswordHash: hash,
		Role:                rbac.RoleSuperAdmin,
		CreatedBy:           "SYSTEM",
		CreatedAt:           s.now().UTC(),
	}
	if err := s.store.Insert(ctx, admin); err != nil {
		return fmt.Errorf("bootstrap: insert admin: %w", err)
	}
	return nil
}

// Create adds a user on behalf of the context principal. The actor's role
// must be allowed to create the target role per the creation hierarchy.
func (s *Service) Create(ctx context.Context, params CreateUserParams) (User, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return User{}, ErrPermissionDenied
	}
	params.Username = strings.TrimSpace(strings.ToLower(params.Username))
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.TrimSpace(strings.ToLower(params.Email))
	if params.Username == "" || params.Name == "" || params.Password == "" {
		return User{}, fmt.Errorf("%w: username, name and password are required", ErrInvalidInput)
	}
	if params.Email == "" || !strings.Contains(params.Email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if !params.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %s", ErrInvalidInput, params.Role)
	}
	if !rbac.CanCreateRole(actor.Role, params.Role) {
		s.trail.Record(ctx, audit.TypeAccessDenied, map[string]any{
			"resource": "user_management",
			"action":   "create_user",
			"role":     string(params.Role),
		})
		return User{}, ErrPermissionDenied
	}
	if regionRequired(params.Role) && strings.TrimSpace(params.Region) == "" {
		return User{}, fmt.Errorf("%w: region is required for %s", ErrInvalidInput, params.Role)
	}
	if _, err := s.store.FindByCredential(ctx, params.Username); err == nil {
		return User{}, ErrUsernameTaken
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return User{}, err
	}
	user := User{
		ID:                  "USER-" + ids.New(),
		Username:            params.Username,
		Name:                params.Name,
		Email:               params.Email,
		PasswordHash:        hash,
		DefaultPasswordHash: hash,
		Role:                params.Role,
		Region:              strings.TrimSpace(params.Region),
		CreatedBy:           actor.UserID,
		CreatedAt:           s.now().UTC(),
	}
	if err := s.store.Insert(ctx, user); err != nil {
		return User{}, err
	}
	s.trail.Record(ctx, audit.TypeUserCreate, map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"region":   user.Region,
	})
	return user, nil
}

// Get returns a single user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.Get(ctx, id)
}

// FindByCredential resolves a username or email to a user.
func (s *Service) FindByCredential(ctx context.Context, credential string) (User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return User{}, fmt.Errorf("%w: credential is required", ErrInvalidInput)
	}
	return s.store.FindByCredential(ctx, credential)
}

// ListVisible returns the users the context principal may see, sorted by
// hierarchy rank ascending (highest authority first).
func (s *Service) ListVisible(ctx context.Context) ([]User, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrPermissionDenied
	}
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []User
	for _, u := range users {
		if rbac.CanViewUser(actor.Role, u.Role) {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rbac.Rank(out[i].Role), rbac.Rank(out[j].Role)
		if ri != rj {
			return ri < rj
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Update applies a partial update to the target user through the
// user-management path. Self-edit is refused except for super_admin.
func (s *Service) Update(ctx context.Context, id string, upd UserUpdate) (User, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return User{}, ErrPermissionDenied
	}
	target, err := s.store.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !rbac.CanEditUser(actor.Role, target.Role, target.ID, actor.UserID) {
		s.trail.Record(ctx, audit.TypeAccessDenied, map[string]any{
			"resource": "user_management",
			"action":   "update_user",
			"user_id":  target.ID,
		})
		return User{}, ErrPermissionDenied
	}
	merged, err := s.applyUpdate(target, upd)
	if err != nil {
		return User{}, err
	}
	if err := s.store.Update(ctx, merged); err != nil {
		return User{}, err
	}
	s.trail.Record(ctx, audit.TypeUserUpdate, map[string]any{"user_id": merged.ID})
	return merged, nil
}

// UpdateProfile is the self-service path: the principal edits their own
// profile fields and password without going through visibility rules. Kept in
// lockstep with Update's merge semantics so the two paths cannot diverge.
func (s *Service) UpdateProfile(ctx context.Context, upd UserUpdate) (User, error) {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return User{}, ErrPermissionDenied
	}
	target, err := s.store.Get(ctx, actor.UserID)
	if err != nil {
		return User{}, err
	}
	merged, err := s.applyUpdate(target, upd)
	if err != nil {
		return User{}, err
	}
	if err := s.store.Update(ctx, merged); err != nil {
		return User{}, err
	}
	s.trail.Record(ctx, audit.TypeUserUpdate, map[string]any{
		"user_id": merged.ID,
		"self":    true,
	})
	return merged, nil
}

func (s *Service) applyUpdate(target User, upd UserUpdate) (User, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		target.Name = name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		target.Email = email
	}
	if upd.Region != nil {
		region := strings.TrimSpace(*upd.Region)
		if regionRequired(target.Role) && region == "" {
			return User{}, fmt.Errorf("%w: region is required for %s", ErrInvalidInput, target.Role)
		}
		target.Region = region
	}
	if upd.ProfilePhoto != nil {
		target.ProfilePhoto = *upd.ProfilePhoto
	}
	if upd.Password != nil {
		pw := strings.TrimSpace(*upd.Password)
		if pw == "" {
			return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(pw)
		if err != nil {
			return User{}, err
		}
		target.PasswordHash = hash
	}
	return target, nil
}

// Delete removes the target user. Self-deletion is always refused.
func (s *Service) Delete(ctx context.Context, id string) error {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return ErrPermissionDenied
	}
	target, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanDeleteUser(actor.Role, target.Role, target.ID, actor.UserID) {
		s.trail.Record(ctx, audit.TypeAccessDenied, map[string]any{
			"resource": "user_management",
			"action":   "delete_user",
			"user_id":  target.ID,
		})
		return ErrPermissionDenied
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.trail.Record(ctx, audit.TypeUserDeactivate, map[string]any{
		"user_id":  target.ID,
		"username": target.Username,
	})
	return nil
}

// ResetPassword restores the target user's password to their stored default.
func (s *Service) ResetPassword(ctx context.Context, id string) error {
	actor, ok := rbac.PrincipalFromContext(ctx)
	if !ok {
		return ErrPermissionDenied
	}
	target, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.HasPermission(rbac.PermResetPasswords) || !rbac.CanViewUser(actor.Role, target.Role) {
		s.trail.Record(ctx, audit.TypeAccessDenied, map[string]any{
			"resource": "user_management",
			"action":   "reset_password",
			"user_id":  target.ID,
		})
		return ErrPermissionDenied
	}
	if target.DefaultPasswordHash == "" {
		return fmt.Errorf("%w: no default password on record", ErrInvalidInput)
	}
	target.PasswordHash = target.DefaultPasswordHash
	if err := s.store.Update(ctx, target); err != nil {
		return err
	}
	s.trail.Record(ctx, audit.TypePasswordReset, map[string]any{"user_id": target.ID})
	return nil
}

// Authenticate verifies a credential/password pair and returns the matching
// user. Lookup misses and bad passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, credential, password string) (User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	user, err := s.store.FindByCredential(ctx, credential)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
