package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bym-inventory/bym-inventory/internal/shared"
)

type memoryRepo struct {
	users    map[string]*User
	sessions map[string]int64
}

func newMemoryAuthRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]*User), sessions: make(map[string]int64)}
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if u, ok := r.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	r.sessions[id] = userID
	return nil
}

func (r *memoryRepo) DeleteSession(ctx context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

type captureMailer struct {
	sent []string
	to   []string
}

func (m *captureMailer) SendOTP(ctx context.Context, to, code string) error {
	m.to = append(m.to, to)
	m.sent = append(m.sent, code)
	return nil
}

func newTestAuthService(t *testing.T, repo Repository, mailer Mailer) *Service {
	t.Helper()
	store, _ := newTestOTPStore(t, 5)
	return NewService(repo, store, mailer)
}

func TestStartLoginDeliversCodeForActiveUser(t *testing.T) {
	repo := newMemoryAuthRepo()
	repo.users["admin@bym.local"] = &User{ID: 1, Email: "admin@bym.local", Role: RoleAdmin, IsActive: true}
	mailer := &captureMailer{}
	svc := newTestAuthService(t, repo, mailer)

	require.NoError(t, svc.StartLogin(context.Background(), "admin@bym.local"))
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "admin@bym.local", mailer.to[0])
	require.Len(t, mailer.sent[0], 6)
}

func TestStartLoginUnknownEmailDoesNotLeak(t *testing.T) {
	mailer := &captureMailer{}
	svc := newTestAuthService(t, newMemoryAuthRepo(), mailer)

	// same success response as the known-email path
	require.NoError(t, svc.StartLogin(context.Background(), "nobody@bym.local"))
	require.Empty(t, mailer.sent)
}

func TestStartLoginInactiveAccountGetsNoCode(t *testing.T) {
	repo := newMemoryAuthRepo()
	repo.users["gone@bym.local"] = &User{ID: 2, Email: "gone@bym.local", Role: RoleViewer, IsActive: false}
	mailer := &captureMailer{}
	svc := newTestAuthService(t, repo, mailer)

	require.NoError(t, svc.StartLogin(context.Background(), "gone@bym.local"))
	require.Empty(t, mailer.sent)
}

func TestVerifyLoginRoundTrip(t *testing.T) {
	repo := newMemoryAuthRepo()
	repo.users["admin@bym.local"] = &User{ID: 1, Email: "admin@bym.local", Role: RoleAdmin, IsActive: true}
	mailer := &captureMailer{}
	svc := newTestAuthService(t, repo, mailer)
	ctx := context.Background()

	require.NoError(t, svc.StartLogin(ctx, "admin@bym.local"))
	user, err := svc.VerifyLogin(ctx, "admin@bym.local", mailer.sent[0])
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
	require.Equal(t, RoleAdmin, user.Role)
}

func TestVerifyLoginWrongCode(t *testing.T) {
	repo := newMemoryAuthRepo()
	repo.users["admin@bym.local"] = &User{ID: 1, Email: "admin@bym.local", Role: RoleAdmin, IsActive: true}
	mailer := &captureMailer{}
	svc := newTestAuthService(t, repo, mailer)
	ctx := context.Background()

	require.NoError(t, svc.StartLogin(ctx, "admin@bym.local"))
	wrong := "000000"
	if wrong == mailer.sent[0] {
		wrong = "000001"
	}
	_, err := svc.VerifyLogin(ctx, "admin@bym.local", wrong)
	require.Equal(t, shared.KindAuth, shared.KindOf(err))
}

func TestVerifyLoginUnknownEmail(t *testing.T) {
	svc := newTestAuthService(t, newMemoryAuthRepo(), &captureMailer{})
	_, err := svc.VerifyLogin(context.Background(), "nobody@bym.local", "123456")
	require.Equal(t, shared.KindAuth, shared.KindOf(err))
}

func TestRoleValid(t *testing.T) {
	require.True(t, RoleViewer.Valid())
	require.True(t, RoleAdmin.Valid())
	require.True(t, RoleSuperadmin.Valid())
	require.False(t, Role("root").Valid())
}
