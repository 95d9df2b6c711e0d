package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureTokenIsStablePerSession(t *testing.T) {
	manager := NewCSRFManager("secret")
	sess := &Session{ID: "abc"}

	first, err := manager.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := manager.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestVerifyToken(t *testing.T) {
	manager := NewCSRFManager("secret")
	sess := &Session{ID: "abc"}
	token, err := manager.EnsureToken(context.Background(), sess)
	require.NoError(t, err)

	require.NoError(t, manager.VerifyToken(context.Background(), sess, token))
	require.ErrorIs(t, manager.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)
	require.ErrorIs(t, manager.VerifyToken(context.Background(), sess, "forged"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, manager.VerifyToken(context.Background(), nil, token), ErrCSRFTokenMissing)

	fresh := &Session{ID: "other"}
	require.ErrorIs(t, manager.VerifyToken(context.Background(), fresh, token), ErrCSRFTokenMissing)
}
