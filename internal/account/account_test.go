package account

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	_, err := s.Session()
	require.ErrorIs(t, err, ErrNotLoggedIn)

	require.ErrorIs(t, s.Login(Credentials{AppleID: "dev@example.com"}), ErrInvalidCredentials)

	creds := Credentials{AppleID: "dev@example.com", Password: "hunter2"}
	require.NoError(t, s.Login(creds))

	got, err := s.Session()
	require.NoError(t, err)
	assert.Equal(t, creds, *got)

	require.NoError(t, s.Logout())
	_, err = s.Session()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.ErrorIs(t, s.Logout(), ErrNotLoggedIn)
}

func TestCredentials_Redacted(t *testing.T) {
	assert.Equal(t, "d***@example.com", Credentials{AppleID: "dev@example.com"}.Redacted())
	assert.Equal(t, "***", Credentials{AppleID: "nope"}.Redacted())
}
