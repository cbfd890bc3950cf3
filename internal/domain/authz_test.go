package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestRequireAdmin(t *testing.T) {
	reg, err := Register(identity(0), "12345", "helm", testNow)
	require.NoError(t, err)
	account, admins := reg.Account, reg.Admins

	require.ErrorIs(t, RequireAdmin(account, admins, identity(0)), ErrNotVerified)

	require.NoError(t, account.Verify())
	require.NoError(t, RequireAdmin(account, admins, identity(0)))
	require.ErrorIs(t, RequireAdmin(account, admins, identity(1)), ErrUnauthorized)

	other, err := Register(identity(0), "999", "other", testNow)
	require.NoError(t, err)
	require.ErrorIs(t, RequireAdmin(account, other.Admins, identity(0)), ErrInvalidAccount)
	require.ErrorIs(t, RequireAdmin(account, reg.Creators, identity(0)), ErrInvalidAccount)
}

func TestRequireOwnerVerified(t *testing.T) {
	account := testAccount(t)

	require.ErrorIs(t, RequireOwnerVerified(account, identity(1)), ErrUnauthorized)
	require.ErrorIs(t, RequireOwnerVerified(account, identity(0)), ErrNotVerified)

	account.IsVerified = true
	require.NoError(t, RequireOwnerVerified(account, identity(0)))
	require.ErrorIs(t, RequireOwnerVerified(account, identity(1)), ErrUnauthorized)
}

func TestRequireContentOf(t *testing.T) {
	account := testAccount(t)
	c, err := NewContent(account.Address, identity(0), ContentKind{Type: ContentTypeTweet}, common.HexToHash("0x01"), nil, testNow)
	require.NoError(t, err)
	require.NoError(t, RequireContentOf(account, c))

	c.Account = AccountAddress("777")
	require.ErrorIs(t, RequireContentOf(account, c), ErrInvalidAccount)
}

func TestRequireServiceAuthority(t *testing.T) {
	require.NoError(t, RequireServiceAuthority(identity(9), identity(9)))
	require.ErrorIs(t, RequireServiceAuthority(identity(9), identity(1)), ErrUnauthorized)
	require.ErrorIs(t, RequireServiceAuthority(common.Address{}, common.Address{}), ErrUnauthorized)
}
