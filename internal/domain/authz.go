package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

func RequireVerified(account Account) error {
	if !account.IsVerified {
		return ErrNotVerified.With("%s", account.Address)
	}
	return nil
}

func RequireOwner(account Account, caller common.Address) error {
	if account.Owner != caller {
		return ErrUnauthorized.With("%s is not the owner of %s", caller.Hex(), account.Address)
	}
	return nil
}

func RequireMember(list MemberList, caller common.Address) error {
	if !list.Contains(caller) {
		return ErrUnauthorized.With("%s is not in the %s list", caller.Hex(), list.Kind)
	}
	return nil
}

// RequireOwnerVerified gates owner-only mutations: list edits and threshold changes.
func RequireOwnerVerified(account Account, caller common.Address) error {
	if err := RequireOwner(account, caller); err != nil {
		return err
	}
	return RequireVerified(account)
}

// RequireAdmin gates content operations. The list must belong to the account.
func RequireAdmin(account Account, admins MemberList, caller common.Address) error {
	if admins.Kind != AdminList || admins.Account != account.Address {
		return ErrInvalidAccount.With("admin list %s does not belong to %s", admins.Address, account.Address)
	}
	if err := RequireVerified(account); err != nil {
		return err
	}
	return RequireMember(admins, caller)
}

// RequireContentOf checks a content record is addressed under account.
func RequireContentOf(account Account, content Content) error {
	if content.Account != account.Address {
		return ErrInvalidAccount.With("content %s does not belong to %s", content.Address, account.Address)
	}
	return nil
}

func RequireServiceAuthority(authority, caller common.Address) error {
	if authority == (common.Address{}) || authority != caller {
		return ErrUnauthorized.With("%s is not the service authority", caller.Hex())
	}
	return nil
}
