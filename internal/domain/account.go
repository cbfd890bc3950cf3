package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// Account binds an external social identity to its owner, verification flag and approval threshold.
type Account struct {
	Address           Address        `json:"address"`
	Owner             common.Address `json:"owner"`
	ExternalID        string         `json:"externalId"`
	Handle            string         `json:"handle"`
	RequiredApprovals int            `json:"requiredApprovals"`
	IsVerified        bool           `json:"isVerified"`
	CreatedAt         int64          `json:"createdAt"`
}

// Registration is the result of bootstrapping an account: the account and its two lists.
type Registration struct {
	Account  Account    `json:"account"`
	Admins   MemberList `json:"admins"`
	Creators MemberList `json:"creators"`
}

// Register validates the external identity and builds the account, an admin list seeded with
// the owner and an empty creator list.
func Register(owner common.Address, externalID, handle string, now int64) (Registration, error) {
	if err := ValidateExternalID(externalID); err != nil {
		return Registration{}, err
	}
	if err := ValidateHandle(handle); err != nil {
		return Registration{}, err
	}

	account := Account{
		Address:           AccountAddress(externalID),
		Owner:             owner,
		ExternalID:        externalID,
		Handle:            handle,
		RequiredApprovals: DefaultRequiredApprovals,
		IsVerified:        false,
		CreatedAt:         now,
	}

	return Registration{
		Account:  account,
		Admins:   NewAdminList(account),
		Creators: NewCreatorList(account),
	}, nil
}

func ValidateExternalID(id string) error {
	if id == "" || len(id) > MaxExternalIDLength {
		return ErrInvalidExternalID
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return ErrInvalidExternalID
		}
	}
	return nil
}

func ValidateHandle(handle string) error {
	if handle == "" || len(handle) > MaxHandleLength {
		return ErrInvalidHandle
	}
	for i := 0; i < len(handle); i++ {
		c := handle[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return ErrInvalidHandle
		}
	}
	return nil
}

// Verify records the externally asserted verification outcome.
func (a *Account) Verify() error {
	if a.IsVerified {
		return ErrAlreadyVerified
	}
	a.IsVerified = true
	return nil
}

func (a *Account) UpdateRequiredApprovals(n int) error {
	if n < MinRequiredApprovals || n > MaxRequiredApprovals {
		return ErrInvalidRequiredApprovals.With("%d not in [%d, %d]", n, MinRequiredApprovals, MaxRequiredApprovals)
	}
	a.RequiredApprovals = n
	return nil
}
