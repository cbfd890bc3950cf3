package domain

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

type ListKind string

const (
	AdminList   ListKind = "admin"
	CreatorList ListKind = "creator"
)

// MemberList is a bounded ordered set of identities. Authority is the owner at creation time
// and is kept as a snapshot; authorization always checks the live Account.Owner.
type MemberList struct {
	Address   Address          `json:"address"`
	Kind      ListKind         `json:"kind"`
	Account   Address          `json:"account"`
	Members   []common.Address `json:"members"`
	Authority common.Address   `json:"authority"`
}

func NewAdminList(account Account) MemberList {
	members := make([]common.Address, 0, MaxAdmins)
	members = append(members, account.Owner)
	return MemberList{
		Address:   AdminListAddress(account.ExternalID),
		Kind:      AdminList,
		Account:   account.Address,
		Members:   members,
		Authority: account.Owner,
	}
}

func NewCreatorList(account Account) MemberList {
	return MemberList{
		Address:   CreatorListAddress(account.ExternalID),
		Kind:      CreatorList,
		Account:   account.Address,
		Members:   make([]common.Address, 0, MaxCreators),
		Authority: account.Owner,
	}
}

func (l MemberList) Capacity() int {
	if l.Kind == AdminList {
		return MaxAdmins
	}
	return MaxCreators
}

func (l MemberList) Contains(id common.Address) bool {
	return slices.Contains(l.Members, id)
}

func (l MemberList) Clone() MemberList {
	l.Members = slices.Clone(l.Members)
	return l
}

func (l *MemberList) Add(member common.Address) error {
	if l.Contains(member) {
		return ErrAlreadyExists.With("%s", member.Hex())
	}
	if len(l.Members) >= l.Capacity() {
		return ErrCapacityExceeded.With("%s list holds %d", l.Kind, l.Capacity())
	}
	l.Members = append(l.Members, member)
	return nil
}

// Remove deletes member. Admin lists never become empty and never drop the last entry
// equal to owner.
func (l *MemberList) Remove(member, owner common.Address) error {
	if !l.Contains(member) {
		return ErrDoesNotExist.With("%s", member.Hex())
	}

	if l.Kind == AdminList {
		if len(l.Members) <= 1 {
			return ErrCannotRemoveLast
		}
		if member == owner {
			entries := 0
			for _, m := range l.Members {
				if m == owner {
					entries++
				}
			}
			if entries < 2 {
				return ErrCannotRemoveLast.With("owner must stay an admin")
			}
		}
	}

	l.Members = slices.DeleteFunc(l.Members, func(m common.Address) bool {
		return m == member
	})
	return nil
}
