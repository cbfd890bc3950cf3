package repository

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/helm/internal/domain"
	"github.com/totegamma/helm/internal/infra/database/models"
)

func identitiesToStrings(ids []common.Address) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

func stringsToIdentities(ss []string) []common.Address {
	out := make([]common.Address, len(ss))
	for i, s := range ss {
		out[i] = common.HexToAddress(s)
	}
	return out
}

func accountToModel(a domain.Account) models.Account {
	return models.Account{
		Address:           a.Address.String(),
		Owner:             a.Owner.Hex(),
		ExternalID:        a.ExternalID,
		Handle:            a.Handle,
		RequiredApprovals: a.RequiredApprovals,
		IsVerified:        a.IsVerified,
		CreatedAt:         a.CreatedAt,
	}
}

func accountFromModel(m models.Account) domain.Account {
	return domain.Account{
		Address:           domain.Address(m.Address),
		Owner:             common.HexToAddress(m.Owner),
		ExternalID:        m.ExternalID,
		Handle:            m.Handle,
		RequiredApprovals: m.RequiredApprovals,
		IsVerified:        m.IsVerified,
		CreatedAt:         m.CreatedAt,
	}
}

func memberListToModel(l domain.MemberList) models.MemberList {
	return models.MemberList{
		Address:   l.Address.String(),
		Kind:      string(l.Kind),
		Account:   l.Account.String(),
		Members:   identitiesToStrings(l.Members),
		Authority: l.Authority.Hex(),
	}
}

func memberListFromModel(m models.MemberList) domain.MemberList {
	return domain.MemberList{
		Address:   domain.Address(m.Address),
		Kind:      domain.ListKind(m.Kind),
		Account:   domain.Address(m.Account),
		Members:   stringsToIdentities(m.Members),
		Authority: common.HexToAddress(m.Authority),
	}
}

func contentToModel(c domain.Content) models.Content {
	return models.Content{
		Address:         c.Address.String(),
		Account:         c.Account.String(),
		Author:          c.Author.Hex(),
		Kind:            string(c.Kind.Type),
		TweetCount:      c.Kind.TweetCount,
		ContentHash:     c.ContentHash.Hex(),
		ScheduledFor:    c.ScheduledFor,
		Status:          string(c.Status),
		Approvals:       identitiesToStrings(c.Approvals),
		RejectionReason: c.RejectionReason,
		FailureReason:   c.FailureReason,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func contentFromModel(m models.Content) domain.Content {
	return domain.Content{
		Address:         domain.Address(m.Address),
		Account:         domain.Address(m.Account),
		Author:          common.HexToAddress(m.Author),
		Kind:            domain.ContentKind{Type: domain.ContentType(m.Kind), TweetCount: m.TweetCount},
		ContentHash:     common.HexToHash(m.ContentHash),
		ScheduledFor:    m.ScheduledFor,
		Status:          domain.Status(m.Status),
		Approvals:       stringsToIdentities(m.Approvals),
		RejectionReason: m.RejectionReason,
		FailureReason:   m.FailureReason,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
