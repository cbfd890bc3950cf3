package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/helm/internal/domain"
)

type MembershipUsecase struct {
	executor
}

func NewMembershipUsecase(ledger Ledger, clock Clock, publisher EventPublisher, metrics Metrics) *MembershipUsecase {
	return &MembershipUsecase{executor{ledger: ledger, clock: clock, publisher: publisher, metrics: metrics}}
}

func (uc *MembershipUsecase) AddAdmin(ctx context.Context, origin Origin, account domain.Address, member common.Address) (domain.MemberList, error) {
	return uc.mutate(ctx, origin, domain.OpAddAdmin, account, domain.AdminList, func(list *domain.MemberList, _ domain.Account) error {
		return list.Add(member)
	})
}

func (uc *MembershipUsecase) RemoveAdmin(ctx context.Context, origin Origin, account domain.Address, member common.Address) (domain.MemberList, error) {
	return uc.mutate(ctx, origin, domain.OpRemoveAdmin, account, domain.AdminList, func(list *domain.MemberList, acc domain.Account) error {
		return list.Remove(member, acc.Owner)
	})
}

func (uc *MembershipUsecase) AddCreator(ctx context.Context, origin Origin, account domain.Address, member common.Address) (domain.MemberList, error) {
	return uc.mutate(ctx, origin, domain.OpAddCreator, account, domain.CreatorList, func(list *domain.MemberList, _ domain.Account) error {
		return list.Add(member)
	})
}

func (uc *MembershipUsecase) RemoveCreator(ctx context.Context, origin Origin, account domain.Address, member common.Address) (domain.MemberList, error) {
	return uc.mutate(ctx, origin, domain.OpRemoveCreator, account, domain.CreatorList, func(list *domain.MemberList, acc domain.Account) error {
		return list.Remove(member, acc.Owner)
	})
}

// mutate applies one incremental edit to a list. Only the live account owner of a verified
// account may edit either list.
func (uc *MembershipUsecase) mutate(
	ctx context.Context,
	origin Origin,
	op domain.OperationType,
	accountAddr domain.Address,
	kind domain.ListKind,
	edit func(list *domain.MemberList, account domain.Account) error,
) (domain.MemberList, error) {
	var list domain.MemberList
	err := uc.run(ctx, origin, op, func(ctx context.Context, tx LedgerTx, now int64) (applied, error) {
		account, err := tx.GetAccount(ctx, accountAddr)
		if err != nil {
			return applied{}, err
		}
		if err := domain.RequireOwnerVerified(account, origin.Caller); err != nil {
			return applied{}, err
		}

		list, err = tx.GetMemberList(ctx, listAddress(account, kind))
		if err != nil {
			return applied{}, err
		}
		if err := edit(&list, account); err != nil {
			return applied{}, err
		}
		if err := tx.SaveMemberList(ctx, list); err != nil {
			return applied{}, err
		}
		return applied{target: list.Address, account: account.Address}, nil
	})
	return list, err
}

func (uc *MembershipUsecase) Get(ctx context.Context, accountAddr domain.Address, kind domain.ListKind) (domain.MemberList, error) {
	ctx, span := tracer.Start(ctx, "Usecase.GetMemberList")
	defer span.End()

	account, err := uc.ledger.GetAccount(ctx, accountAddr)
	if err != nil {
		return domain.MemberList{}, err
	}
	return uc.ledger.GetMemberList(ctx, listAddress(account, kind))
}

func listAddress(account domain.Account, kind domain.ListKind) domain.Address {
	if kind == domain.AdminList {
		return domain.AdminListAddress(account.ExternalID)
	}
	return domain.CreatorListAddress(account.ExternalID)
}
