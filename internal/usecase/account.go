package usecase

import (
	"context"

	"github.com/totegamma/helm/internal/domain"
)

type AccountUsecase struct {
	executor
}

func NewAccountUsecase(ledger Ledger, clock Clock, publisher EventPublisher, metrics Metrics) *AccountUsecase {
	return &AccountUsecase{executor{ledger: ledger, clock: clock, publisher: publisher, metrics: metrics}}
}

// Register creates the account and both member lists in one transaction.
func (uc *AccountUsecase) Register(ctx context.Context, origin Origin, externalID, handle string) (domain.Registration, error) {
	var reg domain.Registration
	err := uc.run(ctx, origin, domain.OpRegister, func(ctx context.Context, tx LedgerTx, now int64) (applied, error) {
		var err error
		reg, err = domain.Register(origin.Caller, externalID, handle, now)
		if err != nil {
			return applied{}, err
		}
		if err := tx.CreateRegistration(ctx, reg); err != nil {
			return applied{}, err
		}
		return applied{target: reg.Account.Address, account: reg.Account.Address}, nil
	})
	return reg, err
}

func (uc *AccountUsecase) Verify(ctx context.Context, origin Origin, address domain.Address) (domain.Account, error) {
	var account domain.Account
	err := uc.run(ctx, origin, domain.OpVerify, func(ctx context.Context, tx LedgerTx, now int64) (applied, error) {
		var err error
		account, err = tx.GetAccount(ctx, address)
		if err != nil {
			return applied{}, err
		}
		if err := domain.RequireOwner(account, origin.Caller); err != nil {
			return applied{}, err
		}
		if err := account.Verify(); err != nil {
			return applied{}, err
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return applied{}, err
		}
		return applied{target: account.Address, account: account.Address}, nil
	})
	return account, err
}

func (uc *AccountUsecase) UpdateRequiredApprovals(ctx context.Context, origin Origin, address domain.Address, required int) (domain.Account, error) {
	var account domain.Account
	err := uc.run(ctx, origin, domain.OpUpdateRequiredApprovals, func(ctx context.Context, tx LedgerTx, now int64) (applied, error) {
		var err error
		account, err = tx.GetAccount(ctx, address)
		if err != nil {
			return applied{}, err
		}
		if err := domain.RequireOwnerVerified(account, origin.Caller); err != nil {
			return applied{}, err
		}
		if err := account.UpdateRequiredApprovals(required); err != nil {
			return applied{}, err
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return applied{}, err
		}
		return applied{target: account.Address, account: account.Address}, nil
	})
	return account, err
}

func (uc *AccountUsecase) Get(ctx context.Context, address domain.Address) (domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Usecase.GetAccount")
	defer span.End()

	return uc.ledger.GetAccount(ctx, address)
}
