package usecase

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/helm/internal/domain"
)

type SubmitInput struct {
	Account      domain.Address
	Kind         domain.ContentKind
	ContentHash  common.Hash
	ScheduledFor *int64
}

type ContentUsecase struct {
	executor
	config domain.Config
}

func NewContentUsecase(config domain.Config, ledger Ledger, clock Clock, publisher EventPublisher, metrics Metrics) *ContentUsecase {
	return &ContentUsecase{
		executor: executor{ledger: ledger, clock: clock, publisher: publisher, metrics: metrics},
		config:   config,
	}
}

// Submit creates the content record for (account, caller, hash) and submits it for approval.
// A record already at that address is resubmitted when it is back in Draft; any other
// state collides.
func (uc *ContentUsecase) Submit(ctx context.Context, origin Origin, input SubmitInput) (domain.Content, error) {
	var content domain.Content
	err := uc.run(ctx, origin, domain.OpSubmit, func(ctx context.Context, tx LedgerTx, now int64) (applied, error) {
		account, err := tx.GetAccount(ctx, input.Account)
		if err != nil {
			return applied{}, err
		}
		admins, err := tx.GetMemberList(ctx, domain.AdminListAddress(account.ExternalID))
		if err != nil {
			return applied{}, err
		}
		// submission is gated on the admin list, not the creator list
		if err := domain.RequireAdmin(account, admins, origin.Caller); err != nil {
			return applied{}, err
		}
		if err := input.Kind.Validate(); err != nil {
			return applied{}, err
		}

		address := domain.ContentAddress(account.Address, origin.Caller, input.ContentHash)
		save := tx.SaveContent
		content, err = tx.GetContent(ctx, address)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			content, err = domain.NewContent(account.Address, origin.Caller, input.Kind, input.ContentHash, input.ScheduledFor, now)
			if err != nil {
				return applied{}, err
			}
			save = tx.CreateContent
		case err != nil:
			return applied{}, err
		case content.IsTerminal():
			return applied{}, domain.ErrContentInTerminalState
		case content.Status == domain.StatusDraft:
			if err := content.Revise(input.Kind, input.ScheduledFor, now); err != nil {
				return applied{}, err
			}
		}

		from := content.Status
		if err := content.Submit(origin.Caller, account.RequiredApprovals, now); err != nil {
			return applied{}, err
		}
		if err := save(ctx, content); err != nil {
			return applied{}, err
		}
		return applied{
			target:  content.Address,
			account: account.Address,
			content: content.Address,
			from:    from,
			to:      content.Status,
			hops:    content.Hops(),
		}, nil
	})
	return content, err
}

func (uc *ContentUsecase) Approve(ctx context.Context, origin Origin, account, content domain.Address) (domain.Content, error) {
	return uc.transition(ctx, origin, domain.OpApprove, account, content, func(c *domain.Content, acc domain.Account, now int64) error {
		return c.Approve(origin.Caller, acc.RequiredApprovals, now)
	})
}

func (uc *ContentUsecase) Reject(ctx context.Context, origin Origin, account, content domain.Address, reason string) (domain.Content, error) {
	return uc.transition(ctx, origin, domain.OpReject, account, content, func(c *domain.Content, _ domain.Account, now int64) error {
		return c.Reject(reason, now)
	})
}

func (uc *ContentUsecase) Cancel(ctx context.Context, origin Origin, account, content domain.Address) (domain.Content, error) {
	return uc.transition(ctx, origin, domain.OpCancel, account, content, func(c *domain.Content, _ domain.Account, now int64) error {
		return c.Cancel(now)
	})
}

// Retry sends Rejected or Failed content back to Draft. It is the one operation admitted on a
// terminal (Failed) record.
func (uc *ContentUsecase) Retry(ctx context.Context, origin Origin, account, content domain.Address) (domain.Content, error) {
	return uc.transition(ctx, origin, domain.OpRetry, account, content, func(c *domain.Content, _ domain.Account, now int64) error {
		return c.Retry(now)
	})
}

// Publish records the service authority's report that content went out.
func (uc *ContentUsecase) Publish(ctx context.Context, origin Origin, account, content domain.Address) (domain.Content, error) {
	return uc.transition(ctx, origin, domain.OpPublish, account, content, func(c *domain.Content, _ domain.Account, now int64) error {
		return c.Publish(now)
	})
}

func (uc *ContentUsecase) Fail(ctx context.Context, origin Origin, account, content domain.Address, reason string) (domain.Content, error) {
	return uc.transition(ctx, origin, domain.OpFail, account, content, func(c *domain.Content, _ domain.Account, now int64) error {
		return c.Fail(reason, now)
	})
}

// transition runs the gates shared by operations on an existing record: the record must
// belong to the account, the caller must pass the operation's gate, and terminal records
// only admit Retry.
func (uc *ContentUsecase) transition(
	ctx context.Context,
	origin Origin,
	op domain.OperationType,
	accountAddr, contentAddr domain.Address,
	apply func(c *domain.Content, account domain.Account, now int64) error,
) (domain.Content, error) {
	var content domain.Content
	err := uc.run(ctx, origin, op, func(ctx context.Context, tx LedgerTx, now int64) (applied, error) {
		account, admins, loaded, err := loadContentScope(ctx, tx, accountAddr, contentAddr)
		if err != nil {
			return applied{}, err
		}
		content = loaded

		if err := domain.RequireContentOf(account, content); err != nil {
			return applied{}, err
		}

		switch op {
		case domain.OpPublish, domain.OpFail:
			err = domain.RequireServiceAuthority(uc.config.ServiceAuthority, origin.Caller)
		default:
			err = domain.RequireAdmin(account, admins, origin.Caller)
		}
		if err != nil {
			return applied{}, err
		}

		if op != domain.OpRetry && content.IsTerminal() {
			return applied{}, domain.ErrContentInTerminalState
		}

		from := content.Status
		if err := apply(&content, account, now); err != nil {
			return applied{}, err
		}
		if err := tx.SaveContent(ctx, content); err != nil {
			return applied{}, err
		}
		return applied{
			target:  content.Address,
			account: account.Address,
			content: content.Address,
			from:    from,
			to:      content.Status,
			hops:    content.Hops(),
		}, nil
	})
	return content, err
}

func (uc *ContentUsecase) Get(ctx context.Context, address domain.Address) (domain.Content, error) {
	ctx, span := tracer.Start(ctx, "Usecase.GetContent")
	defer span.End()

	return uc.ledger.GetContent(ctx, address)
}

// ListByAccount lists an account's content, newest first. An empty status lists every status.
func (uc *ContentUsecase) ListByAccount(ctx context.Context, account domain.Address, status domain.Status, limit int) ([]domain.Content, error) {
	ctx, span := tracer.Start(ctx, "Usecase.ListContents")
	defer span.End()

	if status != "" && !status.Valid() {
		return nil, domain.ErrInvalidContentStatus.With("unknown status %q", status)
	}
	return uc.ledger.ListContents(ctx, account, status, limit)
}

// ListDue lists Approved content scheduled past the cursor and at or before until.
func (uc *ContentUsecase) ListDue(ctx context.Context, after DueCursor, until int64, limit int) ([]domain.Content, error) {
	ctx, span := tracer.Start(ctx, "Usecase.ListDue")
	defer span.End()

	return uc.ledger.ListDue(ctx, after, until, limit)
}
