package usecase

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
)

var tracer = otel.Tracer("usecase")

// Origin is the authenticated caller of an operation and, when it arrived as a signed
// document, that document.
type Origin struct {
	Caller   common.Address
	Document *helm.SignedDocument
}

// applied describes what an operation changed. It becomes the published event.
type applied struct {
	target  domain.Address
	account domain.Address
	content domain.Address
	from    domain.Status
	to      domain.Status
	hops    []domain.StatusChange
}

type executor struct {
	ledger    Ledger
	clock     Clock
	publisher EventPublisher
	metrics   Metrics
}

// run executes fn against a single clock reading inside one ledger transaction, appends the
// commit log entry in the same transaction, and only then records metrics and publishes.
func (e *executor) run(
	ctx context.Context,
	origin Origin,
	op domain.OperationType,
	fn func(ctx context.Context, tx LedgerTx, now int64) (applied, error),
) error {
	ctx, span := tracer.Start(ctx, "Usecase."+string(op), trace.WithAttributes(
		attribute.String("caller", origin.Caller.Hex()),
	))
	defer span.End()

	now := e.clock.Now().Unix()

	var result applied
	err := e.ledger.Atomic(ctx, func(tx LedgerTx) error {
		var err error
		result, err = fn(ctx, tx, now)
		if err != nil {
			return err
		}
		if origin.Document == nil {
			return nil
		}
		return tx.AppendCommit(ctx, CommitEntry{
			ID:        CommitID(*origin.Document),
			Operation: op,
			Signer:    origin.Caller,
			Target:    result.target,
			Document:  origin.Document.Document,
			Proof:     origin.Document.Proof,
			CreatedAt: now,
		})
	})

	e.metrics.Operation(op, err)
	if err != nil {
		span.RecordError(err)
		return err
	}

	for _, hop := range result.hops {
		e.metrics.Transition(hop.From, hop.To)
	}

	event := helm.Event{
		Type:      string(op),
		Account:   result.account.String(),
		Content:   result.content.String(),
		Status:    string(result.to),
		Actor:     origin.Caller.Hex(),
		Timestamp: now,
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(
			ctx, "failed to publish event",
			slog.String("error", err.Error()),
			slog.String("operation", string(op)),
			slog.String("module", "usecase"),
		)
	}

	return nil
}

// CommitID is the hex keccak256 of the signed document body.
func CommitID(sd helm.SignedDocument) string {
	return hex.EncodeToString(helm.GetHash([]byte(sd.Document)))
}

// loadContentScope loads a content record together with its account and admin list.
func loadContentScope(ctx context.Context, tx LedgerTx, accountAddr, contentAddr domain.Address) (domain.Account, domain.MemberList, domain.Content, error) {
	account, err := tx.GetAccount(ctx, accountAddr)
	if err != nil {
		return domain.Account{}, domain.MemberList{}, domain.Content{}, err
	}
	admins, err := tx.GetMemberList(ctx, domain.AdminListAddress(account.ExternalID))
	if err != nil {
		return domain.Account{}, domain.MemberList{}, domain.Content{}, err
	}
	content, err := tx.GetContent(ctx, contentAddr)
	if err != nil {
		return domain.Account{}, domain.MemberList{}, domain.Content{}, err
	}
	return account, admins, content, nil
}
