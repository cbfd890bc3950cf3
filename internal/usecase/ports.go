package usecase

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
)

// LedgerReader looks records up by address. Missing records yield domain.NotFoundError.
type LedgerReader interface {
	GetAccount(ctx context.Context, address domain.Address) (domain.Account, error)
	GetMemberList(ctx context.Context, address domain.Address) (domain.MemberList, error)
	GetContent(ctx context.Context, address domain.Address) (domain.Content, error)
}

// LedgerTx is one atomic unit of work. Reads through a LedgerTx lock the record until commit.
type LedgerTx interface {
	LedgerReader
	CreateRegistration(ctx context.Context, reg domain.Registration) error
	SaveAccount(ctx context.Context, account domain.Account) error
	SaveMemberList(ctx context.Context, list domain.MemberList) error
	// CreateContent inserts a record that was not there when the transaction looked.
	// It fails with domain.ErrContentExists when another transaction got there first.
	CreateContent(ctx context.Context, content domain.Content) error
	// SaveContent overwrites a record loaded in the same transaction.
	SaveContent(ctx context.Context, content domain.Content) error
	AppendCommit(ctx context.Context, entry CommitEntry) error
}

// Ledger is the shared record store.
type Ledger interface {
	LedgerReader
	ListContents(ctx context.Context, account domain.Address, status domain.Status, limit int) ([]domain.Content, error)
	// ListDue lists Approved content scheduled after the cursor and at or before until,
	// ordered by (ScheduledFor, Address).
	ListDue(ctx context.Context, after DueCursor, until int64, limit int) ([]domain.Content, error)
	// Atomic runs fn in a transaction. Nothing fn wrote is kept when it returns an error.
	Atomic(ctx context.Context, fn func(tx LedgerTx) error) error
}

// DueCursor is a position in the due listing. The zero cursor starts from the beginning.
type DueCursor struct {
	ScheduledFor int64
	Address      domain.Address
}

// Next returns the cursor just past c. Content without a schedule leaves the cursor as is.
func (d DueCursor) Next(c domain.Content) DueCursor {
	if c.ScheduledFor == nil {
		return d
	}
	return DueCursor{ScheduledFor: *c.ScheduledFor, Address: c.Address}
}

// CommitEntry is the audit record of an applied signed operation.
type CommitEntry struct {
	ID        string
	Operation domain.OperationType
	Signer    common.Address
	Target    domain.Address
	Document  string
	Proof     helm.Proof
	CreatedAt int64
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// EventPublisher fans lifecycle events out after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event helm.Event) error
}

type Metrics interface {
	Operation(op domain.OperationType, err error)
	Transition(from, to domain.Status)
}

// DocumentVerifier authenticates a signed document and returns its signer.
type DocumentVerifier interface {
	Verify(ctx context.Context, sd helm.SignedDocument) (common.Address, error)
}
