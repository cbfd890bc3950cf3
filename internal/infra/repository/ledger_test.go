package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
	"github.com/totegamma/helm/internal/infra/database"
	"github.com/totegamma/helm/internal/usecase"
)

const testNow int64 = 1_700_000_000

func identity(n int) common.Address {
	return common.BytesToAddress([]byte{0xcc, byte(n)})
}

func newTestLedger(t *testing.T) *LedgerRepository {
	t.Helper()
	db, err := database.NewSqlite("")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewLedgerRepository(db)
}

func register(t *testing.T, ledger usecase.Ledger, owner common.Address, externalID string) domain.Registration {
	t.Helper()
	reg, err := domain.Register(owner, externalID, "helm", testNow)
	require.NoError(t, err)
	err = ledger.Atomic(context.Background(), func(tx usecase.LedgerTx) error {
		return tx.CreateRegistration(context.Background(), reg)
	})
	require.NoError(t, err)
	return reg
}

func TestLedgerRegistration(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	reg := register(t, ledger, identity(0), "42")

	account, err := ledger.GetAccount(ctx, reg.Account.Address)
	require.NoError(t, err)
	assert.Equal(t, reg.Account, account)

	admins, err := ledger.GetMemberList(ctx, reg.Admins.Address)
	require.NoError(t, err)
	assert.Equal(t, domain.AdminList, admins.Kind)
	assert.Equal(t, []common.Address{identity(0)}, admins.Members)
	assert.Equal(t, identity(0), admins.Authority)

	creators, err := ledger.GetMemberList(ctx, reg.Creators.Address)
	require.NoError(t, err)
	assert.Empty(t, creators.Members)

	again, err := domain.Register(identity(1), "42", "other", testNow)
	require.NoError(t, err)
	err = ledger.Atomic(ctx, func(tx usecase.LedgerTx) error {
		return tx.CreateRegistration(ctx, again)
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
}

func TestLedgerNotFound(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.GetAccount(ctx, domain.AccountAddress("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = ledger.GetMemberList(ctx, domain.AdminListAddress("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = ledger.GetContent(ctx, domain.AccountAddress("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerContentRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	reg := register(t, ledger, identity(0), "42")

	scheduled := testNow + 3600
	content, err := domain.NewContent(reg.Account.Address, identity(0), domain.ContentKind{Type: domain.ContentTypeThread, TweetCount: 3}, common.HexToHash("0x01"), &scheduled, testNow)
	require.NoError(t, err)
	require.NoError(t, content.Submit(identity(0), 2, testNow))
	require.NoError(t, content.Reject("off brand", testNow+1))

	err = ledger.Atomic(ctx, func(tx usecase.LedgerTx) error {
		return tx.SaveContent(ctx, content)
	})
	require.NoError(t, err)

	got, err := ledger.GetContent(ctx, content.Address)
	require.NoError(t, err)
	assert.Equal(t, content.Clone(), got)

	require.NoError(t, got.Retry(testNow+2))
	err = ledger.Atomic(ctx, func(tx usecase.LedgerTx) error {
		return tx.SaveContent(ctx, got)
	})
	require.NoError(t, err)

	again, err := ledger.GetContent(ctx, content.Address)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, again.Status)
	assert.Nil(t, again.RejectionReason)
	assert.Empty(t, again.Approvals)
}

func TestLedgerCreateContentRefusesExisting(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	reg := register(t, ledger, identity(0), "42")

	build := func() domain.Content {
		c, err := domain.NewContent(reg.Account.Address, identity(0), domain.ContentKind{Type: domain.ContentTypeTweet}, common.HexToHash("0x01"), nil, testNow)
		require.NoError(t, err)
		require.NoError(t, c.Submit(identity(0), 2, testNow))
		return c
	}

	first := build()
	err := ledger.Atomic(ctx, func(tx usecase.LedgerTx) error { return tx.CreateContent(ctx, first) })
	require.NoError(t, err)

	err = ledger.Atomic(ctx, func(tx usecase.LedgerTx) error {
		c, err := tx.GetContent(ctx, first.Address)
		if err != nil {
			return err
		}
		if err := c.Approve(identity(1), 2, testNow+1); err != nil {
			return err
		}
		return tx.SaveContent(ctx, c)
	})
	require.NoError(t, err)

	second := build()
	err = ledger.Atomic(ctx, func(tx usecase.LedgerTx) error { return tx.CreateContent(ctx, second) })
	assert.ErrorIs(t, err, domain.ErrContentExists)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	stored, err := ledger.GetContent(ctx, first.Address)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.Equal(t, []common.Address{identity(0), identity(1)}, stored.Approvals)
}

func TestLedgerAtomicRollsBack(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	reg := register(t, ledger, identity(0), "42")

	boom := errors.New("boom")
	err := ledger.Atomic(ctx, func(tx usecase.LedgerTx) error {
		account, err := tx.GetAccount(ctx, reg.Account.Address)
		if err != nil {
			return err
		}
		account.IsVerified = true
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	account, err := ledger.GetAccount(ctx, reg.Account.Address)
	require.NoError(t, err)
	assert.False(t, account.IsVerified)
}

func TestLedgerCommitLogRejectsDuplicates(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	entry := usecase.CommitEntry{
		ID:        "abc",
		Operation: domain.OpVerify,
		Signer:    identity(0),
		Target:    domain.AccountAddress("42"),
		Document:  "{}",
		Proof:     helm.Proof{Type: helm.ProofTypeSecp256k1, Signature: "00"},
		CreatedAt: testNow,
	}
	appendCommit := func() error {
		return ledger.Atomic(ctx, func(tx usecase.LedgerTx) error {
			return tx.AppendCommit(ctx, entry)
		})
	}
	require.NoError(t, appendCommit())
	assert.ErrorIs(t, appendCommit(), domain.ErrReplayedDocument)
}

func TestLedgerListings(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	reg := register(t, ledger, identity(0), "42")
	other := register(t, ledger, identity(1), "43")

	save := func(account domain.Address, n int, scheduled *int64, approve bool) domain.Content {
		c, err := domain.NewContent(account, identity(0), domain.ContentKind{Type: domain.ContentTypeTweet}, common.BytesToHash([]byte{byte(n + 1)}), scheduled, testNow+int64(n))
		require.NoError(t, err)
		if approve {
			require.NoError(t, c.Submit(identity(0), 1, testNow+int64(n)))
		}
		err = ledger.Atomic(ctx, func(tx usecase.LedgerTx) error { return tx.SaveContent(ctx, c) })
		require.NoError(t, err)
		return c
	}

	early, late := testNow+600, testNow+7200
	first := save(reg.Account.Address, 0, &late, true)
	save(reg.Account.Address, 1, &early, true)
	draft := save(reg.Account.Address, 2, nil, false)
	save(other.Account.Address, 3, &early, true)

	all, err := ledger.ListContents(ctx, reg.Account.Address, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, draft.Address, all[0].Address)

	approved, err := ledger.ListContents(ctx, reg.Account.Address, domain.StatusApproved, 10)
	require.NoError(t, err)
	assert.Len(t, approved, 2)

	limited, err := ledger.ListContents(ctx, reg.Account.Address, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	due, err := ledger.ListDue(ctx, usecase.DueCursor{}, testNow+3600, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	for _, c := range due {
		assert.Equal(t, early, *c.ScheduledFor)
	}

	due, err = ledger.ListDue(ctx, usecase.DueCursor{}, late, 10)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, first.Address, due[2].Address)

	var cursor usecase.DueCursor
	var paged []domain.Address
	for range 4 {
		page, err := ledger.ListDue(ctx, cursor, late, 1)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		paged = append(paged, page[0].Address)
		cursor = cursor.Next(page[0])
	}
	require.Len(t, paged, 3)
	for i := range due {
		assert.Equal(t, due[i].Address, paged[i])
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, event helm.Event) error { return nil }

type nopMetrics struct{}

func (nopMetrics) Operation(op domain.OperationType, err error) {}
func (nopMetrics) Transition(from, to domain.Status)             {}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Unix(testNow, 0) }

// Concurrent approvals against the sql ledger must neither lose nor double count a vote.
func TestLedgerConcurrentApprovals(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	owner := identity(0)

	accounts := usecase.NewAccountUsecase(ledger, fixedClock{}, nopPublisher{}, nopMetrics{})
	members := usecase.NewMembershipUsecase(ledger, fixedClock{}, nopPublisher{}, nopMetrics{})
	contents := usecase.NewContentUsecase(domain.Config{}, ledger, fixedClock{}, nopPublisher{}, nopMetrics{})

	reg, err := accounts.Register(ctx, usecase.Origin{Caller: owner}, "42", "helm")
	require.NoError(t, err)
	_, err = accounts.Verify(ctx, usecase.Origin{Caller: owner}, reg.Account.Address)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		_, err := members.AddAdmin(ctx, usecase.Origin{Caller: owner}, reg.Account.Address, identity(i))
		require.NoError(t, err)
	}
	_, err = accounts.UpdateRequiredApprovals(ctx, usecase.Origin{Caller: owner}, reg.Account.Address, 6)
	require.NoError(t, err)

	content, err := contents.Submit(ctx, usecase.Origin{Caller: owner}, usecase.SubmitInput{
		Account:     reg.Account.Address,
		Kind:        domain.ContentKind{Type: domain.ContentTypeTweet},
		ContentHash: common.HexToHash("0x02"),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := contents.Approve(ctx, usecase.Origin{Caller: identity(i)}, reg.Account.Address, content.Address)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := ledger.GetContent(ctx, content.Address)
	require.NoError(t, err)
	assert.Len(t, got.Approvals, 6)
	assert.Equal(t, domain.StatusApproved, got.Status)
}
