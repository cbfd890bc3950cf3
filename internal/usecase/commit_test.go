package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
)

// mockVerifier trusts the signer named inside the document.
type mockVerifier struct {
	err error
}

func (v mockVerifier) Verify(ctx context.Context, sd helm.SignedDocument) (common.Address, error) {
	if v.err != nil {
		return common.Address{}, v.err
	}
	var doc helm.Document[json.RawMessage]
	if err := json.Unmarshal([]byte(sd.Document), &doc); err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(doc.Signer), nil
}

func signed[T any](t *testing.T, signer common.Address, op domain.OperationType, body T) helm.SignedDocument {
	t.Helper()
	raw, err := json.Marshal(helm.Document[T]{
		Type:     string(op),
		Signer:   signer.Hex(),
		Body:     body,
		SignedAt: testNow,
	})
	if err != nil {
		t.Fatal(err)
	}
	return helm.SignedDocument{
		Document: string(raw),
		Proof:    helm.Proof{Type: helm.ProofTypeSecp256k1, Signature: "00"},
	}
}

func newCommitUsecase(e *env, verifier DocumentVerifier) *CommitUsecase {
	return NewCommitUsecase(verifier, e.account, e.membership, e.content)
}

func TestCommitLifecycle(t *testing.T) {
	e := newEnv()
	uc := newCommitUsecase(e, mockVerifier{})
	ctx := context.Background()
	owner, admin := identity(0), identity(1)

	result, err := uc.Commit(ctx, signed(t, owner, domain.OpRegister, helm.RegisterBody{ExternalID: "42", Handle: "helm"}))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	account := result.Address
	if account != domain.AccountAddress("42").String() {
		t.Fatalf("unexpected account address %s", account)
	}

	steps := []helm.SignedDocument{
		signed(t, owner, domain.OpVerify, helm.AccountBody{Account: account}),
		signed(t, owner, domain.OpAddAdmin, helm.MemberBody{Account: account, Member: admin.Hex()}),
		signed(t, owner, domain.OpAddCreator, helm.MemberBody{Account: account, Member: identity(2).Hex()}),
		signed(t, owner, domain.OpUpdateRequiredApprovals, helm.RequiredApprovalsBody{Account: account, RequiredApprovals: 2}),
	}
	for _, sd := range steps {
		if _, err := uc.Commit(ctx, sd); err != nil {
			t.Fatalf("commit failed: %v", err)
		}
	}

	hash := common.HexToHash("0xabcdef").Hex()
	result, err = uc.Commit(ctx, signed(t, owner, domain.OpSubmit, helm.SubmitBody{
		Account:     account,
		Kind:        helm.ContentKind{Type: "tweet"},
		ContentHash: hash,
	}))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Status != string(domain.StatusPendingApproval) {
		t.Fatalf("expected pending, got %s", result.Status)
	}
	content := result.Address

	approve := signed(t, admin, domain.OpApprove, helm.ContentBody{Account: account, Content: content})
	result, err = uc.Commit(ctx, approve)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if result.Status != string(domain.StatusApproved) {
		t.Fatalf("expected approved, got %s", result.Status)
	}

	// approved content takes no more approvals
	_, err = uc.Commit(ctx, approve)
	if err == nil {
		t.Fatalf("expected replayed approval to fail")
	}

	result, err = uc.Commit(ctx, signed(t, testAuthority, domain.OpPublish, helm.ContentBody{Account: account, Content: content}))
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if result.Status != string(domain.StatusPublished) {
		t.Fatalf("expected published, got %s", result.Status)
	}

	if got := e.ledger.commitCount(); got != 8 {
		t.Fatalf("expected 8 commit log entries, got %d", got)
	}
}

func TestCommitReplayedDocumentIsRejectedByLedger(t *testing.T) {
	e := newEnv()
	uc := newCommitUsecase(e, mockVerifier{})
	ctx := context.Background()
	owner := identity(0)
	account := domain.AccountAddress("42").String()

	for _, sd := range []helm.SignedDocument{
		signed(t, owner, domain.OpRegister, helm.RegisterBody{ExternalID: "42", Handle: "helm"}),
		signed(t, owner, domain.OpVerify, helm.AccountBody{Account: account}),
	} {
		if _, err := uc.Commit(ctx, sd); err != nil {
			t.Fatal(err)
		}
	}

	add := signed(t, owner, domain.OpAddCreator, helm.MemberBody{Account: account, Member: identity(2).Hex()})
	remove := signed(t, owner, domain.OpRemoveCreator, helm.MemberBody{Account: account, Member: identity(2).Hex()})
	if _, err := uc.Commit(ctx, add); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.Commit(ctx, remove); err != nil {
		t.Fatal(err)
	}

	// the edit itself would apply again, the commit log refuses the same document
	_, err := uc.Commit(ctx, add)
	if !errors.Is(err, domain.ErrReplayedDocument) {
		t.Fatalf("expected ErrReplayedDocument, got %v", err)
	}

	creators, err := e.membership.Get(ctx, domain.AccountAddress("42"), domain.CreatorList)
	if err != nil {
		t.Fatal(err)
	}
	if len(creators.Members) != 0 {
		t.Fatalf("replayed add must roll back, got %v", creators.Members)
	}
}

func TestCommitRejectsMalformedDocuments(t *testing.T) {
	e := newEnv()
	uc := newCommitUsecase(e, mockVerifier{})
	ctx := context.Background()

	_, err := uc.Commit(ctx, signed(t, identity(0), "delete-everything", helm.AccountBody{}))
	if !errors.Is(err, domain.ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}

	_, err = uc.Commit(ctx, signed(t, identity(0), domain.OpVerify, helm.AccountBody{Account: "not-an-address"}))
	if !errors.Is(err, domain.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}

	_, err = uc.Commit(ctx, signed(t, identity(0), domain.OpAddAdmin, helm.MemberBody{
		Account: domain.AccountAddress("42").String(),
		Member:  "nobody",
	}))
	if !errors.Is(err, domain.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for member, got %v", err)
	}

	_, err = uc.Commit(ctx, signed(t, identity(0), domain.OpSubmit, helm.SubmitBody{
		Account:     domain.AccountAddress("42").String(),
		Kind:        helm.ContentKind{Type: "tweet"},
		ContentHash: "0x1234",
	}))
	if !errors.Is(err, domain.ErrInvalidContentHash) {
		t.Fatalf("expected ErrInvalidContentHash, got %v", err)
	}

	_, err = uc.Commit(ctx, signed(t, identity(0), domain.OpRegister, json.RawMessage(`"x"`)))
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}

	_, err = uc.Commit(ctx, helm.SignedDocument{Document: "{"})
	if err == nil {
		t.Fatalf("expected error for broken json")
	}
}

func TestCommitVerifierFailure(t *testing.T) {
	e := newEnv()
	uc := newCommitUsecase(e, mockVerifier{err: domain.ErrInvalidSignature})

	_, err := uc.Commit(context.Background(), signed(t, identity(0), domain.OpRegister, helm.RegisterBody{ExternalID: "42", Handle: "helm"}))
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if e.ledger.commitCount() != 0 {
		t.Fatalf("nothing may be written when verification fails")
	}
}
