package usecase

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
)

// CommitUsecase authenticates a signed operation document and dispatches it.
type CommitUsecase struct {
	verifier   DocumentVerifier
	account    *AccountUsecase
	membership *MembershipUsecase
	content    *ContentUsecase
}

func NewCommitUsecase(
	verifier DocumentVerifier,
	account *AccountUsecase,
	membership *MembershipUsecase,
	content *ContentUsecase,
) *CommitUsecase {
	return &CommitUsecase{
		verifier:   verifier,
		account:    account,
		membership: membership,
		content:    content,
	}
}

func (uc *CommitUsecase) Commit(ctx context.Context, sd helm.SignedDocument) (helm.CommitResult, error) {
	ctx, span := tracer.Start(ctx, "Usecase.Commit")
	defer span.End()

	signer, err := uc.verifier.Verify(ctx, sd)
	if err != nil {
		span.RecordError(err)
		return helm.CommitResult{}, err
	}

	var doc helm.Document[json.RawMessage]
	if err := json.Unmarshal([]byte(sd.Document), &doc); err != nil {
		return helm.CommitResult{}, domain.ErrInvalidDocument.With("%v", err)
	}
	op := domain.OperationType(doc.Type)
	span.SetAttributes(attribute.String("operation", doc.Type))

	origin := Origin{Caller: signer, Document: &sd}
	result := helm.CommitResult{Operation: doc.Type}

	switch op {
	case domain.OpRegister:
		var body helm.RegisterBody
		if err := decodeBody(doc.Body, &body); err != nil {
			return result, err
		}
		reg, err := uc.account.Register(ctx, origin, body.ExternalID, body.Handle)
		if err != nil {
			return result, err
		}
		result.Address = reg.Account.Address.String()

	case domain.OpVerify:
		var body helm.AccountBody
		if err := decodeBody(doc.Body, &body); err != nil {
			return result, err
		}
		account, err := domain.ParseAddress(body.Account)
		if err != nil {
			return result, err
		}
		updated, err := uc.account.Verify(ctx, origin, account)
		if err != nil {
			return result, err
		}
		result.Address = updated.Address.String()

	case domain.OpUpdateRequiredApprovals:
		var body helm.RequiredApprovalsBody
		if err := decodeBody(doc.Body, &body); err != nil {
			return result, err
		}
		account, err := domain.ParseAddress(body.Account)
		if err != nil {
			return result, err
		}
		updated, err := uc.account.UpdateRequiredApprovals(ctx, origin, account, body.RequiredApprovals)
		if err != nil {
			return result, err
		}
		result.Address = updated.Address.String()

	case domain.OpAddAdmin, domain.OpRemoveAdmin, domain.OpAddCreator, domain.OpRemoveCreator:
		var body helm.MemberBody
		if err := decodeBody(doc.Body, &body); err != nil {
			return result, err
		}
		account, err := domain.ParseAddress(body.Account)
		if err != nil {
			return result, err
		}
		member, err := domain.ParseIdentity(body.Member)
		if err != nil {
			return result, err
		}
		list, err := uc.dispatchMembership(ctx, origin, op, account, member)
		if err != nil {
			return result, err
		}
		result.Address = list.Address.String()

	case domain.OpSubmit:
		var body helm.SubmitBody
		if err := decodeBody(doc.Body, &body); err != nil {
			return result, err
		}
		account, err := domain.ParseAddress(body.Account)
		if err != nil {
			return result, err
		}
		hash, err := domain.ParseContentHash(body.ContentHash)
		if err != nil {
			return result, err
		}
		content, err := uc.content.Submit(ctx, origin, SubmitInput{
			Account:      account,
			Kind:         domain.ContentKind{Type: domain.ContentType(body.Kind.Type), TweetCount: body.Kind.TweetCount},
			ContentHash:  hash,
			ScheduledFor: body.ScheduledFor,
		})
		if err != nil {
			return result, err
		}
		result.Address = content.Address.String()
		result.Status = string(content.Status)

	case domain.OpApprove, domain.OpReject, domain.OpCancel, domain.OpRetry, domain.OpPublish, domain.OpFail:
		var body helm.ContentBody
		if err := decodeBody(doc.Body, &body); err != nil {
			return result, err
		}
		account, err := domain.ParseAddress(body.Account)
		if err != nil {
			return result, err
		}
		target, err := domain.ParseAddress(body.Content)
		if err != nil {
			return result, err
		}
		content, err := uc.dispatchContent(ctx, origin, op, account, target, body.Reason)
		if err != nil {
			return result, err
		}
		result.Address = content.Address.String()
		result.Status = string(content.Status)

	default:
		return result, domain.ErrUnknownOperation.With("%q", doc.Type)
	}

	return result, nil
}

func (uc *CommitUsecase) dispatchMembership(ctx context.Context, origin Origin, op domain.OperationType, account domain.Address, member common.Address) (domain.MemberList, error) {
	switch op {
	case domain.OpAddAdmin:
		return uc.membership.AddAdmin(ctx, origin, account, member)
	case domain.OpRemoveAdmin:
		return uc.membership.RemoveAdmin(ctx, origin, account, member)
	case domain.OpAddCreator:
		return uc.membership.AddCreator(ctx, origin, account, member)
	default:
		return uc.membership.RemoveCreator(ctx, origin, account, member)
	}
}

func (uc *CommitUsecase) dispatchContent(ctx context.Context, origin Origin, op domain.OperationType, account, content domain.Address, reason string) (domain.Content, error) {
	switch op {
	case domain.OpApprove:
		return uc.content.Approve(ctx, origin, account, content)
	case domain.OpReject:
		return uc.content.Reject(ctx, origin, account, content, reason)
	case domain.OpCancel:
		return uc.content.Cancel(ctx, origin, account, content)
	case domain.OpRetry:
		return uc.content.Retry(ctx, origin, account, content)
	case domain.OpPublish:
		return uc.content.Publish(ctx, origin, account, content)
	default:
		return uc.content.Fail(ctx, origin, account, content, reason)
	}
}

func decodeBody(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return domain.ErrInvalidDocument.With("missing body")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.ErrInvalidDocument.With("%v", err)
	}
	return nil
}
