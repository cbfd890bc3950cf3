package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
	"github.com/totegamma/helm/internal/usecase"
	"github.com/totegamma/helm/jwt"
)

var tracer = otel.Tracer("auth")

const DefaultReplayWindow = 5 * time.Minute

type AuthService struct {
	config domain.Config
	clock  usecase.Clock
	window time.Duration
	seen   *cache.Cache
}

func NewAuthService(config domain.Config, clock usecase.Clock) *AuthService {
	window := config.ReplayWindow
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &AuthService{
		config: config,
		clock:  clock,
		window: window,
		// a signature stays remembered for as long as its document can pass the window check
		seen: cache.New(2*window, window),
	}
}

// Verify authenticates a signed operation document and returns its signer.
func (s *AuthService) Verify(ctx context.Context, sd helm.SignedDocument) (common.Address, error) {
	_, span := tracer.Start(ctx, "Auth.Service.Verify")
	defer span.End()

	if sd.Proof.Type != helm.ProofTypeSecp256k1 {
		span.RecordError(fmt.Errorf("unsupported proof type %q", sd.Proof.Type))
		return common.Address{}, domain.ErrInvalidSignature.With("unsupported proof type %q", sd.Proof.Type)
	}

	var doc helm.Document[json.RawMessage]
	if err := json.Unmarshal([]byte(sd.Document), &doc); err != nil {
		return common.Address{}, domain.ErrInvalidDocument.With("%v", err)
	}
	if !common.IsHexAddress(doc.Signer) {
		return common.Address{}, domain.ErrInvalidDocument.With("invalid signer %q", doc.Signer)
	}
	signer := common.HexToAddress(doc.Signer)

	signature, err := hex.DecodeString(strings.TrimPrefix(sd.Proof.Signature, "0x"))
	if err != nil {
		return common.Address{}, domain.ErrInvalidSignature.With("signature is not hex")
	}
	if err := helm.VerifySignature([]byte(sd.Document), signature, signer); err != nil {
		span.RecordError(errors.Wrap(err, "signature verification failed"))
		return common.Address{}, domain.ErrInvalidSignature
	}

	now := s.clock.Now()
	if doc.SignedAt.Before(now.Add(-s.window)) || doc.SignedAt.After(now.Add(s.window)) {
		return common.Address{}, domain.ErrDocumentExpired.With("signed at %s", doc.SignedAt.Format(time.RFC3339))
	}

	// recovery normalizes V, so the key must not depend on its encoding
	key := hex.EncodeToString(helm.GetHash([]byte(sd.Document)))
	if err := s.seen.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		return common.Address{}, domain.ErrReplayedDocument
	}

	return signer, nil
}

type AuthResult struct {
	Requester common.Address
}

// AuthJwt identifies the requester of a read or realtime request.
func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	header, claims, err := jwt.Validate(token, s.clock.Now())
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	if claims.Audience != s.config.FQDN {
		err := fmt.Errorf("jwt audience mismatch: expected %s, got %s", s.config.FQDN, claims.Audience)
		span.RecordError(err)
		return nil, err
	}

	if claims.Subject != "helm" {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	keyID := header.KeyID
	if keyID == "" {
		keyID = claims.Issuer
	}
	return &AuthResult{Requester: common.HexToAddress(keyID)}, nil
}
