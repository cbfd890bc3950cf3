package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
	"github.com/totegamma/helm/internal/service"
	"github.com/totegamma/helm/jwt"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Unix(1_700_000_000, 0) }

func TestIdentifyIdentity(t *testing.T) {
	config := domain.Config{FQDN: "helm.example.com"}
	mw := NewAuthMiddleware(service.NewAuthService(config, fixedClock{}), config)

	key, _ := crypto.GenerateKey()
	issuer := crypto.PubkeyToAddress(key.PublicKey)
	token, err := jwt.Create(jwt.Claims{
		Issuer:         issuer.Hex(),
		Subject:        "helm",
		Audience:       "helm.example.com",
		ExpirationTime: strconv.FormatInt(fixedClock{}.Now().Add(time.Hour).Unix(), 10),
	}, key)
	if err != nil {
		t.Fatal(err)
	}

	var seen common.Address
	var found bool
	handler := mw.IdentifyIdentity(func(c echo.Context) error {
		seen, found = Requester(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	e := echo.New()
	for _, tc := range []struct {
		header string
		want   bool
	}{
		{"Bearer " + token, true},
		{"Bearer garbage", false},
		{"Basic " + token, false},
		{"", false},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		found = false
		if err := handler(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Fatal(err)
		}
		if found != tc.want {
			t.Fatalf("header %q: expected found=%v", tc.header, tc.want)
		}
		if found && seen != issuer {
			t.Fatalf("unexpected requester %s", seen.Hex())
		}
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	handler := limiter.Middleware(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e := echo.New()
	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		if err := handler(e.NewContext(req, rec)); err != nil {
			t.Fatal(err)
		}
		return rec.Code
	}

	if call("10.0.0.1") != http.StatusOK || call("10.0.0.1") != http.StatusOK {
		t.Fatalf("burst must pass")
	}
	if got := call("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", got)
	}
	if got := call("10.0.0.2"); got != http.StatusOK {
		t.Fatalf("other clients keep their own bucket, got %d", got)
	}

	if !NewRateLimiter(0, 0).Allow("anyone") {
		t.Fatalf("a zero rate disables limiting")
	}
}

type signerVerifier struct {
	signer common.Address
}

func (v *signerVerifier) Verify(ctx context.Context, sd helm.SignedDocument) (common.Address, error) {
	if sd.Document == "" {
		return common.Address{}, domain.ErrInvalidDocument
	}
	return v.signer, nil
}

func TestRateLimiterVerifierKeysOnSigner(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	inner := &signerVerifier{signer: common.HexToAddress("0x01")}
	verifier := limiter.Verifier(inner)
	ctx := context.Background()
	sd := helm.SignedDocument{Document: "{}"}

	if _, err := verifier.Verify(ctx, sd); err != nil {
		t.Fatalf("first commit must pass, got %v", err)
	}
	if _, err := verifier.Verify(ctx, sd); !errors.Is(err, domain.ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}

	inner.signer = common.HexToAddress("0x02")
	signer, err := verifier.Verify(ctx, sd)
	if err != nil || signer != inner.signer {
		t.Fatalf("other signers keep their own bucket, got %s %v", signer.Hex(), err)
	}

	// rejected documents never reach the limiter
	if _, err := verifier.Verify(ctx, helm.SignedDocument{}); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	if !limiter.Allow("ip:10.0.0.1") {
		t.Fatalf("signer buckets must not drain ip buckets")
	}
}
