package helm

import (
	"time"
)

const (
	ProofTypeSecp256k1 string = "secp256k1"
)

// Document is an operation request. Signer is the hex identity whose key signed the
// serialized document.
type Document[T any] struct {
	Type     string    `json:"type"`
	Signer   string    `json:"signer"`
	Body     T         `json:"body"`
	SignedAt time.Time `json:"signedAt"`
}

type Proof struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
}

type SignedDocument struct {
	Document string `json:"document"`
	Proof    Proof  `json:"proof"`
}

type RegisterBody struct {
	ExternalID string `json:"externalId"`
	Handle     string `json:"handle"`
}

type AccountBody struct {
	Account string `json:"account"`
}

type RequiredApprovalsBody struct {
	Account           string `json:"account"`
	RequiredApprovals int    `json:"requiredApprovals"`
}

type MemberBody struct {
	Account string `json:"account"`
	Member  string `json:"member"`
}

type ContentKind struct {
	Type       string `json:"type"`
	TweetCount int    `json:"tweetCount,omitempty"`
}

type SubmitBody struct {
	Account      string      `json:"account"`
	Kind         ContentKind `json:"kind"`
	ContentHash  string      `json:"contentHash"`
	ScheduledFor *int64      `json:"scheduledFor,omitempty"`
}

type ContentBody struct {
	Account string `json:"account"`
	Content string `json:"content"`
	Reason  string `json:"reason,omitempty"`
}

// Event is a lifecycle notification published after a commit.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Account   string `json:"account"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type CommitResult struct {
	Operation string `json:"operation"`
	Address   string `json:"address"`
	Status    string `json:"status,omitempty"`
}

type Endpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

// WellKnown describes a helm node at /.well-known/helm.
type WellKnown struct {
	Version          string              `json:"version"`
	Domain           string              `json:"domain"`
	ServiceAuthority string              `json:"serviceAuthority"`
	Endpoints        map[string]Endpoint `json:"endpoints"`
}
