package domain

import (
	"math"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusPublished       Status = "published"
	StatusFailed          Status = "failed"
	StatusCanceled        Status = "canceled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusDraft,
	StatusPendingApproval,
	StatusApproved,
	StatusRejected,
	StatusPublished,
	StatusFailed,
	StatusCanceled,
}

func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

var transitions = map[Status][]Status{
	StatusDraft:           {StatusPendingApproval, StatusCanceled},
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusCanceled},
	StatusApproved:        {StatusPublished, StatusFailed, StatusCanceled},
	StatusRejected:        {StatusDraft},
	StatusFailed:          {StatusDraft},
}

// CanTransition reports whether from → to is in the lifecycle table.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

type ContentType string

const (
	ContentTypeTweet  ContentType = "tweet"
	ContentTypeThread ContentType = "thread"
)

type ContentKind struct {
	Type       ContentType `json:"type"`
	TweetCount int         `json:"tweetCount,omitempty"`
}

func (k ContentKind) Validate() error {
	switch k.Type {
	case ContentTypeTweet:
		if k.TweetCount != 0 {
			return ErrInvalidContentKind.With("tweet carries no tweet count")
		}
		return nil
	case ContentTypeThread:
		if k.TweetCount > MaxThreadLength {
			return ErrThreadTooLong.With("%d > %d", k.TweetCount, MaxThreadLength)
		}
		if k.TweetCount < 1 {
			return ErrInvalidContentKind.With("thread needs at least one tweet")
		}
		return nil
	default:
		return ErrInvalidContentKind.With("%q", k.Type)
	}
}

// Content is a governed unit of content and its approval state machine.
type Content struct {
	Address         Address          `json:"address"`
	Account         Address          `json:"account"`
	Author          common.Address   `json:"author"`
	Kind            ContentKind      `json:"kind"`
	ContentHash     common.Hash      `json:"contentHash"`
	ScheduledFor    *int64           `json:"scheduledFor,omitempty"`
	Status          Status           `json:"status"`
	Approvals       []common.Address `json:"approvals"`
	RejectionReason *string          `json:"rejectionReason,omitempty"`
	FailureReason   *string          `json:"failureReason,omitempty"`
	CreatedAt       int64            `json:"createdAt"`
	UpdatedAt       int64            `json:"updatedAt"`

	hops []StatusChange
}

// StatusChange is one edge of the lifecycle table taken by a record.
type StatusChange struct {
	From Status
	To   Status
}

// NewContent builds a Draft record keyed by (account, author, hash).
func NewContent(account Address, author common.Address, kind ContentKind, hash common.Hash, scheduledFor *int64, now int64) (Content, error) {
	if err := kind.Validate(); err != nil {
		return Content{}, err
	}
	if hash == (common.Hash{}) {
		return Content{}, ErrInvalidContentHash
	}

	return Content{
		Address:      ContentAddress(account, author, hash),
		Account:      account,
		Author:       author,
		Kind:         kind,
		ContentHash:  hash,
		ScheduledFor: scheduledFor,
		Status:       StatusDraft,
		Approvals:    []common.Address{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Clone copies the record. The copy starts with no recorded hops.
func (c Content) Clone() Content {
	c.hops = nil
	c.Approvals = slices.Clone(c.Approvals)
	if c.ScheduledFor != nil {
		v := *c.ScheduledFor
		c.ScheduledFor = &v
	}
	if c.RejectionReason != nil {
		v := *c.RejectionReason
		c.RejectionReason = &v
	}
	if c.FailureReason != nil {
		v := *c.FailureReason
		c.FailureReason = &v
	}
	return c
}

func (c Content) IsTerminal() bool {
	switch c.Status {
	case StatusPublished, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

func (c Content) HasApproved(id common.Address) bool {
	return slices.Contains(c.Approvals, id)
}

func (c Content) CanTransitionTo(next Status) bool {
	return CanTransition(c.Status, next)
}

// TransitionTo is the only writer of Status.
func (c *Content) TransitionTo(next Status, now int64) error {
	if !c.CanTransitionTo(next) {
		return ErrInvalidStateTransition.With("%s -> %s", c.Status, next)
	}

	if next == StatusDraft {
		c.Approvals = []common.Address{}
		c.RejectionReason = nil
		c.FailureReason = nil
	}
	if c.Status == StatusRejected && next != StatusRejected {
		c.RejectionReason = nil
	}

	c.hops = append(c.hops, StatusChange{From: c.Status, To: next})
	c.Status = next
	c.UpdatedAt = now
	return nil
}

// Hops lists the transitions applied since the record was built or loaded, in order.
func (c Content) Hops() []StatusChange {
	return slices.Clone(c.hops)
}

// Revise replaces the kind and scheduling metadata of a draft.
func (c *Content) Revise(kind ContentKind, scheduledFor *int64, now int64) error {
	if c.Status != StatusDraft {
		return ErrInvalidContentStatus.With("revise from %s", c.Status)
	}
	if err := kind.Validate(); err != nil {
		return err
	}
	c.Kind = kind
	c.ScheduledFor = scheduledFor
	c.UpdatedAt = now
	return nil
}

// Submit moves a draft to PendingApproval, records the submitter's approval and
// auto-approves when that already meets the threshold.
func (c *Content) Submit(author common.Address, requiredApprovals int, now int64) error {
	if c.Status != StatusDraft {
		return ErrInvalidContentStatus.With("submit from %s", c.Status)
	}
	if err := c.ValidateScheduledTime(now); err != nil {
		return err
	}

	if err := c.TransitionTo(StatusPendingApproval, now); err != nil {
		return err
	}

	if !c.HasApproved(author) {
		c.Approvals = append(c.Approvals, author)
	}
	if len(c.Approvals) >= requiredApprovals {
		return c.TransitionTo(StatusApproved, now)
	}
	return nil
}

func (c *Content) Approve(approver common.Address, requiredApprovals int, now int64) error {
	if c.Status != StatusPendingApproval {
		return ErrInvalidContentStatus.With("approve from %s", c.Status)
	}
	if c.HasApproved(approver) {
		return ErrAlreadyApproved.With("%s", approver.Hex())
	}
	if err := c.validateScheduleAhead(now); err != nil {
		return err
	}
	if len(c.Approvals) >= requiredApprovals*ApprovalCapFactor {
		return ErrApprovalCapReached.With("%d approvals for threshold %d", len(c.Approvals), requiredApprovals)
	}

	c.Approvals = append(c.Approvals, approver)
	if len(c.Approvals) >= requiredApprovals {
		if err := c.TransitionTo(StatusApproved, now); err != nil {
			return err
		}
	}

	c.UpdatedAt = now
	return nil
}

func (c *Content) Reject(reason string, now int64) error {
	if c.Status != StatusPendingApproval {
		return ErrInvalidContentStatus.With("reject from %s", c.Status)
	}
	if len(reason) > MaxReasonLength {
		return ErrReasonTooLong.With("%d > %d", len(reason), MaxReasonLength)
	}

	if err := c.TransitionTo(StatusRejected, now); err != nil {
		return err
	}
	c.RejectionReason = &reason
	return nil
}

func (c *Content) Cancel(now int64) error {
	if c.IsTerminal() {
		return ErrContentInTerminalState
	}
	return c.TransitionTo(StatusCanceled, now)
}

// Retry sends rejected or failed content back to Draft for a fresh approval cycle.
func (c *Content) Retry(now int64) error {
	if c.Status != StatusRejected && c.Status != StatusFailed {
		return ErrInvalidStateTransition.With("%s -> %s", c.Status, StatusDraft)
	}
	return c.TransitionTo(StatusDraft, now)
}

func (c *Content) Publish(now int64) error {
	if c.IsTerminal() {
		return ErrContentInTerminalState
	}
	return c.TransitionTo(StatusPublished, now)
}

func (c *Content) Fail(reason string, now int64) error {
	if c.IsTerminal() {
		return ErrContentInTerminalState
	}
	if len(reason) > MaxReasonLength {
		return ErrReasonTooLong.With("%d > %d", len(reason), MaxReasonLength)
	}

	if err := c.TransitionTo(StatusFailed, now); err != nil {
		return err
	}
	c.FailureReason = &reason
	return nil
}

// ValidateScheduledTime checks the schedule against the submission window
// (now+MinScheduleDelay, now+MaxScheduleDelay).
func (c Content) ValidateScheduledTime(now int64) error {
	if c.ScheduledFor == nil {
		return nil
	}
	scheduled := *c.ScheduledFor

	if scheduled <= now {
		return ErrScheduleTimeInPast
	}

	minAllowed, ok := checkedAdd(now, MinScheduleDelay)
	if !ok {
		return ErrScheduleOverflow
	}
	if scheduled <= minAllowed {
		return ErrInvalidScheduleTime.With("must be more than %ds ahead", MinScheduleDelay)
	}

	maxAllowed, ok := checkedAdd(now, MaxScheduleDelay)
	if !ok {
		return ErrScheduleOverflow
	}
	if scheduled >= maxAllowed {
		return ErrInvalidScheduleTime.With("must be less than %ds ahead", MaxScheduleDelay)
	}

	if !IsWithinScheduleBounds(scheduled) {
		return ErrInvalidScheduleTime
	}
	return nil
}

// validateScheduleAhead is the weaker check applied while approvals are collected:
// the schedule must still be in the future and representable.
func (c Content) validateScheduleAhead(now int64) error {
	if c.ScheduledFor == nil {
		return nil
	}
	scheduled := *c.ScheduledFor
	if scheduled <= now {
		return ErrScheduleTimeInPast
	}
	if !IsWithinScheduleBounds(scheduled) {
		return ErrInvalidScheduleTime
	}
	return nil
}

func IsWithinScheduleBounds(ts int64) bool {
	return ts > 0 && ts <= math.MaxInt64-MaxScheduleDelay
}

func checkedAdd(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, false
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, false
	}
	return a + b, true
}
