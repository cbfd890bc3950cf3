package domain

const (
	RequesterIdCtxKey  = "helm-requesterId"
	RequesterDocCtxKey = "helm-requesterDocument"
)

const (
	RequesterIdHeader = "helm-requester-address"
)

// Capacity limits. These are hard bounds, not soft defaults.
const (
	MaxAdmins   = 10
	MaxCreators = 10

	MaxExternalIDLength = 64
	MaxHandleLength     = 15
	MaxReasonLength     = 256
	MaxThreadLength     = 50

	MinRequiredApprovals     = 1
	MaxRequiredApprovals     = 10
	DefaultRequiredApprovals = 3

	// ApprovalCapFactor bounds the approval set at factor × required approvals.
	ApprovalCapFactor = 2
)

// Scheduling window, in seconds.
const (
	MinScheduleDelay int64 = 300
	MaxScheduleDelay int64 = 30 * 24 * 60 * 60
)

// Address derivation seeds.
const (
	AccountSeed     = "account"
	AdminListSeed   = "admin-list"
	CreatorListSeed = "creator-list"
	ContentSeed     = "content"
)

// AddressHRP is the bech32 human readable part of every record address.
const AddressHRP = "helm"

type OperationType string

const (
	OpRegister                OperationType = "register"
	OpVerify                  OperationType = "verify"
	OpUpdateRequiredApprovals OperationType = "update-required-approvals"
	OpAddAdmin                OperationType = "add-admin"
	OpRemoveAdmin             OperationType = "remove-admin"
	OpAddCreator              OperationType = "add-creator"
	OpRemoveCreator           OperationType = "remove-creator"
	OpSubmit                  OperationType = "submit"
	OpApprove                 OperationType = "approve"
	OpReject                  OperationType = "reject"
	OpCancel                  OperationType = "cancel"
	OpRetry                   OperationType = "retry"
	OpPublish                 OperationType = "publish"
	OpFail                    OperationType = "fail"
)
