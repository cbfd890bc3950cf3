package models

import (
	"gorm.io/datatypes"
)

// CommitLog is the append-only record of every applied signed operation.
type CommitLog struct {
	ID        string `json:"id" gorm:"primaryKey;type:text"`
	Operation string `json:"operation" gorm:"type:text;not null;index"`
	Signer    string `json:"signer" gorm:"type:text;not null;index"`
	Target    string `json:"target" gorm:"type:text;index"`
	Document  string `json:"document" gorm:"type:text"`
	Proof     string `json:"proof" gorm:"type:text"`
	CreatedAt int64  `json:"createdAt" gorm:"autoCreateTime:false;not null"`
}

type Account struct {
	Address           string `json:"address" gorm:"primaryKey;type:text"`
	Owner             string `json:"owner" gorm:"type:text;not null;index"`
	ExternalID        string `json:"externalId" gorm:"type:text;not null;uniqueIndex"`
	Handle            string `json:"handle" gorm:"type:text;not null"`
	RequiredApprovals int    `json:"requiredApprovals" gorm:"not null"`
	IsVerified        bool   `json:"isVerified" gorm:"not null;default:false"`
	CreatedAt         int64  `json:"createdAt" gorm:"autoCreateTime:false;not null"`
}

type MemberList struct {
	Address   string                      `json:"address" gorm:"primaryKey;type:text"`
	Kind      string                      `json:"kind" gorm:"type:text;not null"`
	Account   string                      `json:"account" gorm:"type:text;not null;index"`
	Members   datatypes.JSONSlice[string] `json:"members"`
	Authority string                      `json:"authority" gorm:"type:text;not null"`
}

type Content struct {
	Address         string                      `json:"address" gorm:"primaryKey;type:text"`
	Account         string                      `json:"account" gorm:"type:text;not null;index:idx_content_account_status"`
	Author          string                      `json:"author" gorm:"type:text;not null"`
	Kind            string                      `json:"kind" gorm:"type:text;not null"`
	TweetCount      int                         `json:"tweetCount"`
	ContentHash     string                      `json:"contentHash" gorm:"type:text;not null"`
	ScheduledFor    *int64                      `json:"scheduledFor" gorm:"index"`
	Status          string                      `json:"status" gorm:"type:text;not null;index:idx_content_account_status"`
	Approvals       datatypes.JSONSlice[string] `json:"approvals"`
	RejectionReason *string                     `json:"rejectionReason" gorm:"type:text"`
	FailureReason   *string                     `json:"failureReason" gorm:"type:text"`
	CreatedAt       int64                       `json:"createdAt" gorm:"autoCreateTime:false;not null"`
	UpdatedAt       int64                       `json:"updatedAt" gorm:"autoUpdateTime:false;not null"`
}
