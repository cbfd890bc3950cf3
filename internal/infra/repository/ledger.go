package repository

import (
	"context"
	"encoding/json"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/helm/internal/domain"
	"github.com/totegamma/helm/internal/infra/database/models"
	"github.com/totegamma/helm/internal/usecase"
)

// LedgerRepository stores accounts, member lists, contents and the commit log in one gorm database.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) GetAccount(ctx context.Context, address domain.Address) (domain.Account, error) {
	return getAccount(r.db.WithContext(ctx), address)
}

func (r *LedgerRepository) GetMemberList(ctx context.Context, address domain.Address) (domain.MemberList, error) {
	return getMemberList(r.db.WithContext(ctx), address)
}

func (r *LedgerRepository) GetContent(ctx context.Context, address domain.Address) (domain.Content, error) {
	return getContent(r.db.WithContext(ctx), address)
}

func (r *LedgerRepository) ListContents(ctx context.Context, account domain.Address, status domain.Status, limit int) ([]domain.Content, error) {
	q := r.db.WithContext(ctx).Where("account = ?", account.String())
	if status != "" {
		q = q.Where("status = ?", string(status))
	}

	var rows []models.Content
	err := q.Order("created_at desc").Order("address").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list contents")
	}
	return contentsFromModels(rows), nil
}

func (r *LedgerRepository) ListDue(ctx context.Context, after usecase.DueCursor, until int64, limit int) ([]domain.Content, error) {
	var rows []models.Content
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?", string(domain.StatusApproved), until).
		Where("scheduled_for > ? OR (scheduled_for = ? AND address > ?)", after.ScheduledFor, after.ScheduledFor, after.Address.String()).
		Order("scheduled_for").
		Order("address").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list due contents")
	}
	return contentsFromModels(rows), nil
}

func (r *LedgerRepository) Atomic(ctx context.Context, fn func(tx usecase.LedgerTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{db: tx})
	})
}

// ledgerTx reads with FOR UPDATE so concurrent writers on the same record queue up.
// sqlite has no row locks; its single writer already serializes transactions.
type ledgerTx struct {
	db *gorm.DB
}

func (t *ledgerTx) locked() *gorm.DB {
	if t.db.Dialector.Name() == "sqlite" {
		return t.db
	}
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *ledgerTx) GetAccount(ctx context.Context, address domain.Address) (domain.Account, error) {
	return getAccount(t.locked(), address)
}

func (t *ledgerTx) GetMemberList(ctx context.Context, address domain.Address) (domain.MemberList, error) {
	return getMemberList(t.locked(), address)
}

func (t *ledgerTx) GetContent(ctx context.Context, address domain.Address) (domain.Content, error) {
	return getContent(t.locked(), address)
}

func (t *ledgerTx) CreateRegistration(ctx context.Context, reg domain.Registration) error {
	var count int64
	err := t.db.Model(&models.Account{}).
		Where("address = ? OR external_id = ?", reg.Account.Address.String(), reg.Account.ExternalID).
		Count(&count).Error
	if err != nil {
		return pkgerrors.Wrap(err, "check registration")
	}
	if count > 0 {
		return domain.ErrAlreadyRegistered
	}

	account := accountToModel(reg.Account)
	if err := t.db.Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyRegistered
		}
		return pkgerrors.Wrap(err, "create account")
	}

	lists := []models.MemberList{memberListToModel(reg.Admins), memberListToModel(reg.Creators)}
	if err := t.db.Create(&lists).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyRegistered
		}
		return pkgerrors.Wrap(err, "create member lists")
	}
	return nil
}

func (t *ledgerTx) SaveAccount(ctx context.Context, account domain.Account) error {
	m := accountToModel(account)
	err := t.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	return pkgerrors.Wrap(err, "save account")
}

func (t *ledgerTx) SaveMemberList(ctx context.Context, list domain.MemberList) error {
	m := memberListToModel(list)
	err := t.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	return pkgerrors.Wrap(err, "save member list")
}

// CreateContent is a plain insert. A row read as missing is not locked, so a concurrent
// creator of the same address must lose on the primary key instead of overwriting.
func (t *ledgerTx) CreateContent(ctx context.Context, content domain.Content) error {
	var count int64
	err := t.db.Model(&models.Content{}).Where("address = ?", content.Address.String()).Count(&count).Error
	if err != nil {
		return pkgerrors.Wrap(err, "check content")
	}
	if count > 0 {
		return domain.ErrContentExists.With("%s", content.Address)
	}

	m := contentToModel(content)
	if err := t.db.Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrContentExists.With("%s", content.Address)
		}
		return pkgerrors.Wrap(err, "create content")
	}
	return nil
}

func (t *ledgerTx) SaveContent(ctx context.Context, content domain.Content) error {
	m := contentToModel(content)
	err := t.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	return pkgerrors.Wrap(err, "save content")
}

func (t *ledgerTx) AppendCommit(ctx context.Context, entry usecase.CommitEntry) error {
	var count int64
	if err := t.db.Model(&models.CommitLog{}).Where("id = ?", entry.ID).Count(&count).Error; err != nil {
		return pkgerrors.Wrap(err, "check commit log")
	}
	if count > 0 {
		return domain.ErrReplayedDocument
	}

	proof, err := json.Marshal(entry.Proof)
	if err != nil {
		return err
	}

	log := models.CommitLog{
		ID:        entry.ID,
		Operation: string(entry.Operation),
		Signer:    entry.Signer.Hex(),
		Target:    entry.Target.String(),
		Document:  entry.Document,
		Proof:     string(proof),
		CreatedAt: entry.CreatedAt,
	}
	if err := t.db.Create(&log).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrReplayedDocument
		}
		return pkgerrors.Wrap(err, "append commit")
	}
	return nil
}

func getAccount(db *gorm.DB, address domain.Address) (domain.Account, error) {
	var m models.Account
	if err := db.Where("address = ?", address.String()).Take(&m).Error; err != nil {
		return domain.Account{}, translate(err, "account")
	}
	return accountFromModel(m), nil
}

func getMemberList(db *gorm.DB, address domain.Address) (domain.MemberList, error) {
	var m models.MemberList
	if err := db.Where("address = ?", address.String()).Take(&m).Error; err != nil {
		return domain.MemberList{}, translate(err, "member list")
	}
	return memberListFromModel(m), nil
}

func getContent(db *gorm.DB, address domain.Address) (domain.Content, error) {
	var m models.Content
	if err := db.Where("address = ?", address.String()).Take(&m).Error; err != nil {
		return domain.Content{}, translate(err, "content")
	}
	return contentFromModel(m), nil
}

func contentsFromModels(rows []models.Content) []domain.Content {
	result := make([]domain.Content, len(rows))
	for i, row := range rows {
		result[i] = contentFromModel(row)
	}
	return result
}

func translate(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFoundError{Resource: resource}
	}
	return pkgerrors.Wrapf(err, "get %s", resource)
}
