package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"

	"github.com/totegamma/helm/internal/domain"
	"github.com/totegamma/helm/internal/usecase"
)

// MemcacheClient is the subset of *memcache.Client the cache uses.
type MemcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Add(item *memcache.Item) error
	CompareAndSwap(item *memcache.Item) error
	Delete(key string) error
}

// leaseTTL bounds how long an abandoned fill blocks caching of a record.
const leaseTTL = 10

var leasePrefix = []byte("lease:")

// CachedLedger serves record lookups from memcached and drops every record a transaction wrote
// once it commits. Cache failures fall through to the ledger.
//
// A miss takes a lease on the key before reading the ledger and fills it with compare-and-swap.
// Invalidation deletes the lease, so a read that raced a commit never stores the old row.
type CachedLedger struct {
	usecase.Ledger
	mc  MemcacheClient
	ttl int32
}

func NewCachedLedger(ledger usecase.Ledger, mc MemcacheClient, ttl time.Duration) *CachedLedger {
	return &CachedLedger{Ledger: ledger, mc: mc, ttl: int32(ttl.Seconds())}
}

func cacheKey(address domain.Address) string {
	return "helm:record:" + address.String()
}

func (c *CachedLedger) GetAccount(ctx context.Context, address domain.Address) (domain.Account, error) {
	var account domain.Account
	lease, hit := c.load(ctx, address, &account)
	if hit {
		return account, nil
	}
	account, err := c.Ledger.GetAccount(ctx, address)
	if err != nil {
		return account, err
	}
	c.fill(ctx, lease, account)
	return account, nil
}

func (c *CachedLedger) GetMemberList(ctx context.Context, address domain.Address) (domain.MemberList, error) {
	var list domain.MemberList
	lease, hit := c.load(ctx, address, &list)
	if hit {
		return list, nil
	}
	list, err := c.Ledger.GetMemberList(ctx, address)
	if err != nil {
		return list, err
	}
	c.fill(ctx, lease, list)
	return list, nil
}

func (c *CachedLedger) GetContent(ctx context.Context, address domain.Address) (domain.Content, error) {
	var content domain.Content
	lease, hit := c.load(ctx, address, &content)
	if hit {
		return content, nil
	}
	content, err := c.Ledger.GetContent(ctx, address)
	if err != nil {
		return content, err
	}
	c.fill(ctx, lease, content)
	return content, nil
}

func (c *CachedLedger) Atomic(ctx context.Context, fn func(tx usecase.LedgerTx) error) error {
	var written []domain.Address
	err := c.Ledger.Atomic(ctx, func(tx usecase.LedgerTx) error {
		written = written[:0]
		return fn(&trackingTx{LedgerTx: tx, written: &written})
	})
	if err != nil {
		return err
	}
	for _, address := range written {
		err := c.mc.Delete(cacheKey(address))
		if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			slog.WarnContext(ctx, "failed to invalidate cached record", slog.String("address", address.String()), slog.String("error", err.Error()))
		}
	}
	return nil
}

// load decodes a cached record into v. On a miss it returns the lease to fill, if one was won.
func (c *CachedLedger) load(ctx context.Context, address domain.Address, v any) (*memcache.Item, bool) {
	key := cacheKey(address)
	item, err := c.mc.Get(key)
	switch {
	case err == nil && bytes.HasPrefix(item.Value, leasePrefix):
		// another reader is filling it
		return nil, false
	case err == nil:
		return nil, json.Unmarshal(item.Value, v) == nil
	case !errors.Is(err, memcache.ErrCacheMiss):
		slog.DebugContext(ctx, "cache get failed", slog.String("error", err.Error()))
		return nil, false
	}

	token := append(bytes.Clone(leasePrefix), uuid.NewString()...)
	if err := c.mc.Add(&memcache.Item{Key: key, Value: token, Expiration: leaseTTL}); err != nil {
		return nil, false
	}
	lease, err := c.mc.Get(key)
	if err != nil || !bytes.Equal(lease.Value, token) {
		return nil, false
	}
	return lease, false
}

// fill stores v under a lease. It is a no-op when the lease was lost to an invalidation.
func (c *CachedLedger) fill(ctx context.Context, lease *memcache.Item, v any) {
	if lease == nil {
		return
	}
	value, err := json.Marshal(v)
	if err != nil {
		return
	}
	lease.Value = value
	lease.Expiration = c.ttl
	err = c.mc.CompareAndSwap(lease)
	switch {
	case err == nil, errors.Is(err, memcache.ErrCacheMiss), errors.Is(err, memcache.ErrCASConflict), errors.Is(err, memcache.ErrNotStored):
	default:
		slog.DebugContext(ctx, "cache fill failed", slog.String("error", err.Error()))
	}
}

// trackingTx remembers the address of every record written through it.
type trackingTx struct {
	usecase.LedgerTx
	written *[]domain.Address
}

func (t *trackingTx) CreateRegistration(ctx context.Context, reg domain.Registration) error {
	if err := t.LedgerTx.CreateRegistration(ctx, reg); err != nil {
		return err
	}
	*t.written = append(*t.written, reg.Account.Address, reg.Admins.Address, reg.Creators.Address)
	return nil
}

func (t *trackingTx) SaveAccount(ctx context.Context, account domain.Account) error {
	if err := t.LedgerTx.SaveAccount(ctx, account); err != nil {
		return err
	}
	*t.written = append(*t.written, account.Address)
	return nil
}

func (t *trackingTx) SaveMemberList(ctx context.Context, list domain.MemberList) error {
	if err := t.LedgerTx.SaveMemberList(ctx, list); err != nil {
		return err
	}
	*t.written = append(*t.written, list.Address)
	return nil
}

func (t *trackingTx) CreateContent(ctx context.Context, content domain.Content) error {
	if err := t.LedgerTx.CreateContent(ctx, content); err != nil {
		return err
	}
	*t.written = append(*t.written, content.Address)
	return nil
}

func (t *trackingTx) SaveContent(ctx context.Context, content domain.Content) error {
	if err := t.LedgerTx.SaveContent(ctx, content); err != nil {
		return err
	}
	*t.written = append(*t.written, content.Address)
	return nil
}
