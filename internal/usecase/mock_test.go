package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
)

type ledgerState struct {
	accounts map[domain.Address]domain.Account
	lists    map[domain.Address]domain.MemberList
	contents map[domain.Address]domain.Content
	commits  map[string]CommitEntry
}

func (s ledgerState) clone() ledgerState {
	c := ledgerState{
		accounts: make(map[domain.Address]domain.Account, len(s.accounts)),
		lists:    make(map[domain.Address]domain.MemberList, len(s.lists)),
		contents: make(map[domain.Address]domain.Content, len(s.contents)),
		commits:  make(map[string]CommitEntry, len(s.commits)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.lists {
		c.lists[k] = v.Clone()
	}
	for k, v := range s.contents {
		c.contents[k] = v.Clone()
	}
	for k, v := range s.commits {
		c.commits[k] = v
	}
	return c
}

func (s ledgerState) GetAccount(ctx context.Context, address domain.Address) (domain.Account, error) {
	a, ok := s.accounts[address]
	if !ok {
		return domain.Account{}, domain.NotFoundError{Resource: "account"}
	}
	return a, nil
}

func (s ledgerState) GetMemberList(ctx context.Context, address domain.Address) (domain.MemberList, error) {
	l, ok := s.lists[address]
	if !ok {
		return domain.MemberList{}, domain.NotFoundError{Resource: "member list"}
	}
	return l.Clone(), nil
}

func (s ledgerState) GetContent(ctx context.Context, address domain.Address) (domain.Content, error) {
	c, ok := s.contents[address]
	if !ok {
		return domain.Content{}, domain.NotFoundError{Resource: "content"}
	}
	return c.Clone(), nil
}

// mockLedger serializes transactions with a mutex and applies a transaction's writes only
// when it succeeds.
type mockLedger struct {
	mu    sync.Mutex
	state ledgerState
}

func newMockLedger() *mockLedger {
	return &mockLedger{state: ledgerState{}.clone()}
}

func (m *mockLedger) GetAccount(ctx context.Context, address domain.Address) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetAccount(ctx, address)
}

func (m *mockLedger) GetMemberList(ctx context.Context, address domain.Address) (domain.MemberList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetMemberList(ctx, address)
}

func (m *mockLedger) GetContent(ctx context.Context, address domain.Address) (domain.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetContent(ctx, address)
}

func (m *mockLedger) ListContents(ctx context.Context, account domain.Address, status domain.Status, limit int) ([]domain.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Content
	for _, c := range m.state.contents {
		if c.Account != account || (status != "" && c.Status != status) {
			continue
		}
		result = append(result, c.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt > result[j].CreatedAt })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockLedger) ListDue(ctx context.Context, after DueCursor, until int64, limit int) ([]domain.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Content
	for _, c := range m.state.contents {
		if c.Status != domain.StatusApproved || c.ScheduledFor == nil || *c.ScheduledFor > until {
			continue
		}
		at := *c.ScheduledFor
		if at > after.ScheduledFor || (at == after.ScheduledFor && c.Address > after.Address) {
			result = append(result, c.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if *result[i].ScheduledFor != *result[j].ScheduledFor {
			return *result[i].ScheduledFor < *result[j].ScheduledFor
		}
		return result[i].Address < result[j].Address
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockLedger) Atomic(ctx context.Context, fn func(tx LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &mockTx{ledgerState: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.ledgerState
	return nil
}

func (m *mockLedger) commitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.commits)
}

type mockTx struct {
	ledgerState
}

func (t *mockTx) CreateRegistration(ctx context.Context, reg domain.Registration) error {
	if _, ok := t.accounts[reg.Account.Address]; ok {
		return domain.ErrAlreadyRegistered
	}
	t.accounts[reg.Account.Address] = reg.Account
	t.lists[reg.Admins.Address] = reg.Admins.Clone()
	t.lists[reg.Creators.Address] = reg.Creators.Clone()
	return nil
}

func (t *mockTx) SaveAccount(ctx context.Context, account domain.Account) error {
	t.accounts[account.Address] = account
	return nil
}

func (t *mockTx) SaveMemberList(ctx context.Context, list domain.MemberList) error {
	t.lists[list.Address] = list.Clone()
	return nil
}

func (t *mockTx) CreateContent(ctx context.Context, content domain.Content) error {
	if _, ok := t.contents[content.Address]; ok {
		return domain.ErrContentExists
	}
	t.contents[content.Address] = content.Clone()
	return nil
}

func (t *mockTx) SaveContent(ctx context.Context, content domain.Content) error {
	t.contents[content.Address] = content.Clone()
	return nil
}

func (t *mockTx) AppendCommit(ctx context.Context, entry CommitEntry) error {
	if _, ok := t.commits[entry.ID]; ok {
		return domain.ErrReplayedDocument
	}
	t.commits[entry.ID] = entry
	return nil
}

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []helm.Event
}

func (p *mockPublisher) Publish(ctx context.Context, event helm.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *mockPublisher) last() helm.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return helm.Event{}
	}
	return p.events[len(p.events)-1]
}

func (p *mockPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type mockMetrics struct {
	mu          sync.Mutex
	failures    int
	transitions map[[2]domain.Status]int
}

func (m *mockMetrics) Operation(op domain.OperationType, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failures++
	}
}

func (m *mockMetrics) Transition(from, to domain.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitions == nil {
		m.transitions = map[[2]domain.Status]int{}
	}
	m.transitions[[2]domain.Status{from, to}]++
}

// env wires every usecase to one mock ledger.
type env struct {
	ledger     *mockLedger
	clock      *mockClock
	publisher  *mockPublisher
	metrics    *mockMetrics
	account    *AccountUsecase
	membership *MembershipUsecase
	content    *ContentUsecase
}

var (
	testAuthority = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	testNow       = time.Unix(1_700_000_000, 0)
)

func newEnv() *env {
	e := &env{
		ledger:    newMockLedger(),
		clock:     &mockClock{now: testNow},
		publisher: &mockPublisher{},
		metrics:   &mockMetrics{},
	}
	config := domain.Config{ServiceAuthority: testAuthority}
	e.account = NewAccountUsecase(e.ledger, e.clock, e.publisher, e.metrics)
	e.membership = NewMembershipUsecase(e.ledger, e.clock, e.publisher, e.metrics)
	e.content = NewContentUsecase(config, e.ledger, e.clock, e.publisher, e.metrics)
	return e
}

func as(id common.Address) Origin {
	return Origin{Caller: id}
}

func identity(n int) common.Address {
	return common.BytesToAddress([]byte{0xbb, byte(n)})
}
