package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/auditlog"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/order"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-tx-propagation/internal/infrastructure/redis"
)

var (
	errReadOnly = errors.New("読み取り専用トランザクションです")
	errSystem   = errors.New("システムエラー")
)

// === インメモリのトランザクション付きストア ===

// memStore はコミットされたデータを保持し、transaction.Connector として振る舞う
type memStore struct {
	mu         sync.Mutex
	members    map[string]*member.Member
	logs       map[string]*auditlog.Log
	orders     map[string]*order.Order
	failUpdate map[string]error
	seq        int
	begins     []bool // 開始した物理トランザクションの readOnly
	commits    int
	rollbacks  int
}

func newMemStore() *memStore {
	return &memStore{
		members:    make(map[string]*member.Member),
		logs:       make(map[string]*auditlog.Log),
		orders:     make(map[string]*order.Order),
		failUpdate: make(map[string]error),
	}
}

func (s *memStore) Begin(ctx context.Context, readOnly bool) (transaction.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins = append(s.begins, readOnly)
	return &memTx{
		store:    s,
		readOnly: readOnly,
		members:  make(map[string]*member.Member),
		logs:     make(map[string]*auditlog.Log),
		orders:   make(map[string]*order.Order),
	}, nil
}

func (s *memStore) nextID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) physicalBegins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.begins)
}

func (s *memStore) hasMember(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[username]
	return ok
}

func (s *memStore) hasLog(message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.logs[message]
	return ok
}

func (s *memStore) order(id string) (*order.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

func (s *memStore) seedOrder(o *order.Order) {
	o.ID = s.nextID("o")
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
}

// memTx はコミットまで書き込みを保留する
type memTx struct {
	store    *memStore
	readOnly bool
	members  map[string]*member.Member
	logs     map[string]*auditlog.Log
	orders   map[string]*order.Order
}

func (t *memTx) Commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range t.members {
		s.members[k] = v
	}
	for k, v := range t.logs {
		s.logs[k] = v
	}
	for k, v := range t.orders {
		s.orders[k] = v
	}
	s.commits++
	return nil
}

func (t *memTx) Rollback() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.rollbacks++
	return nil
}

func currentMemTx(ctx context.Context) (*memTx, error) {
	tx, err := transaction.CurrentTx(ctx)
	if err != nil {
		return nil, err
	}
	return tx.(*memTx), nil
}

func writableTx(ctx context.Context) (*memTx, error) {
	tx, err := currentMemTx(ctx)
	if err != nil {
		return nil, err
	}
	if tx.readOnly {
		return nil, errReadOnly
	}
	return tx, nil
}

// === リポジトリ ===

type memMemberRepo struct{ s *memStore }

func (r *memMemberRepo) Save(ctx context.Context, m *member.Member) error {
	tx, err := writableTx(ctx)
	if err != nil {
		return err
	}
	if _, ok := tx.members[m.Username]; ok || r.s.hasMember(m.Username) {
		return member.ErrMemberAlreadyExists
	}
	m.ID = r.s.nextID("m")
	cp := *m
	tx.members[m.Username] = &cp
	return nil
}

func (r *memMemberRepo) FindByUsername(ctx context.Context, username string) (*member.Member, error) {
	if tx, err := currentMemTx(ctx); err == nil {
		if m, ok := tx.members[username]; ok {
			cp := *m
			return &cp, nil
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[username]
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

type memLogRepo struct{ s *memStore }

func (r *memLogRepo) Save(ctx context.Context, l *auditlog.Log) error {
	tx, err := writableTx(ctx)
	if err != nil {
		return err
	}
	l.ID = r.s.nextID("l")
	cp := *l
	tx.logs[l.Message] = &cp
	return nil
}

func (r *memLogRepo) FindByMessage(ctx context.Context, message string) (*auditlog.Log, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.logs[message]
	if !ok {
		return nil, auditlog.ErrLogNotFound
	}
	cp := *l
	return &cp, nil
}

type memOrderRepo struct{ s *memStore }

func (r *memOrderRepo) Save(ctx context.Context, o *order.Order) error {
	tx, err := writableTx(ctx)
	if err != nil {
		return err
	}
	o.ID = r.s.nextID("o")
	cp := *o
	tx.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) Update(ctx context.Context, o *order.Order) error {
	tx, err := writableTx(ctx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	failErr := r.s.failUpdate[o.ID]
	_, committed := r.s.orders[o.ID]
	r.s.mu.Unlock()
	if failErr != nil {
		return failErr
	}
	if _, staged := tx.orders[o.ID]; !staged && !committed {
		return order.ErrOrderNotFound
	}
	cp := *o
	tx.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, id string) (*order.Order, error) {
	if tx, err := currentMemTx(ctx); err == nil {
		if o, ok := tx.orders[id]; ok {
			cp := *o
			return &cp, nil
		}
	}
	o, ok := r.s.order(id)
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (r *memOrderRepo) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	var result []*order.Order
	for _, o := range r.s.orders {
		if o.IsStale(now, olderThan) && len(result) < limit {
			cp := *o
			result = append(result, &cp)
		}
	}
	return result, nil
}

func newTestTxManager(s *memStore) *transaction.Manager {
	return transaction.NewManager(s, transaction.WithLogger(zap.NewNop()))
}

// === Mock implementations ===

// MockPaymentGateway implements order.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Pay(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

// MockLockManager implements redisinfra.LockManagerInterface
type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

func (m *MockLockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryInterval time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl, maxRetries, retryInterval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

// MockLock implements redisinfra.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLock) Extend(ctx context.Context, ttl time.Duration) error {
	args := m.Called(ctx, ttl)
	return args.Error(0)
}

// MockMemberCache implements redisinfra.MemberCacheInterface
type MockMemberCache struct {
	mock.Mock
}

func (m *MockMemberCache) Get(ctx context.Context, username string) (*member.Member, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*member.Member), args.Error(1)
}

func (m *MockMemberCache) Set(ctx context.Context, mem *member.Member, ttl time.Duration) error {
	args := m.Called(ctx, mem, ttl)
	return args.Error(0)
}

func (m *MockMemberCache) Invalidate(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}
