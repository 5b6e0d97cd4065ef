package main

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
)

// stagedStore はコミットされるまで書き込みを保留するインメモリストア
type stagedStore struct {
	mu        sync.Mutex
	committed map[string]*member.Member
}

type stagedTx struct {
	store   *stagedStore
	pending map[string]*member.Member
}

func (t *stagedTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for k, v := range t.pending {
		t.store.committed[k] = v
	}
	return nil
}

func (t *stagedTx) Rollback() error { return nil }

func (s *stagedStore) Begin(ctx context.Context, readOnly bool) (transaction.Tx, error) {
	return &stagedTx{store: s, pending: map[string]*member.Member{}}, nil
}

func (s *stagedStore) Save(ctx context.Context, m *member.Member) error {
	tx, err := transaction.CurrentTx(ctx)
	if err != nil {
		return err
	}
	tx.(*stagedTx).pending[m.Username] = m
	return nil
}

func (s *stagedStore) FindByUsername(ctx context.Context, username string) (*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.committed[username]
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	return m, nil
}

func TestDemo_RunAllScenarios(t *testing.T) {
	store := &stagedStore{committed: map[string]*member.Member{}}
	d := &demo{tm: transaction.NewManager(store), members: store}

	failed := d.run(context.Background(), nil)

	assert.Equal(t, 0, failed)
	// B の外側と C がコミットされる
	assert.Len(t, store.committed, 2)
}

func TestDemo_RunSelectedScenario(t *testing.T) {
	store := &stagedStore{committed: map[string]*member.Member{}}
	d := &demo{tm: transaction.NewManager(store), members: store}

	failed := d.run(context.Background(), []string{"c"})

	require.Equal(t, 0, failed)
	assert.Len(t, store.committed, 1)
}
