package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"optin-backfill/internal/model"
)

var errStore = errors.New("store unavailable")

type memUsers struct {
	users     []model.User
	pageCalls int
	failPage  int // 1-based page that fails; 0 disables
}

func newMemUsers(users ...model.User) *memUsers {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return &memUsers{users: users}
}

func (m *memUsers) Count(context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

func (m *memUsers) ListPage(_ context.Context, offset, limit int) ([]model.User, error) {
	m.pageCalls++
	if m.failPage == m.pageCalls {
		return nil, errStore
	}
	if offset >= len(m.users) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.users) {
		end = len(m.users)
	}
	return append([]model.User(nil), m.users[offset:end]...), nil
}

type attrKey struct {
	userID uint
	name   string
}

type memAttrs struct {
	mu      sync.Mutex
	values  map[attrKey]string
	sets    int
	failSet uint // user id whose Set fails; 0 disables
}

func newMemAttrs() *memAttrs {
	return &memAttrs{values: make(map[attrKey]string)}
}

func (m *memAttrs) Get(_ context.Context, userID uint, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[attrKey{userID, name}], nil
}

func (m *memAttrs) Set(_ context.Context, userID uint, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != 0 && m.failSet == userID {
		return errStore
	}
	m.sets++
	m.values[attrKey{userID, name}] = value
	return nil
}

func (m *memAttrs) value(userID uint) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[attrKey{userID, model.MarketingEmailsOptIn}]
	return v, ok
}

type recordingSleep struct {
	calls []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

type countingObserver struct {
	batches, scanned, created int
}

func (o *countingObserver) ObserveBatch(scanned, created int) {
	o.batches++
	o.scanned += scanned
	o.created += created
}
