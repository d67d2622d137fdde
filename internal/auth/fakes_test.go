// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/gatekeeper/internal/auth"
)

// memStore is an in-memory credential store. Every repository call is atomic,
// transactions run one at a time and roll back on error.
type memStore struct {
	txMu     sync.Mutex // serializes transactions
	mu       sync.Mutex
	accounts map[ulid.ULID]auth.Account
	refresh  map[string]auth.RefreshToken // by token hash
	sessions map[ulid.ULID]auth.Session

	// failNext makes the next call of the named operation fail.
	failNext map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[ulid.ULID]auth.Account),
		refresh:  make(map[string]auth.RefreshToken),
		sessions: make(map[ulid.ULID]auth.Session),
		failNext: make(map[string]error),
	}
}

func (s *memStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

// injected must be called with mu held.
func (s *memStore) injected(op string) error {
	if err, ok := s.failNext[op]; ok {
		delete(s.failNext, op)
		return err
	}
	return nil
}

func (s *memStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	if err := s.injected("tx"); err != nil {
		s.mu.Unlock()
		return err
	}
	accounts := make(map[ulid.ULID]auth.Account, len(s.accounts))
	for k, v := range s.accounts {
		accounts[k] = v
	}
	refresh := make(map[string]auth.RefreshToken, len(s.refresh))
	for k, v := range s.refresh {
		refresh[k] = v
	}
	sessions := make(map[ulid.ULID]auth.Session, len(s.sessions))
	for k, v := range s.sessions {
		sessions[k] = v
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.accounts, s.refresh, s.sessions = accounts, refresh, sessions
		s.mu.Unlock()
		return err
	}
	return nil
}

// Account repository.

type memAccounts struct{ s *memStore }

func (r memAccounts) Create(_ context.Context, a *auth.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("account.create"); err != nil {
		return err
	}
	for _, existing := range r.s.accounts {
		if existing.Email == a.Email {
			return auth.ErrDuplicate
		}
	}
	r.s.accounts[a.ID] = *a
	return nil
}

func (r memAccounts) find(op string, match func(auth.Account) bool) (*auth.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(op); err != nil {
		return nil, err
	}
	for _, a := range r.s.accounts {
		if match(a) {
			found := a
			return &found, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r memAccounts) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	return r.find("account.get", func(a auth.Account) bool { return a.ID == id })
}

func (r memAccounts) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	return r.find("account.get", func(a auth.Account) bool { return a.Email == email })
}

func (r memAccounts) GetByResetTokenHash(_ context.Context, h string) (*auth.Account, error) {
	return r.find("account.get", func(a auth.Account) bool { return h != "" && a.ResetTokenHash == h })
}

// update applies change to the first account matching match, under one lock.
func (r memAccounts) update(op string, match func(auth.Account) bool, change func(*auth.Account)) (*auth.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(op); err != nil {
		return nil, err
	}
	for id, a := range r.s.accounts {
		if match(a) {
			change(&a)
			r.s.accounts[id] = a
			return &a, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r memAccounts) ConsumeVerificationToken(_ context.Context, h string, now time.Time) (*auth.Account, error) {
	return r.update("account.update",
		func(a auth.Account) bool { return h != "" && a.VerificationTokenHash == h },
		func(a *auth.Account) { a.MarkVerified(now) })
}

func (r memAccounts) SetResetToken(_ context.Context, id ulid.ULID, h string, expiresAt, now time.Time) error {
	_, err := r.update("account.update",
		func(a auth.Account) bool { return a.ID == id },
		func(a *auth.Account) { a.SetResetToken(h, expiresAt, now) })
	return err
}

func (r memAccounts) ConsumeResetToken(_ context.Context, h, passwordHash string, now time.Time) (*auth.Account, error) {
	return r.update("account.update",
		func(a auth.Account) bool { return h != "" && a.ResetTokenHash == h && !a.ResetExpiredAt(now) },
		func(a *auth.Account) { a.CompleteReset(passwordHash, now) })
}

func (r memAccounts) UpdatePasswordHash(_ context.Context, id ulid.ULID, oldHash, newHash string, now time.Time) error {
	_, err := r.update("account.update",
		func(a auth.Account) bool { return a.ID == id && a.PasswordHash == oldHash },
		func(a *auth.Account) {
			a.PasswordHash = newHash
			a.UpdatedAt = now
		})
	return err
}

// put overwrites a stored account. Tests use it to arrange state.
func (r memAccounts) put(a *auth.Account) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accounts[a.ID] = *a
}

// gatedAccounts holds every reset token lookup until n lookups are in flight,
// so that n concurrent resets all pass the read before any of them writes.
type gatedAccounts struct {
	memAccounts
	arrived *sync.WaitGroup
}

func newGatedAccounts(s *memStore, n int) gatedAccounts {
	wg := &sync.WaitGroup{}
	wg.Add(n)
	return gatedAccounts{memAccounts: memAccounts{s}, arrived: wg}
}

func (r gatedAccounts) GetByResetTokenHash(ctx context.Context, h string) (*auth.Account, error) {
	a, err := r.memAccounts.GetByResetTokenHash(ctx, h)
	r.arrived.Done()
	r.arrived.Wait()
	return a, err
}

// interleavedAccounts runs before ahead of every password hash swap.
type interleavedAccounts struct {
	memAccounts
	before func()
}

func (r interleavedAccounts) UpdatePasswordHash(ctx context.Context, id ulid.ULID, oldHash, newHash string, now time.Time) error {
	r.before()
	return r.memAccounts.UpdatePasswordHash(ctx, id, oldHash, newHash, now)
}

// hungAccounts never answers a lookup before its context ends.
type hungAccounts struct {
	memAccounts
}

func (hungAccounts) GetByEmail(ctx context.Context, _ string) (*auth.Account, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// Refresh token repository. At most one record per account, like the
// unique index on refresh_tokens(account_id).

type memRefresh struct{ s *memStore }

func (r memRefresh) Create(_ context.Context, t *auth.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("refresh.create"); err != nil {
		return err
	}
	for _, existing := range r.s.refresh {
		if existing.AccountID == t.AccountID {
			return auth.ErrDuplicate
		}
	}
	r.s.refresh[t.TokenHash] = *t
	return nil
}

func (r memRefresh) GetByTokenHash(_ context.Context, h string) (*auth.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("refresh.get"); err != nil {
		return nil, err
	}
	t, ok := r.s.refresh[h]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &t, nil
}

func (r memRefresh) Consume(_ context.Context, h string) (*auth.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("refresh.consume"); err != nil {
		return nil, err
	}
	t, ok := r.s.refresh[h]
	if !ok {
		return nil, auth.ErrNotFound
	}
	delete(r.s.refresh, h)
	return &t, nil
}

func (r memRefresh) DeleteByAccount(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("refresh.delete"); err != nil {
		return err
	}
	for h, t := range r.s.refresh {
		if t.AccountID == id {
			delete(r.s.refresh, h)
		}
	}
	return nil
}

func (r memRefresh) CountByAccount(_ context.Context, id ulid.ULID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.refresh {
		if t.AccountID == id {
			n++
		}
	}
	return n, nil
}

func (r memRefresh) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for h, t := range r.s.refresh {
		if t.IsExpiredAt(now) {
			delete(r.s.refresh, h)
			n++
		}
	}
	return n, nil
}

// Session repository.

type memSessions struct{ s *memStore }

func (r memSessions) Create(_ context.Context, sess *auth.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("session.create"); err != nil {
		return err
	}
	r.s.sessions[sess.ID] = *sess
	return nil
}

func (r memSessions) GetByAccount(_ context.Context, id ulid.ULID) ([]*auth.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*auth.Session
	for _, sess := range r.s.sessions {
		if sess.AccountID == id {
			found := sess
			out = append(out, &found)
		}
	}
	return out, nil
}

func (r memSessions) TouchByAccount(_ context.Context, id ulid.ULID, lastSeen, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, sess := range r.s.sessions {
		if sess.AccountID == id {
			sess.LastSeenAt = lastSeen
			sess.ExpiresAt = expiresAt
			r.s.sessions[k] = sess
		}
	}
	return nil
}

func (r memSessions) DeleteByAccount(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("session.delete"); err != nil {
		return err
	}
	for k, sess := range r.s.sessions {
		if sess.AccountID == id {
			delete(r.s.sessions, k)
		}
	}
	return nil
}

func (r memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, sess := range r.s.sessions {
		if sess.IsExpiredAt(now) {
			delete(r.s.sessions, k)
			n++
		}
	}
	return n, nil
}

// recordingNotifier captures sent messages and fails when err is set.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []auth.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg auth.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) last() auth.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return auth.Message{}
	}
	return n.sent[len(n.sent)-1]
}

// recordingEvents captures events by category.
type recordingEvents struct {
	mu     sync.Mutex
	auth   []string
	audit  []string
	errors []error
}

func (e *recordingEvents) Auth(_ context.Context, msg string, _ ...slog.Attr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auth = append(e.auth, msg)
}

func (e *recordingEvents) Audit(_ context.Context, msg string, _ ...slog.Attr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audit = append(e.audit, msg)
}

func (e *recordingEvents) Error(_ context.Context, _ string, err error, _ ...slog.Attr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, err)
}

var errStoreDown = errors.New("connection refused")
