// Package memory provides an in-memory AccountStore for tests and
// single-process deployments. All state lives behind one mutex, which also
// satisfies the atomicity the lockout transition requires.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apsicologia/clinicauth"
)

type record struct {
	account     clinicauth.Account
	backupCodes map[[32]byte]struct{}
}

// Store is a mutex-guarded map of accounts keyed by ID.
type Store struct {
	mu   sync.Mutex
	byID map[string]*record
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID: make(map[string]*record),
	}
}

var _ clinicauth.AccountStore = (*Store)(nil)

func (s *Store) Create(_ context.Context, a *clinicauth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(a.Email)
	for _, rec := range s.byID {
		if rec.account.DeletedAt == nil && strings.ToLower(rec.account.Email) == email {
			return clinicauth.ErrDuplicateEmail
		}
	}
	if _, exists := s.byID[a.ID]; exists {
		return fmt.Errorf("%w: account id already exists", clinicauth.ErrStoreUnavailable)
	}

	s.byID[a.ID] = &record{
		account:     cloneAccount(a),
		backupCodes: make(map[[32]byte]struct{}),
	}
	return nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*clinicauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lowered := strings.ToLower(email)
	for _, rec := range s.byID {
		if rec.account.DeletedAt == nil && strings.ToLower(rec.account.Email) == lowered {
			out := cloneAccount(&rec.account)
			return &out, nil
		}
	}
	return nil, clinicauth.ErrAccountNotFound
}

func (s *Store) GetByID(_ context.Context, id string) (*clinicauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, clinicauth.ErrAccountNotFound
	}
	out := cloneAccount(&rec.account)
	return &out, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.update(id, func(a *clinicauth.Account) {
		a.PasswordHash = hash
		// A fresh hash also invalidates any outstanding reset challenge.
		a.ResetTokenHash = nil
		a.ResetExpires = nil
	})
}

func (s *Store) RecordLoginFailure(_ context.Context, id string, now time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return 0, nil, clinicauth.ErrAccountNotFound
	}

	next := clinicauth.NextOnFailure(clinicauth.LockState{
		FailedCount: rec.account.FailedLoginCount,
		LockedUntil: rec.account.LockedUntil,
	}, now)

	rec.account.FailedLoginCount = next.FailedCount
	rec.account.LockedUntil = cloneTime(next.LockedUntil)
	rec.account.UpdatedAt = now

	return next.FailedCount, cloneTime(next.LockedUntil), nil
}

func (s *Store) RecordLoginSuccess(_ context.Context, id string, at time.Time, origin string) error {
	return s.update(id, func(a *clinicauth.Account) {
		a.FailedLoginCount = 0
		a.LockedUntil = nil
		at := at
		a.LastLoginAt = &at
		a.LastLoginIP = origin
		a.UpdatedAt = at
	})
}

func (s *Store) EnableTwoFactor(_ context.Context, id string, secret []byte, codeHashes [][32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return clinicauth.ErrAccountNotFound
	}

	rec.account.TwoFactorEnabled = true
	rec.account.TwoFactorSecret = append([]byte(nil), secret...)
	rec.backupCodes = make(map[[32]byte]struct{}, len(codeHashes))
	for _, h := range codeHashes {
		rec.backupCodes[h] = struct{}{}
	}
	return nil
}

func (s *Store) DisableTwoFactor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return clinicauth.ErrAccountNotFound
	}

	rec.account.TwoFactorEnabled = false
	rec.account.TwoFactorSecret = nil
	rec.account.TwoFactorLastStep = 0
	rec.backupCodes = make(map[[32]byte]struct{})
	return nil
}

func (s *Store) UpdateTwoFactorStep(_ context.Context, id string, step int64) error {
	return s.update(id, func(a *clinicauth.Account) {
		a.TwoFactorLastStep = step
	})
}

func (s *Store) ConsumeBackupCode(_ context.Context, id string, codeHash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return false, clinicauth.ErrAccountNotFound
	}
	if _, exists := rec.backupCodes[codeHash]; !exists {
		return false, nil
	}
	delete(rec.backupCodes, codeHash)
	return true, nil
}

func (s *Store) ReplaceBackupCodes(_ context.Context, id string, codeHashes [][32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return clinicauth.ErrAccountNotFound
	}

	rec.backupCodes = make(map[[32]byte]struct{}, len(codeHashes))
	for _, h := range codeHashes {
		rec.backupCodes[h] = struct{}{}
	}
	return nil
}

func (s *Store) SetActive(_ context.Context, id string, active bool) error {
	return s.update(id, func(a *clinicauth.Account) {
		a.Active = active
	})
}

func (s *Store) SoftDelete(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(a *clinicauth.Account) {
		at := at
		a.DeletedAt = &at
		a.UpdatedAt = at
	})
}

func (s *Store) SetResetToken(_ context.Context, id string, tokenHash [32]byte, expires time.Time) error {
	return s.update(id, func(a *clinicauth.Account) {
		a.ResetTokenHash = append([]byte(nil), tokenHash[:]...)
		expires := expires
		a.ResetExpires = &expires
	})
}

func (s *Store) ConsumeResetToken(_ context.Context, tokenHash [32]byte, now time.Time) (*clinicauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.byID {
		a := &rec.account
		if a.DeletedAt != nil || len(a.ResetTokenHash) == 0 {
			continue
		}
		if string(a.ResetTokenHash) != string(tokenHash[:]) {
			continue
		}
		if a.ResetExpires == nil || now.After(*a.ResetExpires) {
			return nil, clinicauth.ErrResetInvalid
		}

		a.ResetTokenHash = nil
		a.ResetExpires = nil
		out := cloneAccount(a)
		return &out, nil
	}
	return nil, clinicauth.ErrResetInvalid
}

func (s *Store) SetVerificationToken(_ context.Context, id string, tokenHash [32]byte, expires time.Time) error {
	return s.update(id, func(a *clinicauth.Account) {
		a.VerificationTokenHash = append([]byte(nil), tokenHash[:]...)
		expires := expires
		a.VerificationExpires = &expires
	})
}

func (s *Store) ConsumeVerificationToken(_ context.Context, tokenHash [32]byte, now time.Time) (*clinicauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.byID {
		a := &rec.account
		if a.DeletedAt != nil || len(a.VerificationTokenHash) == 0 {
			continue
		}
		if string(a.VerificationTokenHash) != string(tokenHash[:]) {
			continue
		}
		if a.VerificationExpires == nil || now.After(*a.VerificationExpires) {
			return nil, clinicauth.ErrVerificationInvalid
		}

		a.EmailVerified = true
		a.VerificationTokenHash = nil
		a.VerificationExpires = nil
		out := cloneAccount(a)
		return &out, nil
	}
	return nil, clinicauth.ErrVerificationInvalid
}

func (s *Store) update(id string, mutate func(*clinicauth.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return clinicauth.ErrAccountNotFound
	}
	mutate(&rec.account)
	return nil
}

func cloneAccount(a *clinicauth.Account) clinicauth.Account {
	out := *a
	out.TwoFactorSecret = append([]byte(nil), a.TwoFactorSecret...)
	out.VerificationTokenHash = append([]byte(nil), a.VerificationTokenHash...)
	out.ResetTokenHash = append([]byte(nil), a.ResetTokenHash...)
	out.DeletedAt = cloneTime(a.DeletedAt)
	out.VerificationExpires = cloneTime(a.VerificationExpires)
	out.ResetExpires = cloneTime(a.ResetExpires)
	out.LockedUntil = cloneTime(a.LockedUntil)
	out.LastLoginAt = cloneTime(a.LastLoginAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
