package clinicauth

import "sync/atomic"

// Metrics holds in-process counters for the engine's security-relevant
// outcomes. All operations are atomic; a nil receiver is a no-op, so a
// disabled configuration costs one nil check per event.
type Metrics struct {
	loginSuccess       atomic.Uint64
	loginFailure       atomic.Uint64
	lockoutTriggered   atomic.Uint64
	lockoutRejected    atomic.Uint64
	twoFactorRequired  atomic.Uint64
	twoFactorSuccess   atomic.Uint64
	twoFactorFailure   atomic.Uint64
	backupCodeUsed     atomic.Uint64
	refreshSuccess     atomic.Uint64
	refreshFailure     atomic.Uint64
	tokensRevoked      atomic.Uint64
	accountsRegistered atomic.Uint64
	passwordResets     atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	LoginSuccess       uint64
	LoginFailure       uint64
	LockoutTriggered   uint64
	LockoutRejected    uint64
	TwoFactorRequired  uint64
	TwoFactorSuccess   uint64
	TwoFactorFailure   uint64
	BackupCodeUsed     uint64
	RefreshSuccess     uint64
	RefreshFailure     uint64
	TokensRevoked      uint64
	AccountsRegistered uint64
	PasswordResets     uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Snapshot returns a copy of every counter. Counters keep advancing while
// the snapshot is taken; the copy is consistent per counter, not across them.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		LoginSuccess:       m.loginSuccess.Load(),
		LoginFailure:       m.loginFailure.Load(),
		LockoutTriggered:   m.lockoutTriggered.Load(),
		LockoutRejected:    m.lockoutRejected.Load(),
		TwoFactorRequired:  m.twoFactorRequired.Load(),
		TwoFactorSuccess:   m.twoFactorSuccess.Load(),
		TwoFactorFailure:   m.twoFactorFailure.Load(),
		BackupCodeUsed:     m.backupCodeUsed.Load(),
		RefreshSuccess:     m.refreshSuccess.Load(),
		RefreshFailure:     m.refreshFailure.Load(),
		TokensRevoked:      m.tokensRevoked.Load(),
		AccountsRegistered: m.accountsRegistered.Load(),
		PasswordResets:     m.passwordResets.Load(),
	}
}

func (m *Metrics) countLoginSuccess() {
	if m != nil {
		m.loginSuccess.Add(1)
	}
}
func (m *Metrics) countLoginFailure() {
	if m != nil {
		m.loginFailure.Add(1)
	}
}
func (m *Metrics) countLockoutTriggered() {
	if m != nil {
		m.lockoutTriggered.Add(1)
	}
}
func (m *Metrics) countLockoutRejected() {
	if m != nil {
		m.lockoutRejected.Add(1)
	}
}
func (m *Metrics) countTwoFactorRequired() {
	if m != nil {
		m.twoFactorRequired.Add(1)
	}
}
func (m *Metrics) countTwoFactorSuccess() {
	if m != nil {
		m.twoFactorSuccess.Add(1)
	}
}
func (m *Metrics) countTwoFactorFailure() {
	if m != nil {
		m.twoFactorFailure.Add(1)
	}
}
func (m *Metrics) countBackupCodeUsed() {
	if m != nil {
		m.backupCodeUsed.Add(1)
	}
}
func (m *Metrics) countRefreshSuccess() {
	if m != nil {
		m.refreshSuccess.Add(1)
	}
}
func (m *Metrics) countRefreshFailure() {
	if m != nil {
		m.refreshFailure.Add(1)
	}
}
func (m *Metrics) countTokenRevoked() {
	if m != nil {
		m.tokensRevoked.Add(1)
	}
}
func (m *Metrics) countRegistration() {
	if m != nil {
		m.accountsRegistered.Add(1)
	}
}
func (m *Metrics) countPasswordReset() {
	if m != nil {
		m.passwordResets.Add(1)
	}
}
