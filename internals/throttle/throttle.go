// Package throttle holds the pure per-account throttling decisions: login
// lockout, reset-request blocking and the daily password-change cap. The
// functions take the relevant counters plus "now" and return updated state;
// nothing here touches storage or the clock.
package throttle

import "time"

// Config carries the thresholds and durations. Zero values are replaced by
// the documented defaults via Default.
type Config struct {
	// MaxFailedLogins failed password checks trigger a lockout.
	MaxFailedLogins int
	// LoginLock is how long a locked account rejects all login attempts.
	LoginLock time.Duration

	// MaxResetRequests reset-code requests are allowed per ResetWindow.
	MaxResetRequests int
	// ResetWindow is the rolling window for counting reset requests.
	ResetWindow time.Duration
	// ResetBlock is how long code issuance is silently suspended once the
	// window cap is exceeded.
	ResetBlock time.Duration

	// MaxDailyPasswordChanges successful password changes are allowed per
	// calendar day.
	MaxDailyPasswordChanges int
}

// Default returns the production thresholds.
func Default() Config {
	return Config{
		MaxFailedLogins:         5,
		LoginLock:               15 * time.Minute,
		MaxResetRequests:        3,
		ResetWindow:             15 * time.Minute,
		ResetBlock:              30 * time.Minute,
		MaxDailyPasswordChanges: 3,
	}
}

// LoginState is the slice of account state the login limiter reads and writes.
type LoginState struct {
	FailedAttempts int
	LockUntil      *time.Time
}

// LockRemaining reports whether the account is locked at now and, if so, how
// long until it unlocks.
func LockRemaining(st LoginState, now time.Time) (time.Duration, bool) {
	if st.LockUntil == nil || !st.LockUntil.After(now) {
		return 0, false
	}
	return st.LockUntil.Sub(now), true
}

// RecordFailure increments the failed-attempt counter; at the threshold it
// arms the lockout and resets the counter to zero.
func RecordFailure(cfg Config, st LoginState, now time.Time) LoginState {
	st.FailedAttempts++
	if st.FailedAttempts >= cfg.MaxFailedLogins {
		until := now.Add(cfg.LoginLock)
		st.LockUntil = &until
		st.FailedAttempts = 0
	}
	return st
}

// ClearFailures resets the counter and lockout after a successful password
// check.
func ClearFailures(st LoginState) LoginState {
	st.FailedAttempts = 0
	st.LockUntil = nil
	return st
}

// ResetState is the slice of account state the reset-request limiter reads
// and writes.
type ResetState struct {
	Attempts      int
	LastAttemptAt *time.Time
	BlockedUntil  *time.Time
}

// IsResetBlocked reports whether code issuance is currently suspended.
func IsResetBlocked(st ResetState, now time.Time) bool {
	return st.BlockedUntil != nil && st.BlockedUntil.After(now)
}

// RecordResetRequest counts one reset request inside the rolling window. The
// count restarts when the previous attempt fell outside the window. When the
// count exceeds the cap the state is armed with a block and allowed is false;
// the caller must still answer with the uniform acknowledgement.
func RecordResetRequest(cfg Config, st ResetState, now time.Time) (ResetState, bool) {
	if st.LastAttemptAt != nil && now.Sub(*st.LastAttemptAt) > cfg.ResetWindow {
		st.Attempts = 0
	}
	st.Attempts++
	at := now
	st.LastAttemptAt = &at

	if st.Attempts > cfg.MaxResetRequests {
		until := now.Add(cfg.ResetBlock)
		st.BlockedUntil = &until
		return st, false
	}
	st.BlockedUntil = nil
	return st, true
}

// ChangeState is the slice of account state the daily password-change cap
// reads and writes.
type ChangeState struct {
	Count int
	Date  *time.Time
}

// AllowPasswordChange rolls the counter over on a new calendar day and
// reports whether one more change is allowed today. The returned state has
// the rollover applied but is NOT incremented; call RecordPasswordChange once
// the change actually happens.
func AllowPasswordChange(cfg Config, st ChangeState, now time.Time) (ChangeState, bool) {
	if st.Date == nil || !sameDay(*st.Date, now) {
		st.Count = 0
		at := now
		st.Date = &at
	}
	return st, st.Count < cfg.MaxDailyPasswordChanges
}

// RecordPasswordChange counts one successful change against today.
func RecordPasswordChange(st ChangeState, now time.Time) ChangeState {
	st.Count++
	at := now
	st.Date = &at
	return st
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
