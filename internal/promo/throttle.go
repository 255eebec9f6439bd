package promo

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"promogate/internal/store"
)

// ThrottleConfig parameterizes one throttled operation namespace.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// Default throttle parameters. Code validation tolerates more noise than
// admin PIN entry; the admin lockout is deliberately long.
var (
	DefaultValidateThrottle = ThrottleConfig{MaxAttempts: 10, Window: 5 * time.Minute, Lockout: 15 * time.Minute}
	DefaultAdminThrottle    = ThrottleConfig{MaxAttempts: 5, Window: 15 * time.Minute, Lockout: 15 * time.Minute}
)

// attemptState is the persisted per-namespace throttle state. It
// survives process restarts on purpose: a relaunch mid-lockout still
// enforces the remaining wait.
type attemptState struct {
	Failures     []time.Time `json:"failures,omitempty"`
	LockoutUntil *time.Time  `json:"lockout_until,omitempty"`
}

// AttemptThrottle is a generic sliding-window rate limiter with lockout,
// tracked independently per operation namespace. Expiry is lazy; there
// is no background timer. All timestamp comparisons go through the
// injected Clock.
type AttemptThrottle struct {
	kv      store.Store
	clock   Clock
	configs map[string]ThrottleConfig

	// mu serializes the load-modify-store cycle on persisted state so
	// the lazy-expiry read path cannot interleave with the worker queue.
	mu sync.Mutex
}

// NewAttemptThrottle builds a throttle over the given namespaces.
func NewAttemptThrottle(kv store.Store, clock Clock, configs map[string]ThrottleConfig) *AttemptThrottle {
	return &AttemptThrottle{kv: kv, clock: clock, configs: configs}
}

func (t *AttemptThrottle) stateKey(namespace string) string {
	return keyAttemptPrefix + namespace
}

func (t *AttemptThrottle) config(namespace string) (ThrottleConfig, error) {
	cfg, ok := t.configs[namespace]
	if !ok {
		return ThrottleConfig{}, fmt.Errorf("unknown throttle namespace %q", namespace)
	}
	return cfg, nil
}

func (t *AttemptThrottle) loadState(namespace string) (attemptState, error) {
	raw, err := t.kv.Get(t.stateKey(namespace))
	if errors.Is(err, store.ErrKeyNotFound) {
		return attemptState{}, nil
	}
	if err != nil {
		return attemptState{}, storageErr("read attempt state", err)
	}
	var state attemptState
	if err := json.Unmarshal(raw, &state); err != nil {
		return attemptState{}, fmt.Errorf("decode attempt state: %w", err)
	}
	return state, nil
}

func (t *AttemptThrottle) saveState(namespace string, state attemptState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode attempt state: %w", err)
	}
	if err := t.kv.Set(t.stateKey(namespace), data); err != nil {
		return storageErr("persist attempt state", err)
	}
	return nil
}

// RecordFailure registers one failed attempt. When the failure count
// inside the sliding window reaches the namespace's threshold it arms
// the lockout and returns the remaining lockout duration; otherwise it
// returns zero.
func (t *AttemptThrottle) RecordFailure(namespace string) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg, err := t.config(namespace)
	if err != nil {
		return 0, err
	}
	state, err := t.loadState(namespace)
	if err != nil {
		return 0, err
	}

	now := t.clock.Now()
	state.Failures = pruneWindow(state.Failures, now, cfg.Window)
	state.Failures = append(state.Failures, now)

	var remaining time.Duration
	if len(state.Failures) >= cfg.MaxAttempts {
		until := now.Add(cfg.Lockout)
		state.LockoutUntil = &until
		state.Failures = nil
		remaining = cfg.Lockout
	}

	if err := t.saveState(namespace, state); err != nil {
		return 0, err
	}
	return remaining, nil
}

// RecordSuccess clears the namespace's failure count and lockout.
func (t *AttemptThrottle) RecordSuccess(namespace string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.config(namespace); err != nil {
		return err
	}
	if err := t.kv.Delete(t.stateKey(namespace)); err != nil {
		return storageErr("clear attempt state", err)
	}
	return nil
}

// RemainingLockout returns how much longer the namespace stays locked.
// A lockout that has already passed is cleared on the spot and reported
// as zero.
func (t *AttemptThrottle) RemainingLockout(namespace string) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.config(namespace); err != nil {
		return 0, err
	}
	state, err := t.loadState(namespace)
	if err != nil {
		return 0, err
	}
	if state.LockoutUntil == nil {
		return 0, nil
	}

	now := t.clock.Now()
	if now.Before(*state.LockoutUntil) {
		return state.LockoutUntil.Sub(now), nil
	}

	// Lockout elapsed; lazy reset.
	if err := t.kv.Delete(t.stateKey(namespace)); err != nil {
		return 0, storageErr("clear expired lockout", err)
	}
	return 0, nil
}

// Reset removes all throttle state for a namespace regardless of its
// lockout status. Used by the fresh-install soft reset.
func (t *AttemptThrottle) Reset(namespace string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.kv.Delete(t.stateKey(namespace)); err != nil {
		return storageErr("reset attempt state", err)
	}
	return nil
}

func pruneWindow(failures []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := failures[:0]
	for _, at := range failures {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}
