package promo

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"promogate/internal/store"
)

// RedemptionRecord marks a code as consumed by one installation. Its
// presence is the sole authority on "already redeemed for this install".
// Records are created exactly once and never mutated afterwards.
type RedemptionRecord struct {
	InstallID  string    `json:"install_id"`
	Code       string    `json:"code"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// backupBlob bundles the full code set and redemption records together
// with the install identity they were captured under. Restore refuses a
// blob minted under a different identity, which is what defeats naive
// backup-transplant abuse.
type backupBlob struct {
	InstallID   string                      `json:"install_id"`
	Codes       []PromoCode                 `json:"codes"`
	Redemptions map[string]RedemptionRecord `json:"redemptions"`
	CapturedAt  time.Time                   `json:"captured_at"`
}

// CodeStore owns the durable set of issued codes and the per-install
// redemption records. The Engine's worker queue is the only writer; the
// internal lock exists so read paths outside the queue stay race-free.
type CodeStore struct {
	kv     store.Store
	backup store.Store

	mu          sync.RWMutex
	codes       map[string]PromoCode        // canonical code -> PromoCode
	redemptions map[string]RedemptionRecord // installID|code -> record
}

// NewCodeStore loads the persisted code set and redemption records from
// the primary store.
func NewCodeStore(kv, backup store.Store) (*CodeStore, error) {
	cs := &CodeStore{
		kv:          kv,
		backup:      backup,
		codes:       make(map[string]PromoCode),
		redemptions: make(map[string]RedemptionRecord),
	}
	if err := cs.load(); err != nil {
		return nil, err
	}
	return cs, nil
}

func (cs *CodeStore) load() error {
	raw, err := cs.kv.Get(keyCodes)
	switch {
	case err == nil:
		var codes []PromoCode
		if err := json.Unmarshal(raw, &codes); err != nil {
			return fmt.Errorf("decode code set: %w", err)
		}
		for _, c := range codes {
			cs.codes[c.Code] = c
		}
	case errors.Is(err, store.ErrKeyNotFound):
		// First launch, nothing issued yet.
	default:
		return storageErr("read code set", err)
	}

	raw, err = cs.kv.Get(keyRedemptions)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &cs.redemptions); err != nil {
			return fmt.Errorf("decode redemption records: %w", err)
		}
	case errors.Is(err, store.ErrKeyNotFound):
	default:
		return storageErr("read redemption records", err)
	}
	return nil
}

func redemptionKey(installID, code string) string {
	return installID + "|" + code
}

// Contains reports whether a canonical code has been issued.
func (cs *CodeStore) Contains(code string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, ok := cs.codes[code]
	return ok
}

// TypeOf returns the type of an issued code.
func (cs *CodeStore) TypeOf(code string) (CodeType, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.codes[code]
	if !ok {
		return "", false
	}
	return c.Type, true
}

// Add persists a newly generated code. The uniqueness invariant (no two
// codes share a code string, regardless of type) is enforced here as the
// last line of defense; the generator checks before calling.
func (cs *CodeStore) Add(code PromoCode) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, exists := cs.codes[code.Code]; exists {
		return fmt.Errorf("code %s already issued", maskCode(code.Code))
	}
	cs.codes[code.Code] = code
	if err := cs.persistCodes(); err != nil {
		delete(cs.codes, code.Code)
		return err
	}
	return nil
}

// IsRedeemed reports whether this installation has already consumed the
// code.
func (cs *CodeStore) IsRedeemed(installID, code string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, ok := cs.redemptions[redemptionKey(installID, code)]
	return ok
}

// MarkRedeemed records consumption of a code by an installation.
// Idempotent: re-marking an already-marked pair is a no-op, not an
// error, so a retried write cannot fail.
func (cs *CodeStore) MarkRedeemed(installID, code string, at time.Time) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	key := redemptionKey(installID, code)
	if _, ok := cs.redemptions[key]; ok {
		return nil
	}
	cs.redemptions[key] = RedemptionRecord{
		InstallID:  installID,
		Code:       code,
		RedeemedAt: at,
	}
	if err := cs.persistRedemptions(); err != nil {
		delete(cs.redemptions, key)
		return err
	}
	return nil
}

// RecordsFor returns the redemption records belonging to one
// installation.
func (cs *CodeStore) RecordsFor(installID string) []RedemptionRecord {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	var records []RedemptionRecord
	for _, r := range cs.redemptions {
		if r.InstallID == installID {
			records = append(records, r)
		}
	}
	return records
}

// All returns every issued code, newest first. Used by the generator's
// uniqueness check and the admin listing; the redemption path never sees
// it.
func (cs *CodeStore) All() []PromoCode {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.allLocked()
}

func (cs *CodeStore) allLocked() []PromoCode {
	codes := make([]PromoCode, 0, len(cs.codes))
	for _, c := range cs.codes {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		if codes[i].CreatedAt.Equal(codes[j].CreatedAt) {
			return codes[i].Code < codes[j].Code
		}
		return codes[i].CreatedAt.After(codes[j].CreatedAt)
	})
	return codes
}

// Backup captures the full state into the backup store, keyed by the
// install identity it was taken under.
func (cs *CodeStore) Backup(installID string, at time.Time) error {
	cs.mu.RLock()
	redemptions := make(map[string]RedemptionRecord, len(cs.redemptions))
	for key, r := range cs.redemptions {
		redemptions[key] = r
	}
	blob := backupBlob{
		InstallID:   installID,
		Codes:       cs.allLocked(),
		Redemptions: redemptions,
		CapturedAt:  at,
	}
	cs.mu.RUnlock()
	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("encode backup blob: %w", err)
	}
	if err := cs.backup.Set(backupKey, data); err != nil {
		return storageErr("persist backup blob", err)
	}
	return nil
}

// RestoreIfEmpty replays a matching backup into an empty live store.
// Invoked on launch; covers an app-data reset that preserved the install
// identity. Refused when the blob was captured under a different
// identity, and additive-only: a record already present in the live
// store is never overwritten, so a stale backup cannot re-arm a consumed
// code.
func (cs *CodeStore) RestoreIfEmpty(installID string) (bool, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.codes) > 0 || len(cs.redemptions) > 0 {
		return false, nil
	}

	raw, err := cs.backup.Get(backupKey)
	if errors.Is(err, store.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("read backup blob", err)
	}

	var blob backupBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return false, fmt.Errorf("decode backup blob: %w", err)
	}
	if blob.InstallID != installID {
		return false, nil
	}

	for _, c := range blob.Codes {
		if _, exists := cs.codes[c.Code]; !exists {
			cs.codes[c.Code] = c
		}
	}
	for key, r := range blob.Redemptions {
		if _, exists := cs.redemptions[key]; !exists {
			cs.redemptions[key] = r
		}
	}

	if err := cs.persistCodes(); err != nil {
		return false, err
	}
	if err := cs.persistRedemptions(); err != nil {
		return false, err
	}
	return true, nil
}

func (cs *CodeStore) persistCodes() error {
	codes := make([]PromoCode, 0, len(cs.codes))
	for _, c := range cs.codes {
		codes = append(codes, c)
	}
	data, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("encode code set: %w", err)
	}
	if err := cs.kv.Set(keyCodes, data); err != nil {
		return storageErr("persist code set", err)
	}
	return nil
}

func (cs *CodeStore) persistRedemptions() error {
	data, err := json.Marshal(cs.redemptions)
	if err != nil {
		return fmt.Errorf("encode redemption records: %w", err)
	}
	if err := cs.kv.Set(keyRedemptions, data); err != nil {
		return storageErr("persist redemption records", err)
	}
	return nil
}
