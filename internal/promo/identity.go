package promo

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"promogate/internal/store"
)

// Persisted state layout. Every durable piece of engine state lives
// under one of these keys in the key-value backend.
const (
	keyInstallID    = "install_id"
	keyCodes        = "codes"
	keyRedemptions  = "redemptions"
	keyGrant        = "entitlement"
	keyGrantStamp   = "entitlement_stamp"
	keyAdminSession = "admin_session"

	keyAttemptPrefix = "attempts:"

	// backupKey is the single key the backup blob lives under in the
	// backup store, which is logically separate from the primary store.
	backupKey = "backup"
)

// Throttle namespaces. Code validation and admin PIN auth are throttled
// independently.
const (
	NamespaceValidate = "validate"
	NamespaceAdmin    = "admin"
)

// loadOrMintInstallID returns the stable install identity, minting and
// persisting a fresh one on first launch. The identity is never
// regenerated while local storage persists; a storage wipe that destroys
// it is indistinguishable from a different device.
func loadOrMintInstallID(kv store.Store, random RandomSource) (string, error) {
	raw, err := kv.Get(keyInstallID)
	if err == nil {
		return string(raw), nil
	}
	if !errors.Is(err, store.ErrKeyNotFound) {
		return "", storageErr("read install identity", err)
	}

	id, err := uuid.NewRandomFromReader(random)
	if err != nil {
		return "", fmt.Errorf("mint install identity: %w", err)
	}
	if err := kv.Set(keyInstallID, []byte(id.String())); err != nil {
		return "", storageErr("persist install identity", err)
	}
	return id.String(), nil
}
