package promo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"promogate/internal/store"
)

// ErrEngineClosed is returned for operations submitted after Close.
var ErrEngineClosed = errors.New("promo: engine closed")

// EventSink receives engine events the host surfaces care about. The
// WebSocket hub implements it to push entitlement changes to open UIs.
type EventSink interface {
	GrantChanged(grant EntitlementGrant)
}

// Options configures a new Engine. Store is required; everything else
// has a production default.
type Options struct {
	Store       store.Store
	BackupStore store.Store

	Clock  Clock
	Random RandomSource
	Logger *slog.Logger

	Admin            AdminConfig
	ValidateThrottle ThrottleConfig
	AdminThrottle    ThrottleConfig

	Purchase PurchaseProvider
	Events   EventSink
}

// Engine is the licensing engine facade. It is constructed once at
// startup with injected Clock, RandomSource, and Store; callers hold a
// reference rather than reaching for global state.
//
// All mutating operations are funnelled through a single worker
// goroutine (a message-passing actor owning exclusive write access to
// the code store, throttle state, and admin session), so the
// validate-then-mark redemption sequence is atomic with respect to
// concurrent callers. Requests are processed in submission order.
type Engine struct {
	clock  Clock
	random RandomSource
	kv     store.Store
	logger *slog.Logger

	installID string
	codes     *CodeStore
	generator *CodeGenerator
	throttle  *AttemptThrottle
	admin     *AdminAuthGate
	guard     *IntegrityGuard
	purchase  PurchaseProvider
	events    EventSink
	metrics   *engineMetrics

	requests  chan func()
	quit      chan struct{}
	closeOnce sync.Once
}

// New wires up the engine, minting the install identity on first launch
// and replaying a matching backup when the live store is empty.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("promo: Options.Store is required")
	}
	if opts.BackupStore == nil {
		opts.BackupStore = store.NewMemStore()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Random == nil {
		opts.Random = SystemRandom()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Purchase == nil {
		opts.Purchase = NoPurchase{}
	}
	if opts.ValidateThrottle == (ThrottleConfig{}) {
		opts.ValidateThrottle = DefaultValidateThrottle
	}
	if opts.AdminThrottle == (ThrottleConfig{}) {
		opts.AdminThrottle = DefaultAdminThrottle
	}

	installID, err := loadOrMintInstallID(opts.Store, opts.Random)
	if err != nil {
		return nil, err
	}

	codes, err := NewCodeStore(opts.Store, opts.BackupStore)
	if err != nil {
		return nil, err
	}

	throttle := NewAttemptThrottle(opts.Store, opts.Clock, map[string]ThrottleConfig{
		NamespaceValidate: opts.ValidateThrottle,
		NamespaceAdmin:    opts.AdminThrottle,
	})

	admin, err := NewAdminAuthGate(opts.Store, opts.Clock, throttle, opts.Admin)
	if err != nil {
		return nil, err
	}

	guard, err := NewIntegrityGuard(installID)
	if err != nil {
		return nil, err
	}

	metrics, err := newEngineMetrics()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		clock:     opts.Clock,
		random:    opts.Random,
		kv:        opts.Store,
		logger:    opts.Logger,
		installID: installID,
		codes:     codes,
		generator: NewCodeGenerator(opts.Random, opts.Clock, codes),
		throttle:  throttle,
		admin:     admin,
		guard:     guard,
		purchase:  opts.Purchase,
		events:    opts.Events,
		metrics:   metrics,
		requests:  make(chan func()),
		quit:      make(chan struct{}),
	}

	restored, err := codes.RestoreIfEmpty(installID)
	if err != nil {
		return nil, err
	}
	if restored {
		e.logInfo(context.Background(), "backup_restore", "Restored code store from backup",
			slog.Int("codes", len(codes.All())),
		)
	}

	go e.run()
	return e, nil
}

// InstallID returns the stable installation identity.
func (e *Engine) InstallID() string {
	return e.installID
}

// Close stops the worker goroutine. In-flight operations complete;
// later submissions fail with ErrEngineClosed.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.quit)
	})
}

func (e *Engine) run() {
	for {
		select {
		case fn := <-e.requests:
			fn()
		case <-e.quit:
			return
		}
	}
}

// do submits an operation to the worker queue and waits for it.
func (e *Engine) do(fn func()) error {
	done := make(chan struct{})
	select {
	case e.requests <- func() {
		defer close(done)
		fn()
	}:
		<-done
		return nil
	case <-e.quit:
		return ErrEngineClosed
	}
}

// Redeem validates and consumes a promo code for this installation,
// returning the resulting entitlement. The whole sequence runs inside
// the serialized worker, so of N concurrent calls with the same code
// exactly one succeeds and the rest observe AlreadyRedeemed.
func (e *Engine) Redeem(ctx context.Context, rawCode string) (EntitlementGrant, error) {
	var (
		grant EntitlementGrant
		err   error
	)
	if doErr := e.do(func() {
		grant, err = e.redeemSerialized(ctx, rawCode)
	}); doErr != nil {
		return NoGrant(), doErr
	}
	return grant, err
}

func (e *Engine) redeemSerialized(ctx context.Context, rawCode string) (EntitlementGrant, error) {
	remaining, err := e.throttle.RemainingLockout(NamespaceValidate)
	if err != nil {
		return NoGrant(), err
	}
	if remaining > 0 {
		e.metrics.recordRedemption(ctx, "locked_out")
		return NoGrant(), &LockoutError{Namespace: NamespaceValidate, Remaining: remaining}
	}

	code := NormalizeCode(rawCode)

	if err := ValidateCodeFormat(code); err != nil {
		e.metrics.recordRedemption(ctx, "invalid_format")
		return NoGrant(), e.redemptionFailure(ctx, code, "invalid_format", err)
	}

	if !e.codes.Contains(code) {
		e.metrics.recordRedemption(ctx, "not_found")
		return NoGrant(), e.redemptionFailure(ctx, code, "not_found", ErrNotFound)
	}

	// A known code that is already consumed is not an attack signal; it
	// does not count against the throttle.
	if e.codes.IsRedeemed(e.installID, code) {
		e.metrics.recordRedemption(ctx, "already_redeemed")
		return NoGrant(), ErrAlreadyRedeemed
	}

	// Mark before grant: once the record lands, the code is consumed
	// even if the process dies before the grant cache is written. The
	// grant is recomputed from the records on the next read.
	now := e.clock.Now()
	if err := e.codes.MarkRedeemed(e.installID, code, now); err != nil {
		e.metrics.recordRedemption(ctx, "storage_error")
		return NoGrant(), err
	}

	grant := e.grantFromRecords()
	if err := e.persistGrantCache(grant); err != nil {
		// The redemption record is durable; the cache is best-effort.
		e.logError(ctx, "grant_cache", "Failed to persist entitlement cache",
			slog.String("error", err.Error()),
		)
	}

	if err := e.throttle.RecordSuccess(NamespaceValidate); err != nil {
		return NoGrant(), err
	}

	if err := e.codes.Backup(e.installID, now); err != nil {
		e.logWarn(ctx, "backup", "Failed to refresh backup blob",
			slog.String("error", err.Error()),
		)
	}

	e.metrics.recordRedemption(ctx, "success")
	e.logInfo(ctx, "redeem", "Code redeemed",
		slog.String("code_masked", maskCode(code)),
		slog.String("grant_type", string(grant.Type)),
	)
	if e.events != nil {
		e.events.GrantChanged(MergeGrants(grant, e.purchase.PurchaseGrant(), now))
	}
	return grant, nil
}

// redemptionFailure records a throttle failure for the validate
// namespace and converts it to a lockout error when the threshold trips.
func (e *Engine) redemptionFailure(ctx context.Context, code, reason string, cause error) error {
	lockout, err := e.throttle.RecordFailure(NamespaceValidate)
	if err != nil {
		return err
	}
	e.logWarn(ctx, "redeem", "Redemption rejected",
		slog.String("code_masked", maskCode(code)),
		slog.String("reason", reason),
	)
	if lockout > 0 {
		e.metrics.recordLockout(ctx, NamespaceValidate)
		return &LockoutError{Namespace: NamespaceValidate, Remaining: lockout}
	}
	return cause
}

// CurrentGrant returns the effective entitlement: integrity-checked,
// expiry-checked, merged with the purchase-derived grant. A stamp
// mismatch fails closed to None and is reported, but redemption records
// stay marked, so corrupting the flag never re-arms a consumed code.
func (e *Engine) CurrentGrant(ctx context.Context) EntitlementGrant {
	now := e.clock.Now()
	stored, ok := e.loadGrantCache(ctx)
	if !ok {
		stored = e.grantFromRecords()
	}
	return MergeGrants(stored, e.purchase.PurchaseGrant(), now)
}

// loadGrantCache reads and verifies the persisted grant. The second
// return is false when no usable cache exists, including the fail-closed
// tamper case.
func (e *Engine) loadGrantCache(ctx context.Context) (EntitlementGrant, bool) {
	raw, err := e.kv.Get(keyGrant)
	if errors.Is(err, store.ErrKeyNotFound) {
		return NoGrant(), false
	}
	if err != nil {
		return NoGrant(), false
	}

	var grant EntitlementGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		e.reportIntegrityViolation(ctx, "undecodable entitlement cache")
		return NoGrant(), true
	}

	stampRaw, err := e.kv.Get(keyGrantStamp)
	if err != nil {
		e.reportIntegrityViolation(ctx, "missing entitlement stamp")
		return NoGrant(), true
	}
	if !e.guard.Verify(grant, string(stampRaw)) {
		e.reportIntegrityViolation(ctx, "entitlement stamp mismatch")
		return NoGrant(), true
	}
	return grant, true
}

// reportIntegrityViolation surfaces tampering to the observability sink.
// It is never returned to the redemption flow.
func (e *Engine) reportIntegrityViolation(ctx context.Context, detail string) {
	e.metrics.recordIntegrityViolation(ctx)
	e.logError(ctx, "integrity", "Entitlement integrity check failed",
		slog.String("detail", detail),
		slog.String("error", ErrIntegrityViolation.Error()),
	)
}

// grantFromRecords recomputes the redemption-derived grant as a pure
// function of this installation's redemption records.
func (e *Engine) grantFromRecords() EntitlementGrant {
	now := e.clock.Now()
	grant := NoGrant()
	for _, record := range e.codes.RecordsFor(e.installID) {
		codeType, ok := e.codes.TypeOf(record.Code)
		if !ok {
			continue
		}
		var derived EntitlementGrant
		switch codeType {
		case CodeTypeLifetime:
			derived = EntitlementGrant{Type: GrantLifetime}
		case CodeTypeMonthly:
			expires := record.RedeemedAt.Add(MonthlyGrantDuration)
			derived = EntitlementGrant{Type: GrantMonthly, ExpiresAt: &expires}
		}
		grant = MergeGrants(grant, derived, now)
	}
	return grant
}

func (e *Engine) persistGrantCache(grant EntitlementGrant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("encode entitlement cache: %w", err)
	}
	if err := e.kv.Set(keyGrant, data); err != nil {
		return storageErr("persist entitlement cache", err)
	}
	if err := e.kv.Set(keyGrantStamp, []byte(e.guard.Stamp(grant))); err != nil {
		return storageErr("persist entitlement stamp", err)
	}
	return nil
}

// AuthenticateAdmin runs a PIN attempt through the serialized path.
func (e *Engine) AuthenticateAdmin(ctx context.Context, pin string) error {
	var err error
	if doErr := e.do(func() {
		err = e.admin.Authenticate(pin)
		switch {
		case err == nil:
			e.metrics.recordAdminAuth(ctx, "success")
			e.logInfo(ctx, "admin_auth", "Admin authenticated")
		case isLockout(err):
			e.metrics.recordAdminAuth(ctx, "locked_out")
			e.metrics.recordLockout(ctx, NamespaceAdmin)
			e.logWarn(ctx, "admin_auth", "Admin authentication locked out")
		default:
			e.metrics.recordAdminAuth(ctx, "failed")
			e.logWarn(ctx, "admin_auth", "Admin authentication failed")
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// IsAdminAuthenticated lazily re-checks the persisted session expiry.
func (e *Engine) IsAdminAuthenticated() bool {
	return e.admin.IsAuthenticated()
}

// AdminSessionExpiry reports the hard cutoff of the live admin session.
func (e *Engine) AdminSessionExpiry() (time.Time, bool) {
	return e.admin.SessionExpiresAt()
}

// EndAdminSession logs the admin out.
func (e *Engine) EndAdminSession(ctx context.Context) error {
	var err error
	if doErr := e.do(func() {
		err = e.admin.EndSession()
	}); doErr != nil {
		return doErr
	}
	return err
}

// GenerateCode issues one new code of the given type. Admin-gated: the
// engine itself refuses without a live session, independent of any UI
// check.
func (e *Engine) GenerateCode(ctx context.Context, codeType CodeType) (PromoCode, error) {
	var (
		code PromoCode
		err  error
	)
	if doErr := e.do(func() {
		if sessErr := e.admin.RequireSession(); sessErr != nil {
			err = sessErr
			return
		}
		code, err = e.generator.Generate(codeType)
		if err != nil {
			return
		}
		e.metrics.recordCodeGenerated(ctx, codeType)
		e.logInfo(ctx, "generate_code", "Code generated",
			slog.String("code_masked", maskCode(code.Code)),
			slog.String("type", string(codeType)),
		)
		if backupErr := e.codes.Backup(e.installID, e.clock.Now()); backupErr != nil {
			e.logWarn(ctx, "backup", "Failed to refresh backup blob",
				slog.String("error", backupErr.Error()),
			)
		}
	}); doErr != nil {
		return PromoCode{}, doErr
	}
	return code, err
}

// ListCodes returns every issued code, newest first. Admin-gated,
// read-only.
func (e *Engine) ListCodes(ctx context.Context) ([]PromoCode, error) {
	if err := e.admin.RequireSession(); err != nil {
		return nil, err
	}
	return e.codes.All(), nil
}

// RemainingLockoutSeconds reports the countdown for a throttle
// namespace; zero means unlocked.
func (e *Engine) RemainingLockoutSeconds(namespace string) (int, error) {
	remaining, err := e.throttle.RemainingLockout(namespace)
	if err != nil {
		return 0, err
	}
	lockout := &LockoutError{Namespace: namespace, Remaining: remaining}
	return lockout.RemainingSeconds(), nil
}

// ResetForFreshInstall clears throttle and admin-session state. It
// deliberately leaves the code store and redemption records in place:
// the anti-replay record survives a soft reset.
func (e *Engine) ResetForFreshInstall(ctx context.Context) error {
	var err error
	if doErr := e.do(func() {
		for _, namespace := range []string{NamespaceValidate, NamespaceAdmin} {
			if resetErr := e.throttle.Reset(namespace); resetErr != nil {
				err = resetErr
				return
			}
		}
		if sessErr := e.admin.EndSession(); sessErr != nil {
			err = sessErr
			return
		}
		e.logInfo(ctx, "fresh_install_reset", "Throttle and session state cleared")
	}); doErr != nil {
		return doErr
	}
	return err
}

func isLockout(err error) bool {
	var lockout *LockoutError
	return errors.As(err, &lockout)
}
