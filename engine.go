package softoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/softoken/internal"
	"github.com/MrEthical07/softoken/internal/audit"
	"github.com/MrEthical07/softoken/internal/reconcile"
	"github.com/MrEthical07/softoken/jwt"
	"github.com/MrEthical07/softoken/session"
)

// Engine issues, resolves, renews and revokes session tokens. Redis is the
// only source of truth, so any number of engines may share a namespace.
//
// Engine is safe for concurrent use. Build one with [New].
type Engine struct {
	config     Config
	store      *session.Store
	jwtManager *jwt.Manager
	reconciler *reconcile.Scheduler
	audit      *audit.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger

	closeOnce sync.Once
}

// Close stops the cleanup scheduler, if one is running, and drains the audit
// dispatcher. It does not close the Redis client. Safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.reconciler != nil {
			e.reconciler.Stop()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.jwtManager != nil
}

// Create issues a token for req.UID and stores its session.
//
//	Performance: 1 token signature + 1 Lua EVALSHA.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	if err := validateCreate(req); err != nil {
		e.metricInc(MetricSessionCreateFailure)
		e.emitAudit(ctx, auditEventSessionCreated, false, req.UID, "", err, nil)
		return "", err
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = e.config.Session.DefaultTTL
	}

	token, err := e.jwtManager.Issue(req.UID)
	if err != nil {
		e.metricInc(MetricSessionCreateFailure)
		return "", fmt.Errorf("issue token: %w", err)
	}

	rec, err := e.store.Put(ctx, token, req.UID, req.Props, ttl)
	if err != nil {
		e.metricInc(MetricSessionCreateFailure)
		e.storeFailure("create", err)
		e.emitAudit(ctx, auditEventSessionCreated, false, req.UID, token, err, nil)
		return "", err
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, req.UID, token, nil, func() map[string]string {
		return map[string]string{
			"expires_at": rec.Expiry().UTC().Format(time.RFC3339),
		}
	})

	return token, nil
}

func validateCreate(req CreateRequest) error {
	if req.UID == "" {
		return fmt.Errorf("%w: uid is required", ErrValidation)
	}
	if req.TTL < 0 {
		return fmt.Errorf("%w: ttl must not be negative", ErrValidation)
	}
	return nil
}

// Get verifies token and returns its live session. It fails with
// [ErrMalformedToken], [ErrInvalidToken] or [ErrUnknownToken] for rejected
// credentials, and with an error wrapping [ErrStoreUnavailable] when Redis
// cannot be reached.
//
//	Performance: 1 signature check + 1 Redis HGETALL.
func (e *Engine) Get(ctx context.Context, token string) (*SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	info, err := e.get(ctx, token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricGetLatency, time.Since(start))
	}
	return info, err
}

func (e *Engine) get(ctx context.Context, token string) (*SessionInfo, error) {
	claims, err := e.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	rec, err := e.store.Read(ctx, token)
	if err != nil {
		return nil, e.lookupFailure(ctx, "get", token, claims.UID, err)
	}
	if rec.UID != claims.UID {
		return nil, e.lookupFailure(ctx, "get", token, claims.UID, session.ErrNotFound)
	}

	e.metricInc(MetricGetSuccess)
	return sessionInfoFromRecord(rec, false), nil
}

// Extend resets the session window of token to the default TTL. The window
// is replaced, not added to.
func (e *Engine) Extend(ctx context.Context, token string) (*SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.extend(ctx, token, e.config.Session.DefaultTTL)
}

// ExtendWithTTL resets the session window of token to ttl, which must be
// positive.
func (e *Engine) ExtendWithTTL(ctx context.Context, token string, ttl time.Duration) (*SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrValidation)
	}
	return e.extend(ctx, token, ttl)
}

func (e *Engine) extend(ctx context.Context, token string, ttl time.Duration) (*SessionInfo, error) {
	claims, err := e.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	rec, err := e.store.Renew(ctx, token, claims.UID, ttl)
	if err != nil {
		return nil, e.lookupFailure(ctx, "extend", token, claims.UID, err)
	}

	e.metricInc(MetricSessionExtended)
	e.emitAudit(ctx, auditEventSessionExtended, true, claims.UID, token, nil, func() map[string]string {
		return map[string]string{
			"expires_at": rec.Expiry().UTC().Format(time.RFC3339),
		}
	})
	return sessionInfoFromRecord(rec, false), nil
}

// GetByUserID returns the live sessions of uid, each with its token set.
// A user with no sessions yields an empty slice. Order is unspecified.
//
//	Performance: 1 SMEMBERS + 1 pipelined round-trip.
func (e *Engine) GetByUserID(ctx context.Context, uid string) ([]*SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", ErrValidation)
	}

	recs, err := e.store.ListByUser(ctx, uid)
	if err != nil {
		e.storeFailure("get_by_user", err)
		return nil, err
	}

	out := make([]*SessionInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, sessionInfoFromRecord(rec, true))
	}
	return out, nil
}

// Destroy revokes token and reports whether a session existed. The token
// must verify: a rejected credential returns its error and nothing is
// removed. Revoking an already-gone session returns false with no error.
//
//	Performance: 1 signature check + 1 Lua EVALSHA.
func (e *Engine) Destroy(ctx context.Context, token string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}

	claims, err := e.verify(ctx, token)
	if err != nil {
		return false, err
	}

	existed, err := e.store.Remove(ctx, token, claims.UID)
	if err != nil {
		e.storeFailure("destroy", err)
		e.emitAudit(ctx, auditEventSessionDestroyed, false, claims.UID, token, err, nil)
		return false, err
	}

	if existed {
		e.metricInc(MetricSessionDestroyed)
	}
	e.emitAudit(ctx, auditEventSessionDestroyed, true, claims.UID, token, nil, func() map[string]string {
		return map[string]string{"existed": fmt.Sprint(existed)}
	})
	return existed, nil
}

// DestroyUser revokes every session of uid and reports whether at least one
// was removed.
//
//	Performance: 1 Lua EVALSHA, O(sessions of uid).
func (e *Engine) DestroyUser(ctx context.Context, uid string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	if uid == "" {
		return false, fmt.Errorf("%w: uid is required", ErrValidation)
	}

	n, err := e.store.RemoveUser(ctx, uid)
	if err != nil {
		e.storeFailure("destroy_user", err)
		e.emitAudit(ctx, auditEventUserSessionsDestroyed, false, uid, "", err, nil)
		return false, err
	}

	e.metrics.Add(MetricUserSessionsDestroyed, uint64(n))
	e.emitAudit(ctx, auditEventUserSessionsDestroyed, true, uid, "", nil, func() map[string]string {
		return map[string]string{"removed": fmt.Sprint(n)}
	})
	return n > 0, nil
}

// Cleanup reconciles the indexes with the session records. With force
// unset it removes every session whose expiration has passed and returns the
// number of index entries pruned. With force set it deletes every key in the
// namespace and returns the number of session records deleted; the wipe is
// not atomic and is meant for resets, not routine maintenance.
func (e *Engine) Cleanup(ctx context.Context, force bool) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if force {
		return e.wipe(ctx)
	}
	return e.sweep(ctx)
}

func (e *Engine) sweep(ctx context.Context) (int, error) {
	n, err := e.store.SweepExpired(ctx, time.Now())
	if err != nil {
		e.metricInc(MetricCleanupFailure)
		e.storeFailure("cleanup", err)
		e.emitAudit(ctx, auditEventCleanupSweep, false, "", "", err, nil)
		return n, err
	}

	e.metricInc(MetricCleanupRun)
	e.metrics.Add(MetricCleanupRemoved, uint64(n))
	if n > 0 {
		e.emitAudit(ctx, auditEventCleanupSweep, true, "", "", nil, func() map[string]string {
			return map[string]string{"removed": fmt.Sprint(n)}
		})
	}
	return n, nil
}

func (e *Engine) wipe(ctx context.Context) (int, error) {
	n, err := e.store.WipeAll(ctx)
	if err != nil {
		e.metricInc(MetricCleanupFailure)
		e.storeFailure("cleanup_force", err)
		e.emitAudit(ctx, auditEventCleanupWipe, false, "", "", err, nil)
		return n, err
	}

	e.metricInc(MetricCleanupRun)
	e.metrics.Add(MetricCleanupRemoved, uint64(n))
	e.logger.Warn("session namespace wiped", "prefix", e.store.Prefix(), "records", n)
	e.emitAudit(ctx, auditEventCleanupWipe, true, "", "", nil, func() map[string]string {
		return map[string]string{"removed": fmt.Sprint(n)}
	})
	return n, nil
}

// Ping checks that Redis answers and returns the round-trip time.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	return e.store.Ping(ctx)
}

// ActiveSessions returns the number of entries in the expiration index.
// Until the next sweep this includes sessions that have already lapsed.
func (e *Engine) ActiveSessions(ctx context.Context) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	return e.store.CountActive(ctx)
}

// verify resolves the token claims and records credential rejections.
func (e *Engine) verify(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := e.jwtManager.Verify(token)
	if err == nil {
		return claims, nil
	}

	switch {
	case errors.Is(err, ErrMalformedToken):
		e.metricInc(MetricGetMalformed)
	default:
		e.metricInc(MetricGetInvalid)
		if !errors.Is(err, ErrInvalidToken) {
			err = fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}
	e.reject(ctx, token, "", err)
	return nil, err
}

// lookupFailure maps a store error from a token-addressed operation.
func (e *Engine) lookupFailure(ctx context.Context, op, token, uid string, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		e.metricInc(MetricGetUnknown)
		e.reject(ctx, token, uid, ErrUnknownToken)
		return ErrUnknownToken
	}
	e.storeFailure(op, err)
	return err
}

func (e *Engine) reject(ctx context.Context, token, uid string, err error) {
	e.logger.Debug("session rejected",
		"token", internal.Fingerprint(token),
		"reason", string(auditErrorCode(err)),
	)
	e.emitAudit(ctx, auditEventSessionRejected, false, uid, token, err, nil)
}

func (e *Engine) storeFailure(op string, err error) {
	e.metricInc(MetricStoreError)
	e.logger.Warn("session store failure", "op", op, "error", err)
}
