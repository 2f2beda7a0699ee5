package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"clinic-platform/internal/auth"
	"clinic-platform/internal/billing"
	"clinic-platform/internal/eod"
	"clinic-platform/internal/ledger"
	"clinic-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth    *auth.Manager
	Ledger  *ledger.Service
	Billing *billing.Service
	EOD     *eod.Service

	// Reports caches verification reports; optional (nil disables caching).
	Reports *ledger.ReportCache

	// Redaction is applied to audit payloads before rendering to any
	// non-privileged viewer. Never applied to the hashing path.
	Redaction ledger.Policy
}

// eventContext assembles audit provenance from the authenticated request.
func eventContext(c *gin.Context) ledger.EventContext {
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	bid, _ := auth.BranchID(ctx)
	return ledger.EventContext{
		BranchID:  bid,
		UserID:    uid,
		DeviceID:  auth.DeviceID(ctx),
		IPAddress: auth.ClientIP(ctx),
	}
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	BranchID string `json:"branch_id"`
	Role     string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.BranchID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, branch_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.BranchID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Billing ---

func (h Handlers) CreateInvoice(c *gin.Context) {
	var req billing.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	inv, err := h.Billing.CreateInvoice(c.Request.Context(), eventContext(c), req)
	if err != nil {
		abortWithMappedError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h Handlers) UpdateInvoice(c *gin.Context) {
	var req billing.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	inv, err := h.Billing.UpdateInvoice(c.Request.Context(), eventContext(c), c.Param("invoice_id"), req)
	if err != nil {
		abortWithMappedError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h Handlers) DeleteInvoice(c *gin.Context) {
	if err := h.Billing.DeleteInvoice(c.Request.Context(), eventContext(c), c.Param("invoice_id")); err != nil {
		abortWithMappedError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- EOD ---

type eodRequest struct {
	Day string `json:"day"`
}

func (h Handlers) LockDay(c *gin.Context) {
	var req eodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	lock, err := h.EOD.Lock(c.Request.Context(), eventContext(c), req.Day)
	if err != nil {
		abortWithMappedError(c, err)
		return
	}
	c.JSON(http.StatusOK, lock)
}

func (h Handlers) UnlockDay(c *gin.Context) {
	var req eodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.EOD.Unlock(c.Request.Context(), eventContext(c), req.Day); err != nil {
		abortWithMappedError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Audit ---

// AuditTrail returns the ordered history of one entity. Payloads are
// redacted unless the caller's role may read raw audit data.
func (h Handlers) AuditTrail(c *gin.Context) {
	ctx := c.Request.Context()
	branchID, err := auth.BranchID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "branch_id required"})
		return
	}

	records, err := h.Ledger.Trail(ctx, branchID, c.Param("model"), c.Param("object_id"))
	if err != nil {
		abortWithMappedError(c, err)
		return
	}

	role, _ := auth.Role(ctx)
	if !rbac.CanReadUnredactedAudit(role) {
		for i := range records {
			records[i] = h.Redaction.RedactRecord(records[i])
		}
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "total": len(records)})
}

// VerifyChain replays a range of the caller's branch chain and returns the
// verification report. Broken links are evidence, rendered verbatim.
func (h Handlers) VerifyChain(c *gin.Context) {
	ctx := c.Request.Context()
	branchID, err := auth.BranchID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "branch_id required"})
		return
	}

	fromID, ok := queryInt64(c, "from", 1)
	if !ok {
		return
	}
	toID, ok := queryInt64(c, "to", 0)
	if !ok {
		return
	}

	// Only closed ranges are cacheable; an open range moves with the tail.
	if toID > 0 {
		if rep, hit := h.Reports.Get(ctx, branchID, fromID, toID); hit {
			c.JSON(http.StatusOK, rep)
			return
		}
	}

	rep, err := h.Ledger.VerificationReport(ctx, branchID, fromID, toID)
	if err != nil {
		abortWithMappedError(c, err)
		return
	}
	if toID > 0 {
		h.Reports.Put(ctx, branchID, fromID, toID, rep)
	}
	c.JSON(http.StatusOK, rep)
}

// TailHash exposes the branch chain tail for external anchoring tooling.
func (h Handlers) TailHash(c *gin.Context) {
	ctx := c.Request.Context()
	branchID, err := auth.BranchID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "branch_id required"})
		return
	}
	tail, err := h.Ledger.TailHash(ctx, branchID)
	if err != nil {
		abortWithMappedError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"branch_id": branchID, "tail_hash": tail})
}

// --- helpers ---

func queryInt64(c *gin.Context, name string, def int64) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return n, true
}

func abortWithMappedError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrChainBusy):
		// Transient contention; the audit entry was NOT written. Retry.
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "audit chain busy, retry"})
	case errors.Is(err, ledger.ErrMalformedPayload):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payload cannot be canonicalized"})
	case errors.Is(err, billing.ErrDayLocked):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "day is closed by an EOD lock"})
	case errors.Is(err, eod.ErrAlreadyLocked):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "day already locked"})
	case errors.Is(err, eod.ErrNotLocked):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "day is not locked"})
	case errors.Is(err, billing.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, billing.ErrInvalidArgument),
		errors.Is(err, eod.ErrInvalidArgument),
		errors.Is(err, ledger.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid argument"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
