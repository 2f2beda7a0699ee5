package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxBranchID
	ctxRole
	ctxDeviceID
	ctxClientIP
)

func WithIdentity(ctx context.Context, userID, branchID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxBranchID, branchID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func BranchID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxBranchID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("branch_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

// WithDevice attaches the caller's device identifier (best-effort; audit
// provenance only, never an authorization input).
func WithDevice(ctx context.Context, deviceID string) context.Context {
	if deviceID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxDeviceID, deviceID)
}

func DeviceID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxDeviceID).(string); ok {
		return s
	}
	return ""
}

// WithClientIP attaches the resolved client IP. Handlers should resolve the
// real client IP at the edge (X-Forwarded-For processing) and store the
// result here.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxClientIP, ip)
}

func ClientIP(ctx context.Context) string {
	if s, ok := ctx.Value(ctxClientIP).(string); ok {
		return s
	}
	return ""
}
