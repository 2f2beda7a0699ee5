package main

import (
	"clinic-platform/internal/httpapi"
	"clinic-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	// AUTH routes (token issuance).
	// NOTE: Placeholder credential model; see Handlers.Login.
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
	}

	// protected API group
	protected := v1.Group("")
	protected.Use(authMW)
	protected.Use(rbac.RequireBranch())
	{
		// INVOICE routes. Every mutation writes an audit record in the same
		// transaction as the business change.
		invoices := protected.Group("/invoices")
		invoices.Use(rbac.RequireAnyRole(rbac.RoleReceptionist, rbac.RoleAccountant, rbac.RoleAdmin))
		{
			invoices.POST("", h.CreateInvoice)
			invoices.PATCH("/:invoice_id", h.UpdateInvoice)
			invoices.DELETE("/:invoice_id", h.DeleteInvoice)
		}

		// EOD day locks.
		eodGroup := protected.Group("/eod")
		eodGroup.Use(rbac.RequireAnyRole(rbac.RoleAccountant, rbac.RoleAdmin))
		{
			eodGroup.POST("/lock", h.LockDay)
			eodGroup.POST("/unlock", h.UnlockDay)
		}

		// AUDIT read paths. Trail is open to staff roles (payloads are
		// redacted for non-privileged viewers inside the handler).
		audit := protected.Group("/audit")
		audit.Use(rbac.RequireAnyRole(
			rbac.RoleDoctor, rbac.RoleReceptionist, rbac.RoleAccountant,
			rbac.RoleAdmin, rbac.RoleAuditor,
		))
		{
			audit.GET("/trail/:model/:object_id", h.AuditTrail)
		}

		// ADMIN verification tooling: auditors and super admins only.
		admin := protected.Group("/admin/audit")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAuditor))
		{
			admin.GET("/verify", h.VerifyChain)
			admin.GET("/tail", h.TailHash)
		}
	}
}
