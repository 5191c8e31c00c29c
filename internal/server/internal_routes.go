package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// InternalTokenRequired guards the operator endpoints with a shared token.
func (s *Server) InternalTokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(s.cfg.InternalAPIToken)
		provided := strings.TrimSpace(c.GetHeader("X-Internal-Token"))
		if expected == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// ReconcileOwner re-runs quota reconciliation for one user. Useful after a
// support intervention or a missed webhook.
func (s *Server) ReconcileOwner(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("user_id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.subscriptionSvc.ReconcileOwner(c.Request.Context(), snowflake.ID(id)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) GetSubscriptionByProviderID(c *gin.Context) {
	providerID := strings.TrimSpace(c.Param("provider_id"))
	if providerID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	subscription, err := s.subscriptionSvc.GetByProviderID(c.Request.Context(), providerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, subscription)
}
