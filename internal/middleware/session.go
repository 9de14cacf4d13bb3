package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/response"
)

// ContextKeySession is the Gin context key for the candidate's live session.
const ContextKeySession = "exam_session"

// LoadSession resolves :session_id to a live session owned by the token's
// candidate. Must run after RequireCandidateJWT or RequireCandidateWSAuth.
func LoadSession(registry *engine.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		s, err := registry.Get(c.Param("session_id"), claims.CandidateID)
		switch {
		case errors.Is(err, engine.ErrNotOwner):
			response.AbortFail(c, http.StatusForbidden, response.ErrNotSessionOwner)
			return
		case err != nil:
			response.AbortFail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}

		c.Set(ContextKeySession, s)
		c.Next()
	}
}

// GetSession retrieves the session stored by LoadSession.
func GetSession(c *gin.Context) *engine.Session {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	s, _ := val.(*engine.Session)
	return s
}
