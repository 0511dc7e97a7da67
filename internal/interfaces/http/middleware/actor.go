package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ActorIDHeader carries the staff member performing the request. The CRM
// frontend resolves it during login; this service only attributes writes
// to it.
const ActorIDHeader = "X-Actor-ID"

// ActorIDKey is the gin context key for the resolved actor ID
const ActorIDKey = "actor_id"

// ActorMayMutateKey is the gin context key for the mutation flag
const ActorMayMutateKey = "actor_may_mutate"

// Actor resolves the acting staff member from the request header. A request
// without a valid actor can still read; mutating handlers reject it through
// the application layer's permission check.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(ActorIDHeader)
		if header != "" {
			if actorID, err := uuid.Parse(header); err == nil && actorID != uuid.Nil {
				c.Set(ActorIDKey, actorID)
				c.Set(ActorMayMutateKey, true)
			}
		}
		c.Next()
	}
}

// GetActorID returns the resolved actor ID, or uuid.Nil when the request
// carried none
func GetActorID(c *gin.Context) uuid.UUID {
	if v, exists := c.Get(ActorIDKey); exists {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// ActorMayMutate reports whether the request identified a valid actor
func ActorMayMutate(c *gin.Context) bool {
	if v, exists := c.Get(ActorMayMutateKey); exists {
		if ok, isBool := v.(bool); isBool {
			return ok
		}
	}
	return false
}
