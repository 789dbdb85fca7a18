package review

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/john2100013/kpi-review/internal/auth"
	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/service/workflow"
)

const actorKey = "actor"

// CompanyHeader lets a super admin select the company it acts on.
const CompanyHeader = "X-Company-ID"

// Authenticate resolves the bearer token into the workflow actor.
func Authenticate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := auth.ParseToken(secret, strings.TrimSpace(token))
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		actor := workflow.Actor{
			UserID:    claims.UserID,
			CompanyID: claims.CompanyID,
			Role:      claims.Role,
		}
		if v := c.GetHeader(CompanyHeader); v != "" && actor.Role == models.RoleSuperAdmin {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				abort(c, http.StatusBadRequest, "invalid "+CompanyHeader+" header")
				return
			}
			actor.CompanyID = uint(id)
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// currentActor returns the actor stored by Authenticate.
func currentActor(c *gin.Context) workflow.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(workflow.Actor); ok {
			return actor
		}
	}
	return workflow.Actor{}
}

func abort(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
