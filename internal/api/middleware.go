package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Team identity comes from the fronting auth layer as a trusted header.
const TeamIDHeader = "X-Team-ID"

// TeamAuth resolves the calling team and rejects requests without one.
func TeamAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := c.GetHeader(TeamIDHeader)
		if teamID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + TeamIDHeader + " header"})
			return
		}
		c.Set("teamID", teamID)
		c.Next()
	}
}

func teamID(c *gin.Context) string {
	return c.GetString("teamID")
}
