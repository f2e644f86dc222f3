package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

const currentUserKey = "currentUser"

// GetCurrentUser retrieves the *model.User set by JWTMiddleware.
func GetCurrentUser(c *gin.Context) (*model.User, bool) {
	u, exists := c.Get(currentUserKey)
	if !exists {
		return nil, false
	}
	user, ok := u.(*model.User)
	return user, ok
}
