package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func abort(c *gin.Context, status int, message string, details map[string]any) {
	c.AbortWithStatusJSON(status, NewAPIError(message, details))
}

// AbortWithBadRequest rejects a request the client must fix.
func AbortWithBadRequest(c *gin.Context, message string, details map[string]any) {
	abort(c, http.StatusBadRequest, message, details)
}

// AbortWithUnauthorized rejects a caller that did not present the shared secret.
func AbortWithUnauthorized(c *gin.Context, message string, details map[string]any) {
	abort(c, http.StatusUnauthorized, message, details)
}

// AbortWithInternal sends a 500 Internal Server Error response and aborts the request.
func AbortWithInternal(c *gin.Context, message string, details map[string]any) {
	abort(c, http.StatusInternalServerError, message, details)
}

// AbortWithError sends a 500 whose message is the error text. Relay errors carry
// the upstream response in their message, which callers need for diagnosis.
func AbortWithError(c *gin.Context, err error) {
	abort(c, http.StatusInternalServerError, err.Error(), nil)
}
