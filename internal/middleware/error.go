package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rahul2762/codesync-backend/pkg/errors"
	"github.com/rahul2762/codesync-backend/pkg/logger"
)

// ErrorHandlerMiddleware converts panics and context errors into JSON
// bodies. The execute contract promises structured JSON on every
// outcome, so an uncaught fault must never surface as an HTML page.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Panic recovered")

				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   "Internal server error",
					"success": false,
				})
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			if appErr, ok := err.(*errors.AppError); ok {
				c.JSON(appErr.Code, gin.H{
					"error":   appErr.Message,
					"success": false,
				})
				return
			}

			logger.Error().Err(err).Msg("Unhandled request error")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal server error",
				"success": false,
			})
		}
	}
}
