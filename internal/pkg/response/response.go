package response

import "github.com/gin-gonic/gin"

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, data)
}

// Error writes the {error: code} envelope.
func Error(c *gin.Context, statusCode int, code int) {
	c.JSON(statusCode, gin.H{"error": code})
}

// ErrorWithData adds the field path or context that caused the error.
func ErrorWithData(c *gin.Context, statusCode int, code int, data any) {
	c.JSON(statusCode, gin.H{"error": code, "data": data})
}

func Abort(c *gin.Context, statusCode int, code int) {
	c.AbortWithStatusJSON(statusCode, gin.H{"error": code})
}
