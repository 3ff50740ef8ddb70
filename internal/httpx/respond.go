// Package httpx holds the response envelope and error translation shared by
// all HTTP handlers.
package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
)

// OK writes a success envelope with data.
func OK(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// Fail writes a failure envelope.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// Error translates an application error to its HTTP status. Unclassified
// errors surface as a generic 500 without leaking internals.
func Error(c *gin.Context, err error) {
	if e := apperrors.As(err); e != nil && e.Kind != apperrors.KindInternal {
		Fail(c, e.HTTPStatus(), e.Message)
		return
	}
	Fail(c, http.StatusInternalServerError, "internal server error")
}

// AbortWithError is Error for middleware chains.
func AbortWithError(c *gin.Context, err error) {
	if e := apperrors.As(err); e != nil && e.Kind != apperrors.KindInternal {
		c.AbortWithStatusJSON(e.HTTPStatus(), gin.H{"success": false, "message": e.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
}

// Pagination is the list-response pagination block.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// NewPagination derives the pagination block from page/limit/total.
func NewPagination(page, limit int, total int64) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}
