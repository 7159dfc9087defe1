package handlers

import (
	"errors"
	"net/http"

	"market-pulse-api/pkg/models"

	"github.com/creasty/defaults"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var (
		insufficient *models.DataInsufficientError
		schema       *models.SchemaError
		notFound     *models.ModelNotFoundError
		validation   validator.ValidationErrors
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &insufficient),
		errors.As(err, &schema),
		errors.As(err, &validation),
		errors.Is(err, models.ErrInvalidProductID),
		errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Server-side failures hide the detail.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"success": false, "error": err.Error()}

	var insufficient *models.DataInsufficientError
	if errors.As(err, &insufficient) {
		body["required"] = insufficient.Required
		body["actual"] = insufficient.Actual
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		body["error"] = "内部エラーが発生しました"
	}
	c.JSON(status, body)
}

// respondData writes the success envelope.
func respondData(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// bindJSON applies struct defaults, then binds and validates the body.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := defaults.Set(req); err != nil {
		respondError(c, err)
		return false
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの解析に失敗しました: " + err.Error(),
		})
		return false
	}
	return true
}

// bindQuery is bindJSON for query parameters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := defaults.Set(req); err != nil {
		respondError(c, err)
		return false
	}
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "クエリパラメータが不正です: " + err.Error(),
		})
		return false
	}
	return true
}
