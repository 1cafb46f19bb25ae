package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCase maps a sentinel error to an HTTP status code, error code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Code    string
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// An empty case message echoes the error text.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			message := cs.Message
			if message == "" {
				message = err.Error()
			}
			c.JSON(cs.Status, NewErrorResponse(c, cs.Code, message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, CodeInternalServerError, fallbackMessage))
}
