package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/meshnode/errors"
)

// RespondWithError aborts c with the JSON error envelope. An *AppError
// anywhere in err's chain decides the status; anything else is a 500.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondText writes a 200 text/plain body.
func RespondText(c *gin.Context, body string) {
	c.String(http.StatusOK, body)
}
