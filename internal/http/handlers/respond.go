package handlers

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/stockroom/internal/apperr"
	"github.com/gin-gonic/gin"
)

// CtxRequestID is the gin context key the request id middleware writes.
const CtxRequestID = "request_id"

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

// RespondErr writes err using its apperr kind. Anything outside the taxonomy
// is logged with its cause and reported as a generic internal error.
func RespondErr(ctx *gin.Context, err error) {
	typed := apperr.As(err)
	if typed == nil {
		slog.ErrorContext(ctx.Request.Context(), "unhandled error",
			"err", err,
			"request_id", requestIDFrom(ctx),
		)
		RespondInternal(ctx, "Internal server error")
		return
	}

	if typed.Kind() == apperr.KindInternal {
		slog.ErrorContext(ctx.Request.Context(), typed.Message(),
			"err", err,
			"request_id", requestIDFrom(ctx),
		)
	}

	RespondError(ctx, typed.Kind().HTTPStatus(), string(typed.Kind()), typed.Message(), typed.Details())
}

// AbortWithErr is RespondErr for middleware: nothing after it in the chain runs.
func AbortWithErr(ctx *gin.Context, err error) {
	RespondErr(ctx, err)
	ctx.Abort()
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, string(apperr.KindNotFound), message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, string(apperr.KindInternal), message, nil)
}
