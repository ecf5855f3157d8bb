package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/tilebid/backend/api/transport"
	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/pkg/httpcontext"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondPage(ctx *fasthttp.RequestCtx, data interface{}, limit, offset, count int) {
	h.respondJSON(ctx, http.StatusOK, transport.NewPage(data, limit, offset, count))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	h.respondJSON(ctx, status, transport.NewError(code, err.Error(), nil))
}

func (h baseHandler) respondInvalid(ctx *fasthttp.RequestCtx, message string) {
	h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), message, nil))
}

// callerID returns the authenticated user id injected by the JWT
// middleware, writing a 401 when absent.
func (h baseHandler) callerID(ctx *fasthttp.RequestCtx) string {
	userID := string(ctx.Request.Header.Peek("X-User-ID"))
	if userID == "" {
		h.respondJSON(ctx, http.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), "missing user id", nil))
	}
	return userID
}

func mapError(err error) (int, string) {
	var dErr *domain.Error
	code := domain.ErrCodeInternal
	if errors.As(err, &dErr) {
		code = dErr.Code
	}

	switch {
	case code == domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized, string(code)
	case code == domain.ErrCodeForbidden:
		return http.StatusForbidden, string(code)
	case code == domain.ErrCodeInvalid:
		return http.StatusBadRequest, string(code)
	case code == domain.ErrCodeNotFound:
		return http.StatusNotFound, string(code)
	case domain.IsConflict(err):
		return http.StatusConflict, string(code)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}
