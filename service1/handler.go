package service1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meshnode/dispatch"
	"github.com/kbukum/meshnode/logger"
	"github.com/kbukum/meshnode/server"
)

// Greeting prefixes every successful reply.
const Greeting = "Liviu , Service1. "

// Route is the inbound path served by Handler.
const Route = "/service1/call-service2"

// Caller performs a resolved downstream call. *dispatch.Dispatcher implements it.
type Caller interface {
	Call(ctx context.Context, name, path, method string) (*dispatch.Result, error)
}

// Handler answers Route by calling the downstream and prefixing its body.
type Handler struct {
	cfg    Config
	caller Caller
	log    *logger.Logger
}

// NewHandler creates the handler.
func NewHandler(cfg Config, caller Caller, log *logger.Logger) *Handler {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{cfg: cfg, caller: caller, log: log.WithComponent("service1")}
}

// Register mounts the handler routes.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET(Route, h.CallService2)
}

// CallService2 replies with Greeting followed by the downstream body. Any
// failure is answered with a 5xx error envelope.
func (h *Handler) CallService2(c *gin.Context) {
	ctx := c.Request.Context()
	res, err := h.caller.Call(ctx, h.cfg.Downstream, h.cfg.DownstreamPath, http.MethodGet)
	if err != nil {
		appErr := dispatch.ToAppError(err)
		h.log.WithContext(ctx).Warn("Downstream call failed", logger.Fields(
			logger.FieldService, h.cfg.Downstream,
			"code", string(appErr.Code),
			logger.FieldStatus, appErr.HTTPStatus,
		))
		server.RespondWithError(c, appErr)
		return
	}
	server.RespondText(c, Greeting+string(res.Body))
}
