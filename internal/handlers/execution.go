package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rahul2762/codesync-backend/internal/cache"
	"github.com/rahul2762/codesync-backend/internal/models"
	"github.com/rahul2762/codesync-backend/internal/sandbox"
	"github.com/rahul2762/codesync-backend/pkg/logger"
)

// Executor runs a snippet and returns its output or a classified
// failure. Satisfied by *sandbox.Runner; stubbed in tests.
type Executor interface {
	Run(ctx context.Context, code, language string) (sandbox.Result, error)
}

// ExecutionHandler serves POST /api/execute. Every handled outcome is
// a 200 with the uniform {output, error, success} body; only internal
// faults become a 500, and even those stay JSON-shaped.
type ExecutionHandler struct {
	runner Executor
	store  cache.Store
}

func NewExecutionHandler(runner Executor, store cache.Store) *ExecutionHandler {
	return &ExecutionHandler{runner: runner, store: store}
}

func (h *ExecutionHandler) Execute(c *gin.Context) {
	var req models.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" || req.Language == "" {
		c.JSON(http.StatusBadRequest, models.ExecuteResponse{
			Error:   "Code and language are required",
			Success: false,
		})
		return
	}

	if !sandbox.Supported(req.Language) {
		c.JSON(http.StatusBadRequest, models.ExecuteResponse{
			Error:   "Unsupported language: " + req.Language,
			Success: false,
		})
		return
	}

	key := cache.Key(req.Language, req.Code)
	if h.store != nil {
		if resp, ok := h.store.Get(c.Request.Context(), key); ok {
			logger.Debug().Str("lang", req.Language).Msg("Cache hit for code execution")
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	result, err := h.runner.Run(c.Request.Context(), req.Code, req.Language)
	if err != nil {
		h.writeError(c, req.Language, key, err)
		return
	}

	resp := models.ExecuteResponse{
		Output:  result.Stdout,
		Error:   result.Stderr,
		Success: true,
	}
	// A clean exit with nothing captured still needs a visible output
	// so the client never renders a blank success.
	if resp.Output == "" && resp.Error == "" {
		resp.Output = "Execution completed with no output."
	}

	if h.store != nil {
		h.store.Set(c.Request.Context(), key, resp)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ExecutionHandler) writeError(c *gin.Context, language, key string, err error) {
	var runErr *sandbox.RunError
	if !errors.As(err, &runErr) {
		logger.Error().Err(err).Str("lang", language).Msg("Execute endpoint error")
		c.JSON(http.StatusInternalServerError, models.ExecuteResponse{
			Error:   "Server error: " + err.Error(),
			Success: false,
		})
		return
	}

	resp := models.ExecuteResponse{Error: runErr.Message, Success: false}

	switch runErr.Kind {
	case sandbox.KindInternal:
		logger.Error().Str("lang", language).Str("detail", runErr.Message).Msg("Execution internal fault")
		c.JSON(http.StatusInternalServerError, resp)
	case sandbox.KindCompileFailure:
		// Deterministic per snippet, so worth caching like a success.
		if h.store != nil {
			h.store.Set(c.Request.Context(), key, resp)
		}
		c.JSON(http.StatusOK, resp)
	default:
		// Timeouts and missing toolchains reflect the environment, not
		// the snippet; never cached.
		c.JSON(http.StatusOK, resp)
	}
}
