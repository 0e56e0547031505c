package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"transcript-insights/pkg/analysis"
)

const cacheHeader = "X-Cache"

type handler struct {
	svc    Service
	logger *slog.Logger
}

type urlRequest struct {
	URL string `json:"url"`
}

type textRequest struct {
	Text string `json:"text"`
}

func (h *handler) analyzeURL(c *gin.Context) {
	var req urlRequest
	h.bind(c, &req)

	out, err := h.svc.AnalyzeURL(c.Request.Context(), req.URL)
	h.respond(c, out, err, "Missing 'url'")
}

func (h *handler) analyzeText(c *gin.Context) {
	var req textRequest
	h.bind(c, &req)

	out, err := h.svc.AnalyzeText(c.Request.Context(), req.Text)
	h.respond(c, out, err, "Missing 'text'")
}

// bind decodes the JSON body into req. A missing or malformed body leaves req
// empty, which the service rejects as a missing field.
func (h *handler) bind(c *gin.Context, req any) {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Debug("[API] Unreadable request body",
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()))
	}
}

func (h *handler) respond(c *gin.Context, out analysis.Outcome, err error, missingMsg string) {
	if err != nil {
		c.Header(cacheHeader, "MISS")
		status, msg := statusFor(err, missingMsg)
		if status == http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	if out.Hit {
		c.Header(cacheHeader, "HIT")
	} else {
		c.Header(cacheHeader, "MISS")
	}
	c.JSON(http.StatusOK, out.Result)
}

func (h *handler) clearCache(c *gin.Context) {
	if err := h.svc.ClearCache(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handler) cacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps service errors to a status code and client message.
func statusFor(err error, missingMsg string) (int, string) {
	var svcErr *analysis.ServiceError
	switch {
	case errors.Is(err, analysis.ErrInvalidInput):
		return http.StatusBadRequest, missingMsg
	case errors.Is(err, analysis.ErrTranscriptNotFound):
		return http.StatusNotFound, analysis.NotFoundMessage
	case errors.As(err, &svcErr):
		return http.StatusInternalServerError, svcErr.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
