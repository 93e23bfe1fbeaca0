// Package httpapi serves the curriculum operations as a JSON API.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/traverse/internal/curriculum"
	"github.com/abhisek/traverse/internal/logger"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/remediation"
	"github.com/abhisek/traverse/internal/store"
)

// Curriculum is the service the handlers call.
type Curriculum interface {
	CreatePath(ctx context.Context, in curriculum.CreatePathInput) (*curriculum.Path, error)
	GetPath(ctx context.Context, userID, pathID string) (*curriculum.Path, error)
	ListPaths(ctx context.Context, userID string) ([]store.Path, error)
	DeletePath(ctx context.Context, userID, pathID string) error
	Graph(ctx context.Context, userID, pathID string) (string, error)
	GetProgress(ctx context.Context, userID, pathID string) (*curriculum.ProgressView, error)
	IssueChallenge(ctx context.Context, userID, pathID, nodeID string) (*curriculum.IssuedChallenge, error)
	SubmitAnswer(ctx context.Context, userID, challengeID, answer string) (*curriculum.SubmitResult, error)
	Remediate(ctx context.Context, userID, nodeID, topic string) (*remediation.Outcome, error)
}

// Handler implements the API endpoints.
type Handler struct {
	log *logger.Logger
	svc Curriculum
	obs observe.Observer
}

// NewHandler creates a Handler. obs may be nil.
func NewHandler(log *logger.Logger, svc Curriculum, obs observe.Observer) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		log: log.With("component", "httpapi"),
		svc: svc,
		obs: observe.OrNop(obs),
	}
}

// fail logs server-side errors and writes the mapped error response.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op+" failed", "error", err, "user_id", userID(c))
	} else {
		h.log.Debug(op+" rejected", "error", err, "code", code)
	}
	respondError(c, status, code, err)
}

// retry runs fn once more on a concurrent modification.
func (h *Handler) retry(c *gin.Context, fn func() error) error {
	return curriculum.RetryOnce(c.Request.Context(), h.obs, fn)
}

// POST /api/paths
func (h *Handler) CreatePath(c *gin.Context) {
	var req createPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	var p *curriculum.Path
	err := h.retry(c, func() (err error) {
		p, err = h.svc.CreatePath(c.Request.Context(), curriculum.CreatePathInput{
			UserID:      userID(c),
			Goal:        req.Goal,
			Description: req.Description,
			Domain:      req.Domain,
			Level:       req.Level,
			Background:  req.Background,
		})
		return err
	})
	if err != nil {
		h.fail(c, "create path", err)
		return
	}
	c.JSON(http.StatusCreated, toPath(p))
}

// GET /api/paths
func (h *Handler) ListPaths(c *gin.Context) {
	paths, err := h.svc.ListPaths(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, "list paths", err)
		return
	}
	out := make([]pathJSON, len(paths))
	for i, p := range paths {
		out[i] = toPathSummary(p)
	}
	c.JSON(http.StatusOK, gin.H{"paths": out})
}

// GET /api/paths/:id
func (h *Handler) GetPath(c *gin.Context) {
	p, err := h.svc.GetPath(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, "get path", err)
		return
	}
	c.JSON(http.StatusOK, toPath(p))
}

// DELETE /api/paths/:id
func (h *Handler) DeletePath(c *gin.Context) {
	err := h.retry(c, func() error {
		return h.svc.DeletePath(c.Request.Context(), userID(c), c.Param("id"))
	})
	if err != nil {
		h.fail(c, "delete path", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/paths/:id/graph
// Mermaid flowchart text.
func (h *Handler) Graph(c *gin.Context) {
	out, err := h.svc.Graph(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, "render graph", err)
		return
	}
	c.String(http.StatusOK, out)
}

// GET /api/paths/:id/progress
func (h *Handler) GetProgress(c *gin.Context) {
	v, err := h.svc.GetProgress(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.fail(c, "get progress", err)
		return
	}
	c.JSON(http.StatusOK, toProgress(v))
}

// POST /api/paths/:id/nodes/:node/challenge
func (h *Handler) IssueChallenge(c *gin.Context) {
	var ch *curriculum.IssuedChallenge
	err := h.retry(c, func() (err error) {
		ch, err = h.svc.IssueChallenge(c.Request.Context(), userID(c), c.Param("id"), c.Param("node"))
		return err
	})
	if err != nil {
		h.fail(c, "issue challenge", err)
		return
	}
	c.JSON(http.StatusOK, toChallenge(ch))
}

// POST /api/challenges/:id/submissions
func (h *Handler) SubmitAnswer(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	var res *curriculum.SubmitResult
	err := h.retry(c, func() (err error) {
		res, err = h.svc.SubmitAnswer(c.Request.Context(), userID(c), c.Param("id"), req.Answer)
		return err
	})
	if err != nil {
		h.fail(c, "submit answer", err)
		return
	}
	c.JSON(http.StatusOK, toSubmit(res))
}

// POST /api/nodes/:node/remediate
func (h *Handler) Remediate(c *gin.Context) {
	var req remediateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_input", err)
			return
		}
	}
	var out *remediation.Outcome
	err := h.retry(c, func() (err error) {
		out, err = h.svc.Remediate(c.Request.Context(), userID(c), c.Param("node"), req.Topic)
		return err
	})
	if err != nil {
		h.fail(c, "remediate", err)
		return
	}
	c.JSON(http.StatusOK, toRemediation(out))
}

// HealthCheck answers liveness checks.
func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
