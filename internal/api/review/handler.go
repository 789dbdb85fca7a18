// Package review provides REST API handlers for the KPI review workflow.
// It exposes endpoints for KPIs, their lifecycle transitions, scores and
// in-app notifications.
package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/service/rating"
	"github.com/john2100013/kpi-review/internal/service/workflow"
	"github.com/john2100013/kpi-review/pkg/logger"
)

// WorkflowService interface for KPI workflow operations.
type WorkflowService interface {
	CreateKPI(ctx context.Context, actor workflow.Actor, in workflow.CreateKPIInput) (*models.KPI, error)
	Acknowledge(ctx context.Context, actor workflow.Actor, kpiID uint, in workflow.AcknowledgeInput) (*models.KPI, error)
	SubmitSelfRating(ctx context.Context, actor workflow.Actor, kpiID uint, in workflow.SelfRatingInput) (*models.KPIReview, error)
	SubmitManagerReview(ctx context.Context, actor workflow.Actor, kpiID uint, in workflow.ManagerReviewInput) (*models.KPIReview, error)
	ConfirmReview(ctx context.Context, actor workflow.Actor, kpiID uint, in workflow.ConfirmationInput) (*models.KPIReview, error)
	ResolveRejection(ctx context.Context, actor workflow.Actor, reviewID uint, in workflow.ResolveInput) (*models.KPIReview, error)

	ListVisibleKPIs(ctx context.Context, actor workflow.Actor, q workflow.ListQuery) ([]models.KPI, error)
	GetKPI(ctx context.Context, actor workflow.Actor, id uint) (*workflow.KPIDetail, error)
	GetReview(ctx context.Context, actor workflow.Actor, id uint) (*models.KPIReview, error)
	Score(ctx context.Context, actor workflow.Actor, kpiID uint) (rating.Score, error)

	ListNotifications(ctx context.Context, actor workflow.Actor, unreadOnly bool, limit int) ([]models.Notification, error)
	UnreadNotifications(ctx context.Context, actor workflow.Actor) (int64, error)
	MarkNotificationRead(ctx context.Context, actor workflow.Actor, id uint) error
}

// Handler handles KPI review API requests.
type Handler struct {
	workflow WorkflowService
	log      *logger.Logger
}

// NewHandler creates a new review handler.
func NewHandler(svc WorkflowService, log *logger.Logger) *Handler {
	return &Handler{
		workflow: svc,
		log:      log.Component("api"),
	}
}

// Register mounts the review routes on an authenticated group.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.GET("/kpis", h.ListKPIs)
	api.POST("/kpis", h.CreateKPI)
	api.GET("/kpis/:id", h.GetKPI)
	api.GET("/kpis/:id/score", h.GetScore)
	api.POST("/kpis/:id/acknowledge", h.Acknowledge)
	api.POST("/kpis/:id/self-rating", h.SubmitSelfRating)
	api.POST("/kpis/:id/manager-review", h.SubmitManagerReview)
	api.POST("/kpis/:id/confirmation", h.ConfirmReview)
	api.GET("/reviews/:id", h.GetReview)
	api.POST("/reviews/:id/resolve", h.ResolveRejection)
	api.GET("/notifications", h.ListNotifications)
	api.POST("/notifications/:id/read", h.MarkNotificationRead)
}

// ListKPIs returns the KPIs visible to the caller.
// GET /api/v1/kpis?status=pending&period_type=quarterly&quarter=Q1&year=2026&employee_id=7&department_id=3.
func (h *Handler) ListKPIs(c *gin.Context) {
	q, err := h.parseListQuery(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	actor := currentActor(c)
	kpis, err := h.workflow.ListVisibleKPIs(c.Request.Context(), actor, q)
	if err != nil {
		h.serviceError(c, err, "Failed to list KPIs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"kpis":          kpis,
		"total_entries": len(kpis),
		"generated_at":  time.Now().UTC(),
	})
}

// CreateKPI creates a KPI for one of the caller's employees.
// POST /api/v1/kpis.
func (h *Handler) CreateKPI(c *gin.Context) {
	var in workflow.CreateKPIInput
	if !h.bind(c, &in) {
		return
	}

	actor := currentActor(c)
	kpi, err := h.workflow.CreateKPI(c.Request.Context(), actor, in)
	if err != nil {
		h.serviceError(c, err, "Failed to create KPI")
		return
	}

	h.log.Info().
		Uint("company_id", kpi.CompanyID).
		Uint("kpi_id", kpi.ID).
		Uint("employee_id", kpi.EmployeeID).
		Msg("KPI created")

	c.JSON(http.StatusCreated, kpi)
}

// GetKPI returns a KPI with its review and current score.
// GET /api/v1/kpis/:id.
func (h *Handler) GetKPI(c *gin.Context) {
	id, err := parseID(c, "KPI")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.workflow.GetKPI(c.Request.Context(), currentActor(c), id)
	if err != nil {
		h.serviceError(c, err, "Failed to get KPI")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetScore returns the weighted manager score of a KPI.
// GET /api/v1/kpis/:id/score.
func (h *Handler) GetScore(c *gin.Context) {
	id, err := parseID(c, "KPI")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	score, err := h.workflow.Score(c.Request.Context(), currentActor(c), id)
	if err != nil {
		h.serviceError(c, err, "Failed to compute score")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"kpi_id": id,
		"score":  score,
	})
}

// Acknowledge records the employee's acknowledgement of a KPI.
// POST /api/v1/kpis/:id/acknowledge.
func (h *Handler) Acknowledge(c *gin.Context) {
	id, err := parseID(c, "KPI")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	var in workflow.AcknowledgeInput
	if !h.bind(c, &in) {
		return
	}

	kpi, err := h.workflow.Acknowledge(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		h.serviceError(c, err, "Failed to acknowledge KPI")
		return
	}
	c.JSON(http.StatusOK, kpi)
}

// SubmitSelfRating creates or updates the employee's self-rating.
// POST /api/v1/kpis/:id/self-rating.
func (h *Handler) SubmitSelfRating(c *gin.Context) {
	id, err := parseID(c, "KPI")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	var in workflow.SelfRatingInput
	if !h.bind(c, &in) {
		return
	}

	review, err := h.workflow.SubmitSelfRating(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		h.serviceError(c, err, "Failed to submit self-rating")
		return
	}
	c.JSON(http.StatusOK, review)
}

// SubmitManagerReview records the manager's ratings and signature.
// POST /api/v1/kpis/:id/manager-review.
func (h *Handler) SubmitManagerReview(c *gin.Context) {
	id, err := parseID(c, "KPI")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	var in workflow.ManagerReviewInput
	if !h.bind(c, &in) {
		return
	}

	review, err := h.workflow.SubmitManagerReview(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		h.serviceError(c, err, "Failed to submit manager review")
		return
	}
	c.JSON(http.StatusOK, review)
}

// ConfirmReview records the employee's approval or rejection of the review.
// POST /api/v1/kpis/:id/confirmation.
func (h *Handler) ConfirmReview(c *gin.Context) {
	id, err := parseID(c, "KPI")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	var in workflow.ConfirmationInput
	if !h.bind(c, &in) {
		return
	}

	review, err := h.workflow.ConfirmReview(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		h.serviceError(c, err, "Failed to confirm review")
		return
	}
	c.JSON(http.StatusOK, review)
}

// GetReview returns one review.
// GET /api/v1/reviews/:id.
func (h *Handler) GetReview(c *gin.Context) {
	id, err := parseID(c, "review")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	review, err := h.workflow.GetReview(c.Request.Context(), currentActor(c), id)
	if err != nil {
		h.serviceError(c, err, "Failed to get review")
		return
	}
	c.JSON(http.StatusOK, review)
}

// ResolveRejection marks a rejected review as resolved by HR.
// POST /api/v1/reviews/:id/resolve.
func (h *Handler) ResolveRejection(c *gin.Context) {
	id, err := parseID(c, "review")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	var in workflow.ResolveInput
	if !h.bind(c, &in) {
		return
	}

	review, err := h.workflow.ResolveRejection(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		h.serviceError(c, err, "Failed to resolve rejection")
		return
	}
	c.JSON(http.StatusOK, review)
}

// ListNotifications returns the caller's notifications and unread count.
// GET /api/v1/notifications?unread=true&limit=50.
func (h *Handler) ListNotifications(c *gin.Context) {
	limit, err := parseLimit(c, 50)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	unreadOnly := c.Query("unread") == "true"

	actor := currentActor(c)
	ctx := c.Request.Context()
	items, err := h.workflow.ListNotifications(ctx, actor, unreadOnly, limit)
	if err != nil {
		h.serviceError(c, err, "Failed to list notifications")
		return
	}
	unread, err := h.workflow.UnreadNotifications(ctx, actor)
	if err != nil {
		h.serviceError(c, err, "Failed to count notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"unread":        unread,
		"limited_to":    limit,
	})
}

// MarkNotificationRead marks one notification read.
// POST /api/v1/notifications/:id/read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, err := parseID(c, "notification")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.workflow.MarkNotificationRead(c.Request.Context(), currentActor(c), id); err != nil {
		h.serviceError(c, err, "Failed to mark notification read")
		return
	}
	c.Status(http.StatusNoContent)
}

// Helper functions

// bind decodes the JSON body and reports whether the handler may continue.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseID extracts and validates a numeric ID from the URL parameter.
func parseID(c *gin.Context, what string) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, idStr)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}
	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}
	if limit > 500 {
		return 0, fmt.Errorf("limit cannot exceed 500")
	}
	return limit, nil
}

func (h *Handler) parseListQuery(c *gin.Context) (workflow.ListQuery, error) {
	q := workflow.ListQuery{
		Status:     c.Query("status"),
		PeriodType: c.Query("period_type"),
		Quarter:    c.Query("quarter"),
	}
	if v := c.Query("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("invalid year parameter: %s", v)
		}
		q.Year = year
	}
	for name, dst := range map[string]*uint{"employee_id": &q.EmployeeID, "department_id": &q.DepartmentID} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return q, fmt.Errorf("invalid %s parameter: %s", name, v)
		}
		*dst = uint(id)
	}
	return q, nil
}

// serviceError maps workflow errors to HTTP responses. Unknown errors are
// logged and reported with a generic message.
func (h *Handler) serviceError(c *gin.Context, err error, message string) {
	var ve *workflow.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     ve.Message,
			"field":     ve.Field,
			"timestamp": time.Now().UTC(),
		})
	case errors.Is(err, workflow.ErrNotFound):
		h.errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrForbidden):
		h.errorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition):
		h.errorResponse(c, http.StatusConflict, err.Error())
	default:
		actor := currentActor(c)
		h.log.Error().
			Err(err).
			Uint("company_id", actor.CompanyID).
			Uint("user_id", actor.UserID).
			Str("path", c.FullPath()).
			Msg(message)
		h.errorResponse(c, http.StatusInternalServerError, message)
	}
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
