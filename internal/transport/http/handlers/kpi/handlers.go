package kpihandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kpitrack/internal/domain/audit"
	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/directory"
	"kpitrack/internal/domain/kpi"
	"kpitrack/internal/platform/email"
	"kpitrack/internal/platform/metrics"
	"kpitrack/internal/transport/http/api"
	"kpitrack/internal/transport/http/middleware"
	"kpitrack/internal/transport/http/shared"
)

// AuditRecorder is the slice of the audit service the handlers write to.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

type Handler struct {
	Service *kpi.Service
	Perms   middleware.PermissionStore
	Audit   AuditRecorder
	Dir     *directory.Store
	Mailer  email.Mailer
	Metrics *metrics.Collector
}

func NewHandler(service *kpi.Service, perms middleware.PermissionStore, auditSvc AuditRecorder, dir *directory.Store, mailer email.Mailer, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc, Dir: dir, Mailer: mailer, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/kpis", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermKPIRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermKPIWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermKPIRead, h.Perms)).Get("/{kpiID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermKPIWrite, h.Perms)).Put("/{kpiID}", h.handleUpdateValues)
		r.With(middleware.RequirePermission(auth.PermKPIWrite, h.Perms)).Delete("/{kpiID}", h.handleDelete)
		r.With(middleware.RequirePermission(auth.PermKPIRead, h.Perms)).Get("/{kpiID}/history", h.handleHistory)
		r.With(middleware.RequirePermission(auth.PermKPIWrite, h.Perms)).Post("/{kpiID}/submit", h.transitionHandler(kpi.StatusSubmitted))
		r.With(middleware.RequirePermission(auth.PermKPIWrite, h.Perms)).Post("/{kpiID}/resubmit", h.transitionHandler(kpi.StatusDraft))
		r.With(middleware.RequirePermission(auth.PermKPIApprove, h.Perms)).Post("/{kpiID}/review", h.transitionHandler(kpi.StatusUnderReview))
		r.With(middleware.RequirePermission(auth.PermKPIApprove, h.Perms)).Post("/{kpiID}/approve", h.transitionHandler(kpi.StatusApproved))
		r.With(middleware.RequirePermission(auth.PermKPIApprove, h.Perms)).Post("/{kpiID}/reject", h.transitionHandler(kpi.StatusRejected))
		r.With(middleware.RequirePermission(auth.PermKPIArchive, h.Perms)).Post("/{kpiID}/archive", h.transitionHandler(kpi.StatusArchived))
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	query := r.URL.Query()
	filter := kpi.Filter{
		EmployeeID: query.Get("employeeId"),
		Department: query.Get("department"),
		Quarter:    query.Get("quarter"),
		Status:     query.Get("status"),
		Category:   query.Get("category"),
	}
	if raw := query.Get("fiscalYear"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			filter.FiscalYear = year
		}
	}

	page := shared.ParsePagination(r, 50, 200)
	records, total, err := h.Service.List(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		h.failKPI(w, r, err, "kpi_list_failed", "failed to list kpi records")
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, records, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload kpi.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.EmployeeID == "" {
		payload.EmployeeID = user.EmployeeID
	}

	v := shared.NewValidator()
	v.Required("company", payload.Company, "company is required")
	v.Required("employeeId", payload.EmployeeID, "employee id is required")
	v.Required("department", payload.Department, "department is required")
	v.Required("nameEn", payload.NameEN, "english name is required")
	v.Required("quarter", payload.Quarter, "quarter is required")
	v.Enum("quarter", payload.Quarter, kpi.Quarters, "quarter must be one of Q1-Q4")
	v.Required("category", payload.Category, "category is required")
	v.Enum("category", payload.Category, kpi.Categories, "unknown category")
	v.Positive("fiscalYear", payload.FiscalYear, "fiscal year is required")
	if payload.Direction != "" && !kpi.ValidDirection(payload.Direction) {
		v.Add("direction", "direction must be '+' or '-'")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	rec, err := h.Service.Create(r.Context(), user, payload)
	if err != nil {
		h.failKPI(w, r, err, "kpi_create_failed", "failed to create kpi record")
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, audit.ActionCreateKPI, "kpi_record", rec.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, rec); err != nil {
		slog.Warn("audit kpi create failed", "err", err)
	}
	api.Created(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	rec, err := h.Service.Get(r.Context(), chi.URLParam(r, "kpiID"))
	if err != nil {
		h.failKPI(w, r, err, "kpi_get_failed", "failed to load kpi record")
		return
	}
	if !h.canRead(r.Context(), user, rec) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateValues(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload kpi.ValueUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	kpiID := chi.URLParam(r, "kpiID")
	before, err := h.Service.Get(r.Context(), kpiID)
	if err != nil {
		h.failKPI(w, r, err, "kpi_update_failed", "failed to update kpi record")
		return
	}

	rec, err := h.Service.UpdateValues(r.Context(), user, kpiID, payload)
	if err != nil {
		h.failKPI(w, r, err, "kpi_update_failed", "failed to update kpi record")
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, audit.ActionUpdateKPI, "kpi_record", kpiID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, rec); err != nil {
		slog.Warn("audit kpi update failed", "err", err)
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	kpiID := chi.URLParam(r, "kpiID")
	if err := h.Service.Delete(r.Context(), user, kpiID); err != nil {
		h.failKPI(w, r, err, "kpi_delete_failed", "failed to delete kpi record")
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, audit.ActionDeleteKPI, "kpi_record", kpiID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit kpi delete failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	kpiID := chi.URLParam(r, "kpiID")
	rec, err := h.Service.Get(r.Context(), kpiID)
	if err != nil {
		h.failKPI(w, r, err, "kpi_history_failed", "failed to load kpi history")
		return
	}
	if !h.canRead(r.Context(), user, rec) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}

	history, err := h.Service.History(r.Context(), kpiID)
	if err != nil {
		h.failKPI(w, r, err, "kpi_history_failed", "failed to load kpi history")
		return
	}
	api.Success(w, history, middleware.GetRequestID(r.Context()))
}

type transitionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

func (h *Handler) transitionHandler(toStatus string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUser(r.Context())
		if !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
			return
		}

		var payload transitionRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
				return
			}
		}

		kpiID := chi.URLParam(r, "kpiID")
		rec, err := h.Service.Transition(r.Context(), user, kpiID, toStatus, payload.Notes, payload.Reason)
		if err != nil {
			h.failKPI(w, r, err, "kpi_transition_failed", "failed to change kpi status")
			return
		}

		// Resubmission is the only edge landing back on DRAFT.
		fromStatus := ""
		if toStatus == kpi.StatusDraft {
			fromStatus = kpi.StatusRejected
		}
		action := kpi.AuditAction(fromStatus, toStatus)
		if err := h.Audit.Record(r.Context(), user.UserID, action, "kpi_record", kpiID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]any{
			"status":  rec.Status,
			"version": rec.Version,
			"notes":   payload.Notes,
			"reason":  payload.Reason,
		}); err != nil {
			slog.Warn("audit kpi transition failed", "action", action, "err", err)
		}
		if h.Metrics != nil {
			h.Metrics.RecordTransition(action)
		}
		if toStatus == kpi.StatusApproved || toStatus == kpi.StatusRejected {
			h.notifyDecision(r.Context(), rec, payload.Reason)
		}
		api.Success(w, rec, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) notifyDecision(ctx context.Context, rec kpi.Record, reason string) {
	if h.Mailer == nil || h.Dir == nil {
		return
	}
	to, err := h.Dir.EmployeeEmail(ctx, rec.EmployeeID)
	if err != nil || to == "" {
		return
	}

	subject := "KPI approved: " + rec.NameEN
	body := "Your KPI \"" + rec.NameEN + "\" for " + rec.Quarter + " was approved."
	if rec.Status == kpi.StatusRejected {
		subject = "KPI rejected: " + rec.NameEN
		body = "Your KPI \"" + rec.NameEN + "\" for " + rec.Quarter + " was rejected."
		if reason != "" {
			body += " Reason: " + reason
		}
	}
	if err := h.Mailer.Send(ctx, to, subject, body); err != nil {
		slog.Warn("kpi decision email failed", "kpiId", rec.ID, "err", err)
	}
}

// canRead mirrors the list scoping: owners, their approvers and admins.
func (h *Handler) canRead(ctx context.Context, user auth.UserContext, rec kpi.Record) bool {
	if auth.IsAdminRole(user.Role) {
		return true
	}
	if user.EmployeeID != "" && user.EmployeeID == rec.EmployeeID {
		return true
	}
	if user.Role == auth.RoleApprover || user.Role == auth.RoleModerator {
		if rec.ManagerID != "" && rec.ManagerID == user.EmployeeID {
			return true
		}
		allowed, err := h.Service.Dir.IsApproverFor(ctx, user.EmployeeID, rec.EmployeeID)
		if err != nil {
			slog.Warn("kpi approver scope check failed", "err", err)
			return false
		}
		return allowed
	}
	return false
}

func (h *Handler) failKPI(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, kpi.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "kpi record not found", requestID)
	case errors.Is(err, kpi.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.Is(err, kpi.ErrInvalidTransition):
		api.Fail(w, http.StatusUnprocessableEntity, "invalid_transition", "status transition not allowed", requestID)
	case errors.Is(err, kpi.ErrNotEditable):
		api.Fail(w, http.StatusUnprocessableEntity, "not_editable", "only draft records can be modified", requestID)
	case errors.Is(err, kpi.ErrMissingReason):
		api.Fail(w, http.StatusBadRequest, "reason_required", "a rejection reason is required", requestID)
	case errors.Is(err, kpi.ErrInvalidWeight):
		api.Fail(w, http.StatusBadRequest, "invalid_weight", "weight must be between 0 and 100", requestID)
	case errors.Is(err, kpi.ErrConflict):
		api.Fail(w, http.StatusConflict, "conflict", "the record was modified concurrently, reload and retry", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}
