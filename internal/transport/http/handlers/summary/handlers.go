package summaryhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kpitrack/internal/domain/audit"
	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/directory"
	"kpitrack/internal/domain/kpi"
	"kpitrack/internal/domain/summary"
	"kpitrack/internal/transport/http/api"
	"kpitrack/internal/transport/http/middleware"
	"kpitrack/internal/transport/http/shared"
)

type Handler struct {
	Service *summary.Service
	Dir     *directory.Store
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *summary.Service, dir *directory.Store, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Dir: dir, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/summaries", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermSummaryRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermSummaryRead, h.Perms)).Get("/report", h.handleReport)
		r.With(middleware.RequirePermission(auth.PermSummaryRead, h.Perms)).Get("/{employeeID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermSummaryWrite, h.Perms)).Post("/{employeeID}/recompute", h.handleRecompute)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if !auth.IsAdminRole(user.Role) && user.Role != auth.RoleModerator {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}

	quarter := r.URL.Query().Get("quarter")
	fiscalYear := 0
	if raw := r.URL.Query().Get("fiscalYear"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			fiscalYear = year
		}
	}

	page := shared.ParsePagination(r, 50, 200)
	summaries, err := h.Service.List(r.Context(), quarter, fiscalYear, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "summary_list_failed", "failed to list summaries", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, summaries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID := chi.URLParam(r, "employeeID")
	quarter, fiscalYear, failed := periodParams(w, r)
	if failed {
		return
	}
	if !h.canRead(r.Context(), user, employeeID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}

	out, err := h.Service.Get(r.Context(), employeeID, quarter, fiscalYear)
	if err != nil {
		if errors.Is(err, summary.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "no summary for this period", middleware.GetRequestID(r.Context()))
			return
		}
		if errors.Is(err, summary.ErrInvalidKey) {
			api.Fail(w, http.StatusBadRequest, "invalid_request", "invalid summary key", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "summary_get_failed", "failed to load summary", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

type recomputeRequest struct {
	Quarter    string `json:"quarter"`
	FiscalYear int    `json:"fiscalYear"`
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload recomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("quarter", payload.Quarter, "quarter is required")
	v.Enum("quarter", payload.Quarter, kpi.Quarters, "quarter must be one of Q1-Q4")
	v.Positive("fiscalYear", payload.FiscalYear, "fiscal year is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	employeeID := chi.URLParam(r, "employeeID")
	out, err := h.Service.Recompute(r.Context(), employeeID, payload.Quarter, payload.FiscalYear)
	if err != nil {
		if errors.Is(err, summary.ErrInvalidKey) {
			api.Fail(w, http.StatusBadRequest, "invalid_request", "invalid summary key", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "summary_recompute_failed", "failed to recompute summary", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, audit.ActionRecomputeSum, "period_summary", employeeID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit summary recompute failed", "err", err)
	}

	if out == nil {
		api.Success(w, map[string]string{"status": "no_records"}, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if !auth.IsAdminRole(user.Role) && user.Role != auth.RoleModerator {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}

	quarter, fiscalYear, failed := periodParams(w, r)
	if failed {
		return
	}

	data, err := h.Service.ReportPDF(r.Context(), quarter, fiscalYear)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to render report", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=kpi-summary-%s-%d.pdf", quarter, fiscalYear))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("summary report write failed", "err", err)
	}
}

func periodParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	quarter := r.URL.Query().Get("quarter")
	fiscalYear := 0
	if raw := r.URL.Query().Get("fiscalYear"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			fiscalYear = year
		}
	}

	v := shared.NewValidator()
	v.Required("quarter", quarter, "quarter is required")
	v.Enum("quarter", quarter, kpi.Quarters, "quarter must be one of Q1-Q4")
	v.Positive("fiscalYear", fiscalYear, "fiscal year is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return "", 0, true
	}
	return quarter, fiscalYear, false
}

func (h *Handler) canRead(ctx context.Context, user auth.UserContext, employeeID string) bool {
	if auth.IsAdminRole(user.Role) || user.Role == auth.RoleModerator {
		return true
	}
	if user.EmployeeID != "" && user.EmployeeID == employeeID {
		return true
	}
	if user.Role == auth.RoleApprover {
		allowed, err := h.Dir.IsApproverFor(ctx, user.EmployeeID, employeeID)
		if err != nil {
			slog.Warn("summary approver scope check failed", "err", err)
			return false
		}
		return allowed
	}
	return false
}
