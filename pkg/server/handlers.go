package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/reportkeeper/pkg/clock"
	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/security/auth"
	"mercator-hq/reportkeeper/pkg/telemetry/logging"
	"mercator-hq/reportkeeper/pkg/telemetry/metrics"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type handlers struct {
	deps      Deps
	clock     clock.Clock
	lifecycle *metrics.LifecycleMetrics
	server    *Server
}

// CreateReportRequest is the body of POST /v1/reports.
type CreateReportRequest struct {
	ID       string         `json:"id,omitempty"`
	OwnerID  string         `json:"owner_id,omitempty"`
	BranchID string         `json:"branch_id,omitempty"`
	Content  map[string]any `json:"content,omitempty"`
}

// AdvanceRequest is the body of POST /v1/reports/{id}/advance.
type AdvanceRequest struct {
	Stage  string         `json:"stage"`
	Fields map[string]any `json:"fields,omitempty"`
}

// DeleteResponse is returned by DELETE /v1/reports/{id}.
type DeleteResponse struct {
	ID               string    `json:"id"`
	DeletedAt        time.Time `json:"deleted_at"`
	RecoverableUntil time.Time `json:"recoverable_until"`
}

// ListResponse is returned by GET /v1/reports.
type ListResponse struct {
	Reports    []*report.Report `json:"reports"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func (h *handlers) createReport(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req CreateReportRequest
	if err := decodeJSON(r, &req); err != nil {
		h.server.writeError(w, r, err)
		return
	}

	if req.OwnerID == "" {
		req.OwnerID = p.UserID
	}
	if req.BranchID == "" {
		req.BranchID = p.BranchID
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	now := h.clock.Now()
	doc := &report.Report{
		ID:         req.ID,
		OwnerID:    req.OwnerID,
		BranchID:   req.BranchID,
		Stage:      report.StageOnSite,
		CreatedAt:  now,
		LastEdited: now,
		Content:    req.Content,
	}
	if doc.BranchID == "" {
		h.server.writeError(w, r, badRequest("branch_id is required"))
		return
	}
	if !h.canAccess(p, doc) {
		h.server.writeError(w, r, report.ErrForbidden)
		return
	}

	if err := h.deps.Store.Create(r.Context(), doc); err != nil {
		h.server.writeError(w, r, err)
		return
	}

	h.server.logger.InfoContext(logging.WithReportID(r.Context(), doc.ID), "report created",
		"owner_id", doc.OwnerID,
		"branch_id", doc.BranchID,
	)
	writeJSON(w, http.StatusCreated, doc)
}

func (h *handlers) getReport(w http.ResponseWriter, r *http.Request) {
	doc, err := h.load(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handlers) listReports(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	q, err := h.scopedQuery(p, r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}

	docs, err := h.deps.Store.Query(r.Context(), q)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}

	resp := ListResponse{Reports: docs}
	if resp.Reports == nil {
		resp.Reports = []*report.Report{}
	}
	if len(docs) == q.Limit {
		resp.NextCursor = encodeCursor(report.CursorOf(docs[len(docs)-1], q.OrderField()))
	}
	writeJSON(w, http.StatusOK, resp)
}

// scopedQuery builds the list query from the URL, narrowed to what p may
// see: their own reports, their branch for branch managers, everything for
// superadmins.
func (h *handlers) scopedQuery(p auth.Principal, r *http.Request) (*report.Query, error) {
	params := r.URL.Query()
	q := &report.Query{
		OwnerID:  params.Get("owner_id"),
		BranchID: params.Get("branch_id"),
		SortBy:   report.SortByCreatedAt,
		Limit:    defaultPageSize,
	}

	if v := params.Get("deleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, badRequest(fmt.Sprintf("invalid deleted filter %q", v))
		}
		q.IsDeleted = report.BoolPtr(b)
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return nil, badRequest(fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
		}
		q.Limit = n
	}
	if v := params.Get("cursor"); v != "" {
		c, err := decodeCursor(v)
		if err != nil {
			return nil, badRequest("invalid cursor")
		}
		q.After = c
	}

	switch {
	case !h.deps.Authorizer.Allowed(p, auth.CapabilityManageAnyReport):
		if q.OwnerID != "" && q.OwnerID != p.UserID {
			return nil, report.ErrForbidden
		}
		q.OwnerID = p.UserID
	case p.Role == auth.RoleBranchManager:
		if q.BranchID != "" && q.BranchID != p.BranchID {
			return nil, report.ErrForbidden
		}
		q.BranchID = p.BranchID
	}
	return q, nil
}

func (h *handlers) deleteReport(w http.ResponseWriter, r *http.Request) {
	doc, err := h.load(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}

	deletedAt, err := h.deps.Recovery.SoftDelete(r.Context(), doc.ID, report.ReasonNone)
	if err != nil {
		h.lifecycle.RecordOperation("delete", resultOf(err))
		h.server.writeError(w, r, err)
		return
	}
	h.lifecycle.RecordOperation("delete", metrics.ResultSuccess)

	writeJSON(w, http.StatusOK, DeleteResponse{
		ID:               doc.ID,
		DeletedAt:        deletedAt,
		RecoverableUntil: deletedAt.Add(h.deps.Recovery.Policy().RecoveryWindow),
	})
}

func (h *handlers) recoverReport(w http.ResponseWriter, r *http.Request) {
	doc, err := h.load(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}

	recovered, err := h.deps.Recovery.Recover(r.Context(), doc.ID)
	if err != nil {
		h.lifecycle.RecordOperation("recover", resultOf(err))
		h.server.writeError(w, r, err)
		return
	}
	h.lifecycle.RecordOperation("recover", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, recovered)
}

func (h *handlers) advanceReport(w http.ResponseWriter, r *http.Request) {
	doc, err := h.load(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}

	var req AdvanceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.server.writeError(w, r, err)
		return
	}
	target, err := report.ParseStage(req.Stage)
	if err != nil {
		h.server.writeError(w, r, badRequest(err.Error()))
		return
	}

	advanced, err := h.deps.Machine.Advance(r.Context(), doc.ID, target, req.Fields)
	if err != nil {
		h.lifecycle.RecordTransition(string(target), resultOf(err))
		h.server.writeError(w, r, err)
		return
	}
	h.lifecycle.RecordTransition(string(target), metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, advanced)
}

func (h *handlers) triggerReclamation(w http.ResponseWriter, r *http.Request) {
	if h.deps.Trigger == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(r, "unavailable", "reclamation is not configured"))
		return
	}

	summary, err := h.deps.Trigger.Run(r.Context(), principal(r))
	if err != nil {
		if summary != nil {
			// Aborted mid-run: report what was done.
			writeJSON(w, http.StatusInternalServerError, summary)
			return
		}
		h.server.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) lastReclamation(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Authorizer.Allowed(principal(r), auth.CapabilityReclaim) {
		h.server.writeError(w, r, report.ErrForbidden)
		return
	}
	if h.deps.Trigger == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(r, "unavailable", "reclamation is not configured"))
		return
	}

	summary := h.deps.Trigger.LastSummary()
	if summary == nil {
		h.server.writeError(w, r, errNoRuns)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

var errNoRuns = &notFoundError{msg: "no reclamation run yet"}

// load reads the report named in the path and checks the caller may act on
// it.
func (h *handlers) load(r *http.Request) (*report.Report, error) {
	id := r.PathValue("id")
	doc, err := h.deps.Store.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !h.canAccess(principal(r), doc) {
		return nil, report.ErrForbidden
	}
	return doc, nil
}

// canAccess reports whether p may read and change doc: owners always may,
// branch managers within their branch, superadmins everywhere.
func (h *handlers) canAccess(p auth.Principal, doc *report.Report) bool {
	if doc.OwnerID == p.UserID && (p.BranchID == "" || doc.BranchID == p.BranchID) {
		return true
	}
	if !h.deps.Authorizer.Allowed(p, auth.CapabilityManageAnyReport) {
		return false
	}
	if p.Role == auth.RoleBranchManager {
		return doc.BranchID == p.BranchID
	}
	return true
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

func resultOf(err error) string {
	code, _, _ := statusFor(err)
	if code >= 500 {
		return metrics.ResultError
	}
	return metrics.ResultRejected
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return err
		case errors.Is(err, io.EOF):
			return badRequest("request body is required")
		default:
			return badRequest(fmt.Sprintf("invalid JSON body: %v", err))
		}
	}
	return nil
}

// Cursors are opaque to clients: base64 of "<unix nanos>|<id>".
func encodeCursor(c *report.Cursor) string {
	raw := strconv.FormatInt(c.At.UnixNano(), 10) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*report.Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("malformed cursor")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, err
	}
	return &report.Cursor{At: time.Unix(0, n).UTC(), ID: id}, nil
}
