// Package httpapi exposes the control plane over HTTP/JSON: admin login,
// code issuance and revocation, listings, the audit trail, and the user
// verify/dispatch operations.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"gate-control-plane/internal/audit"
	"gate-control-plane/internal/code"
	"gate-control-plane/internal/gate"
	"gate-control-plane/internal/relay"
	"gate-control-plane/internal/security"
)

// Dependencies wires a Server. All fields are required.
type Dependencies struct {
	Logger            *log.Logger
	Addr              string
	CORSAllowedOrigin string
	Store             *code.Store
	Gate              *gate.Gate
	Audit             *audit.Log
	Admin             security.Admin
	Tokens            *security.TokenProvider
}

// Server is the HTTP front of the control plane.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	store      *code.Store
	gate       *gate.Gate
	audit      *audit.Log
	admin      security.Admin
	tokens     *security.TokenProvider
	nowFn      func() time.Time
}

// NewServer builds the route table and middleware chain.
func NewServer(d Dependencies) *Server {
	s := &Server{
		logger: d.Logger,
		store:  d.Store,
		gate:   d.Gate,
		audit:  d.Audit,
		admin:  d.Admin,
		tokens: d.Tokens,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /v1/verify", s.handleVerify)
	mux.HandleFunc("POST /v1/dispatch", s.handleDispatch)
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	mux.HandleFunc("POST /v1/codes", s.requireAdmin(s.handleIssueCode))
	mux.HandleFunc("GET /v1/codes", s.requireAdmin(s.handleListCodes))
	mux.HandleFunc("DELETE /v1/codes/{code}", s.requireAdmin(s.handleRevokeCode))
	mux.HandleFunc("GET /v1/audit", s.requireAdmin(s.handleAudit))
	mux.HandleFunc("POST /v1/admin/dispatch", s.requireAdmin(s.handleAdminDispatch))

	origin := d.CORSAllowedOrigin
	if origin == "" {
		origin = "*"
	}
	handler := loggingMiddleware(d.Logger, corsMiddleware(origin, mux))

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins serving and blocks until shutdown or failure.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	name, err := s.admin.Authenticate(req.Name, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "bad credentials")
		return
	}
	token, expiresAt, err := s.tokens.IssueAccess(name)
	if err != nil {
		s.internalError(w, "issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

func (s *Server) handleIssueCode(w http.ResponseWriter, r *http.Request) {
	var req issueCodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.Owner == "" {
		writeError(w, http.StatusBadRequest, "missing_owner", "owner is required")
		return
	}
	if req.ValidUntil.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_window", "valid_until is required")
		return
	}

	issued, err := s.store.Issue(r.Context(), req.Owner, req.ValidFrom, req.ValidUntil)
	if err != nil {
		if errors.Is(err, code.ErrInvalidWindow) {
			writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
			return
		}
		s.internalError(w, "issue code", err)
		return
	}
	writeJSON(w, http.StatusOK, issueCodeResponse{
		Code:       issued.Code,
		Owner:      issued.Owner,
		ValidFrom:  issued.ValidFrom,
		ValidUntil: issued.ValidUntil,
	})
}

func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	active := s.store.SnapshotActive(s.nowFn())
	out := make([]activeCodeView, len(active))
	for i, a := range active {
		out[i] = activeCodeView{
			Code:             a.Code,
			Owner:            a.Owner,
			ValidFrom:        a.ValidFrom,
			ValidUntil:       a.ValidUntil,
			RemainingSeconds: a.RemainingSeconds,
		}
	}
	writeJSON(w, http.StatusOK, listCodesResponse{ActiveCodes: out})
}

func (s *Server) handleRevokeCode(w http.ResponseWriter, r *http.Request) {
	c := r.PathValue("code")
	if _, err := s.store.Revoke(r.Context(), c); err != nil {
		if errors.Is(err, code.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "code not found")
			return
		}
		s.internalError(w, "revoke code", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)
	entries, err := s.audit.Read(r.Context(), limit, offset)
	if err != nil {
		s.internalError(w, "read audit", err)
		return
	}
	out := make([]auditEntryView, len(entries))
	for i, e := range entries {
		out[i] = auditEntryView{
			Owner:     e.Owner,
			Code:      e.Code,
			Action:    string(e.Action),
			Target:    e.Target,
			Timestamp: e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, auditResponse{Entries: out})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	v, err := s.gate.Verify(r.Context(), req.Code)
	if err != nil {
		s.writeGateError(w, "verify", err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Authorized: true, Owner: v.Owner})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	d, err := s.gate.Dispatch(r.Context(), req.Code, req.Target, req.Command)
	if err != nil {
		s.writeGateError(w, "dispatch", err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{Dispatched: true, Owner: d.Owner, Target: d.Target})
}

func (s *Server) handleAdminDispatch(w http.ResponseWriter, r *http.Request) {
	var req adminDispatchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	d, err := s.gate.DirectDispatch(r.Context(), adminFrom(r.Context()), req.Target, req.Command)
	if err != nil {
		s.writeGateError(w, "admin dispatch", err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{Dispatched: true, Owner: d.Owner, Target: d.Target})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeGateError maps the gate's error taxonomy onto HTTP. Domain
// rejections carry their category; only unexpected failures collapse into
// a generic 500.
func (s *Server) writeGateError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, gate.ErrCodeInvalid):
		writeError(w, http.StatusForbidden, "invalid_code", "code not valid")
	case errors.Is(err, gate.ErrCodeNotYetValid):
		writeError(w, http.StatusForbidden, "code_not_yet_valid", "code not yet valid")
	case errors.Is(err, gate.ErrCodeExpired):
		writeError(w, http.StatusForbidden, "code_expired", "code expired")
	case errors.Is(err, relay.ErrUnknownTarget):
		writeError(w, http.StatusBadRequest, "unknown_target", err.Error())
	case errors.Is(err, gate.ErrPublish):
		// Retryable: the authorization state was preserved.
		writeError(w, http.StatusInternalServerError, "transport_failure", "command could not be delivered")
	default:
		s.internalError(w, op, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("%s error: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
