// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeygate.
//
// go-passkeygate is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/auth"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeygate/pkg/correlation"
	"github.com/jeremyhahn/go-passkeygate/pkg/metrics"
	"github.com/jeremyhahn/go-passkeygate/pkg/passkey"
	"github.com/jeremyhahn/go-passkeygate/pkg/session"
)

// maxBodyBytes bounds request bodies. Attestations with certificate chains
// stay well below it.
const maxBodyBytes = 64 << 10

// Handler provides HTTP handlers for the passkey ceremonies.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service  *passkey.Service
	sessions *session.Manager
	admin    auth.Authenticator
	posts    *passkey.PostGate
	audit    audit.Recorder
	logger   logger.Logger
}

// NewHandler creates a new passkey HTTP handler. Until WithAdmin is called
// every admin request is rejected.
func NewHandler(service *passkey.Service, sessions *session.Manager) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		admin:    auth.Chain{},
		audit:    audit.Nop(),
		logger:   logger.Nop(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(l logger.Logger) *Handler {
	h.logger = l.With(logger.String("component", "passkey_http"))
	return h
}

// WithAdmin sets the authenticator guarding admin endpoints.
func (h *Handler) WithAdmin(a auth.Authenticator) *Handler {
	h.admin = a
	return h
}

// WithAudit sets the audit recorder.
func (h *Handler) WithAudit(r audit.Recorder) *Handler {
	h.audit = r
	return h
}

// WithPostGate enables the post gate.
func (h *Handler) WithPostGate(g *passkey.PostGate) *Handler {
	h.posts = g
	return h
}

// Challenge handles GET /challenge
//
// Response: {"challenge": [bytes...], "challengeB64": "<base64url>"}
// The challenge replaces any pending one in the session cookie.
func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, r)
		return
	}

	sess := h.loadSession(r)
	c, err := h.service.IssueChallenge(sess)
	if err != nil {
		h.logger.Error(r.Context(), "challenge generation failed", logger.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, ErrorCodeInternalError, "Error generating challenge")
		return
	}
	if !h.saveSession(w, r, sess) {
		return
	}

	ints := make([]int, len(c.Value))
	for i, b := range c.Value {
		ints[i] = int(b)
	}
	h.writeJSON(w, r, http.StatusOK, ChallengeResponse{
		Challenge:    ints,
		ChallengeB64: c.Encoded(),
	})
}

// RegistrationOptions handles GET /options/registration
//
// Query param: displayName (optional)
// Response: WebAuthn PublicKeyCredentialCreationOptions
func (h *Handler) RegistrationOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, r)
		return
	}

	sess := h.loadSession(r)
	options, err := h.service.RegistrationOptions(sess, r.URL.Query().Get("displayName"))
	if err != nil {
		h.logger.Error(r.Context(), "registration options failed", logger.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, ErrorCodeInternalError, "Error generating challenge")
		return
	}
	if !h.saveSession(w, r, sess) {
		return
	}
	h.writeJSON(w, r, http.StatusOK, options)
}

// AuthenticationOptions handles GET /options/authentication
//
// Response: WebAuthn PublicKeyCredentialRequestOptions without an allow
// list, for discoverable credentials.
func (h *Handler) AuthenticationOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, r)
		return
	}

	sess := h.loadSession(r)
	options, err := h.service.AuthenticationOptions(sess)
	if err != nil {
		h.logger.Error(r.Context(), "authentication options failed", logger.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, ErrorCodeInternalError, "Error generating challenge")
		return
	}
	if !h.saveSession(w, r, sess) {
		return
	}
	h.writeJSON(w, r, http.StatusOK, options)
}

// ValidateInvitation handles POST /validate-invitation
//
// Request body: {"code": "..."}
// Response: {"valid": true, "invitationId": "..."}
func (h *Handler) ValidateInvitation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r)
		return
	}

	var req ValidateInvitationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		h.writeError(w, r, http.StatusBadRequest, ErrorCodeInvalidRequest, "Invitation code is required")
		return
	}

	handle, err := h.service.Invitations().Validate(r.Context(), req.Code)
	switch {
	case err == nil:
		metrics.RecordInvitationEvent(metrics.EventValidated)
		h.writeJSON(w, r, http.StatusOK, ValidateInvitationResponse{Valid: true, InvitationID: handle.ID})
	case errors.Is(err, passkey.ErrInvitationNotFound):
		metrics.RecordInvitationEvent(metrics.EventRejected)
		h.writeError(w, r, http.StatusNotFound, ErrorCodeInvalidInvitation, "Invalid invitation code")
	case errors.Is(err, passkey.ErrInvitationUsed):
		metrics.RecordInvitationEvent(metrics.EventRejected)
		h.writeError(w, r, http.StatusBadRequest, ErrorCodeInvitationUsed, "Invitation code has already been used")
	default:
		h.logger.Error(r.Context(), "invitation validation failed", logger.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, ErrorCodeInternalError, "Error validating invitation")
	}
}

// Register handles POST /register
//
// Request body: {"invitationId": "...", "code": "...", "credential": {...}}
// Response: {"success": true, "userId": "..."}
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r)
		return
	}
	start := time.Now()

	var req RegisterRequest
	if !h.decode(w, r, &req) {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.OutcomeInvalidInput, time.Since(start).Seconds())
		return
	}

	sess := h.loadSession(r)
	res, err := h.service.Register(r.Context(), sess, passkey.RegistrationRequest{
		InvitationID: req.InvitationID,
		Code:         req.Code,
		Credential:   req.Credential,
	})
	if err != nil {
		h.persistSpentChallenge(w, r, sess)
		outcome := h.handleCeremonyError(w, r, metrics.CeremonyRegistration, err)
		metrics.RecordCeremony(metrics.CeremonyRegistration, outcome, time.Since(start).Seconds())
		h.record(r, &audit.Event{
			Type:         audit.EventRegister,
			Outcome:      audit.OutcomeFailure,
			InvitationID: req.InvitationID,
			Detail:       outcome,
		})
		return
	}

	if !h.saveSession(w, r, sess) {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.OutcomeError, time.Since(start).Seconds())
		return
	}
	outcome := metrics.OutcomeSuccess
	if res.AlreadyRegistered {
		outcome = metrics.OutcomeRetry
	} else {
		metrics.RecordInvitationEvent(metrics.EventCreated)
	}
	metrics.RecordCeremony(metrics.CeremonyRegistration, outcome, time.Since(start).Seconds())
	h.record(r, &audit.Event{
		Type:         audit.EventRegister,
		Outcome:      audit.OutcomeSuccess,
		InvitationID: res.InvitationID,
		UserID:       res.UserID,
		CredentialID: passkey.EncodeBinary(res.CredentialID),
		Detail:       outcome,
	})

	h.writeJSON(w, r, http.StatusOK, CeremonyResponse{
		Success:      true,
		UserID:       res.UserID,
		CredentialID: passkey.EncodeBinary(res.CredentialID),
	})
}

// Verify handles POST /verify
//
// Request body: {"credential": {...}}
// Response: {"success": true, "userId": "..."}
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r)
		return
	}
	start := time.Now()

	var req VerifyRequest
	if !h.decode(w, r, &req) {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.OutcomeInvalidInput, time.Since(start).Seconds())
		return
	}

	sess := h.loadSession(r)
	res, err := h.service.Authenticate(r.Context(), sess, req.Credential)
	if err != nil {
		h.persistSpentChallenge(w, r, sess)
		outcome := h.handleCeremonyError(w, r, metrics.CeremonyAuthentication, err)
		metrics.RecordCeremony(metrics.CeremonyAuthentication, outcome, time.Since(start).Seconds())
		h.record(r, &audit.Event{Type: audit.EventLogin, Outcome: audit.OutcomeFailure, Detail: outcome})
		return
	}

	if !h.saveSession(w, r, sess) {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.OutcomeError, time.Since(start).Seconds())
		return
	}
	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.OutcomeSuccess, time.Since(start).Seconds())
	h.record(r, &audit.Event{
		Type:         audit.EventLogin,
		Outcome:      audit.OutcomeSuccess,
		UserID:       res.UserID,
		CredentialID: passkey.EncodeBinary(res.CredentialID),
	})

	h.writeJSON(w, r, http.StatusOK, CeremonyResponse{
		Success:      true,
		UserID:       res.UserID,
		CredentialID: passkey.EncodeBinary(res.CredentialID),
	})
}

// Session handles GET /session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, r)
		return
	}
	sess := h.loadSession(r)
	h.writeJSON(w, r, http.StatusOK, SessionResponse{
		Authenticated: sess.Authenticated,
		UserID:        sess.UserID,
	})
}

// Logout handles POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r)
		return
	}
	sess := h.loadSession(r)
	if sess.Authenticated {
		h.record(r, &audit.Event{Type: audit.EventLogout, Outcome: audit.OutcomeSuccess, UserID: sess.UserID})
	}
	h.service.Logout(sess)
	h.sessions.Clear(w)
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// GenerateInvitation handles POST /generate-invitation. It must be mounted
// behind the admin authenticator; Routes and MountChi do that.
//
// Request body: {"invitationId": "..."}
// Response: {"invitationLink": "https://.../register?code=..."}
func (h *Handler) GenerateInvitation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r)
		return
	}

	var req GenerateInvitationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.InvitationID) == "" {
		h.writeError(w, r, http.StatusBadRequest, ErrorCodeInvalidRequest, "Invitation ID is required")
		return
	}

	invitations := h.service.Invitations()
	code, err := invitations.Issue(r.Context(), req.InvitationID)
	switch {
	case err == nil:
	case errors.Is(err, passkey.ErrInvitationNotFound):
		h.writeError(w, r, http.StatusNotFound, ErrorCodeInvalidInvitation, "Invitation not found")
		return
	default:
		h.logger.Error(r.Context(), "invitation issue failed",
			logger.String("invitation_id", req.InvitationID), logger.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, ErrorCodeInternalError, "Error generating invitation")
		return
	}

	metrics.RecordInvitationEvent(metrics.EventIssued)
	admin := ""
	if identity := auth.GetIdentity(r.Context()); identity != nil {
		admin = identity.Subject
	}
	h.record(r, &audit.Event{
		Type:         audit.EventInvitationIssue,
		Outcome:      audit.OutcomeSuccess,
		Actor:        admin,
		InvitationID: req.InvitationID,
	})

	h.writeJSON(w, r, http.StatusOK, GenerateInvitationResponse{InvitationLink: invitations.Link(code)})
}

// Post handles GET /posts/{slug}. Gated posts redirect anonymous sessions
// to the sign-in page with a return path; readable posts are described as
// JSON for the content renderer.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, r)
		return
	}
	if h.posts == nil {
		h.writeError(w, r, http.StatusNotFound, ErrorCodeNotFound, "Post not found")
		return
	}

	slug := chi.URLParam(r, "slug")
	if slug == "" {
		slug = path.Base(r.URL.Path)
	}

	sess := h.loadSession(r)
	post, allowed, err := h.posts.Allow(r.Context(), sess, slug)
	switch {
	case errors.Is(err, passkey.ErrPostNotFound), errors.Is(err, passkey.ErrMissingInput):
		h.writeError(w, r, http.StatusNotFound, ErrorCodeNotFound, "Post not found")
		return
	case err != nil:
		h.logger.Error(r.Context(), "post lookup failed", logger.String("slug", slug), logger.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, ErrorCodeInternalError, "Error loading post")
		return
	}

	if !allowed {
		http.Redirect(w, r, "/?redirect=/posts/"+url.PathEscape(slug), http.StatusSeeOther)
		return
	}
	h.writeJSON(w, r, http.StatusOK, post)
}

// handleCeremonyError maps ceremony errors to HTTP responses and returns
// the metrics outcome. Verification failures are 400 for registration and
// 401 for authentication.
func (h *Handler) handleCeremonyError(w http.ResponseWriter, r *http.Request, ceremony string, err error) string {
	verifyStatus, failMessage := http.StatusBadRequest, "registration failed"
	if ceremony == metrics.CeremonyAuthentication {
		verifyStatus, failMessage = http.StatusUnauthorized, "authentication failed"
	}

	switch {
	case errors.Is(err, passkey.ErrMissingInput), errors.Is(err, passkey.ErrMalformedInput):
		h.writeError(w, r, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request")
		return metrics.OutcomeInvalidInput
	case errors.Is(err, passkey.ErrChallengeNotFound):
		h.writeError(w, r, http.StatusBadRequest, ErrorCodeChallengeExpired, "challenge not found or expired")
		return metrics.OutcomeChallenge
	case errors.Is(err, passkey.ErrInvitationNotFound):
		h.writeError(w, r, http.StatusBadRequest, ErrorCodeInvalidInvitation, "Invalid invitation code")
		return metrics.OutcomeInvitationInvalid
	case errors.Is(err, passkey.ErrInvitationUsed):
		h.writeError(w, r, http.StatusBadRequest, ErrorCodeInvitationUsed, "Invitation code has already been used")
		return metrics.OutcomeInvitationInvalid
	case errors.Is(err, passkey.ErrUnknownCredential):
		h.writeError(w, r, http.StatusUnauthorized, ErrorCodeUnknownCredential, "No credentials found")
		return metrics.OutcomeUnknownCredential
	case errors.Is(err, passkey.ErrPossibleCloning):
		h.writeError(w, r, verifyStatus, ErrorCodeVerificationFailed, "verification failed")
		return metrics.OutcomeCloneSuspected
	case errors.Is(err, passkey.ErrAttestationInvalid),
		errors.Is(err, passkey.ErrAssertionInvalid),
		errors.Is(err, passkey.ErrCredentialOwnedByOtherUser):
		h.writeError(w, r, verifyStatus, ErrorCodeVerificationFailed, "verification failed")
		return metrics.OutcomeVerification
	default:
		h.logger.Error(r.Context(), "ceremony failed",
			logger.String("ceremony", ceremony), logger.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, ErrorCodeInternalError, failMessage)
		return metrics.OutcomeError
	}
}

// denyAdmin writes the response for rejected admin requests.
func (h *Handler) denyAdmin(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Debug(r.Context(), "admin request rejected",
		logger.String("authenticator", h.admin.Name()),
		logger.Error(err))
	h.record(r, &audit.Event{Type: audit.EventAdminDenied, Outcome: audit.OutcomeDenied, Detail: err.Error()})
	h.writeError(w, r, http.StatusUnauthorized, ErrorCodeUnauthorized, "authentication required")
}

// record stamps event with request metadata and hands it to the audit
// recorder. Recorder failures are logged and never fail the request.
func (h *Handler) record(r *http.Request, event *audit.Event) {
	event.RequestID = correlation.FromContext(r.Context())
	event.SourceIP = remoteHost(r.RemoteAddr)
	if err := h.audit.Record(r.Context(), event); err != nil {
		h.logger.Error(r.Context(), "audit record failed",
			logger.String("event", string(event.Type)), logger.Error(err))
	}
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// adminOnly wraps next with the admin authenticator.
func (h *Handler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return auth.Middleware(h.admin, h.denyAdmin)(next).ServeHTTP
}

func (h *Handler) loadSession(r *http.Request) *passkey.Session {
	sess, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Debug(r.Context(), "session cookie discarded", logger.Error(err))
	}
	return sess
}

// saveSession writes sess to the response, replying 500 on failure.
func (h *Handler) saveSession(w http.ResponseWriter, r *http.Request, sess *passkey.Session) bool {
	if err := h.sessions.Save(w, sess); err != nil {
		h.logger.Error(r.Context(), "session encode failed", logger.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
		return false
	}
	return true
}

// persistSpentChallenge stores sess after a failed ceremony so the
// consumed challenge is gone from the cookie the browser keeps.
func (h *Handler) persistSpentChallenge(w http.ResponseWriter, r *http.Request, sess *passkey.Session) {
	if err := h.sessions.Save(w, sess); err != nil {
		h.logger.Error(r.Context(), "session encode failed", logger.Error(err))
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusMethodNotAllowed, ErrorCodeMethodNotAllowed, "Method not allowed")
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error(r.Context(), "failed to encode JSON response",
			logger.Error(err),
			logger.Int("status", status))
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, r, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// WriteError writes an error response in the handler's format. The server
// uses it for rate limiting and panics.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message})
}
