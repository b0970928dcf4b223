package server

import (
	"log/slog"
	"net/http"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	tgmiddleware "github.com/tenantgate/tenantgate/cmd/tenantgate/internal/middleware"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/services/iam"
)

// ClearedMessage is the confirmation returned by clear-context.
const ClearedMessage = "Context cleared"

// HandleRefreshWithContext validates and persists the caller's requested
// tenant and impersonation target. It acts for the authenticated identity
// even when an impersonation header is present.
func HandleRefreshWithContext(svc iam.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := auth.GetAuthState(r.Context())
		if !ok {
			tgmiddleware.WriteError(w, r, logger, auth.Unauthenticated("authentication required", nil))
			return
		}

		var body RefreshContextRequest
		if err := refreshContextValidator.Decode(r.Body, &body); err != nil {
			logger.DebugContext(r.Context(), "rejected refresh-with-context body", "error", err.Error())
			writeBadRequest(w, "invalid request body: "+err.Error())
			return
		}

		req := iam.RefreshRequest{}
		if body.TenantID != nil {
			req.TenantID = *body.TenantID
		}
		if body.ImpersonatedUserID != nil {
			req.ImpersonatedUserID = *body.ImpersonatedUserID
		}

		result, err := svc.RefreshContext(r.Context(), state.Current(), req)
		if err != nil {
			tgmiddleware.WriteError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, RefreshContextResponse{
			Updated: result.Updated,
			Message: result.Message,
			Context: ContextResponse{
				TenantID:           result.TenantID,
				ImpersonatedUserID: result.ImpersonatedUserID,
			},
		})
	}
}

// HandleClearContext empties the caller's persisted claims.
func HandleClearContext(svc iam.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := auth.GetAuthState(r.Context())
		if !ok {
			tgmiddleware.WriteError(w, r, logger, auth.Unauthenticated("authentication required", nil))
			return
		}
		if _, err := svc.ClearContext(r.Context(), state.Current()); err != nil {
			tgmiddleware.WriteError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: ClearedMessage})
	}
}

// HandleWhoAmI reports the authenticated and effective identities along
// with the caller's persisted claims.
func HandleWhoAmI(svc iam.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := auth.GetAuthState(r.Context())
		if !ok {
			tgmiddleware.WriteError(w, r, logger, auth.Unauthenticated("authentication required", nil))
			return
		}

		claims, err := svc.GetClaims(r.Context(), state.Current().ID)
		if err != nil {
			tgmiddleware.WriteError(w, r, logger, err)
			return
		}

		resp := WhoamiResponse{
			User:          identityResponse(state.Current()),
			Impersonating: state.IsImpersonating(),
			Claims:        claims,
		}
		if state.IsImpersonating() {
			effective := identityResponse(state.Effective())
			resp.EffectiveUser = &effective
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
