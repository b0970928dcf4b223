package server

import (
	"encoding/json"
	"net/http"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
)

// RefreshContextRequest is the body of POST /auth/refresh-with-context.
type RefreshContextRequest struct {
	TenantID           *string `json:"tenantId"`
	ImpersonatedUserID *string `json:"impersonatedUserId"`
}

// ContextResponse echoes the persisted context values.
type ContextResponse struct {
	TenantID           *string `json:"tenantId,omitempty"`
	ImpersonatedUserID *string `json:"impersonatedUserId,omitempty"`
}

// RefreshContextResponse is returned on a successful refresh.
type RefreshContextResponse struct {
	Updated bool            `json:"updated"`
	Message string          `json:"message"`
	Context ContextResponse `json:"context"`
}

// MessageResponse carries a single confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// IdentityResponse describes an identity in whoami output.
type IdentityResponse struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Role     string  `json:"role,omitempty"`
	TenantID *string `json:"tenantId,omitempty"`
	Status   string  `json:"status"`
}

// WhoamiResponse is returned by GET /api/auth/whoami.
type WhoamiResponse struct {
	User          IdentityResponse       `json:"user"`
	EffectiveUser *IdentityResponse      `json:"effectiveUser,omitempty"`
	Impersonating bool                   `json:"impersonating"`
	Claims        *models.IdentityClaims `json:"claims"`
}

func identityResponse(i *models.Identity) IdentityResponse {
	return IdentityResponse{
		ID:       i.ID,
		Email:    i.Email,
		Name:     i.DisplayName(),
		Role:     i.RoleName(),
		TenantID: i.TenantID,
		Status:   string(i.Status),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorBody mirrors middleware.ErrorResponse for request validation failures.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: message})
}
