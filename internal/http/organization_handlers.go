package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloudyy74/user-directory/internal/models"
)

type OrganizationService interface {
	GetOrganization(context.Context, string) (*models.OrganizationResponse, error)
	ListMembers(context.Context, string) (*models.OrganizationMembersResponse, error)
	IsMember(context.Context, string, string) (*models.MembershipCheckResponse, error)
	MoveUserToOrganization(context.Context, *models.MoveToOrganizationRequest) (*models.UserWithProfile, error)
}

func (rtr *router) getOrganization(w http.ResponseWriter, r *http.Request) {
	resp, err := rtr.orgService.GetOrganization(r.Context(), r.URL.Query().Get("slug"))
	if err != nil {
		rtr.handleError(w, r, err)
		return
	}
	rtr.responseJSON(w, http.StatusOK, resp)
}

func (rtr *router) listOrganizationMembers(w http.ResponseWriter, r *http.Request) {
	resp, err := rtr.orgService.ListMembers(r.Context(), r.URL.Query().Get("organization_id"))
	if err != nil {
		rtr.handleError(w, r, err)
		return
	}
	rtr.responseJSON(w, http.StatusOK, resp)
}

func (rtr *router) isOrganizationMember(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := rtr.orgService.IsMember(r.Context(), q.Get("organization_id"), q.Get("user_id"))
	if err != nil {
		rtr.handleError(w, r, err)
		return
	}
	rtr.responseJSON(w, http.StatusOK, resp)
}

func (rtr *router) moveUserToOrganization(w http.ResponseWriter, r *http.Request) {
	var req models.MoveToOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rtr.handleError(w, r, newResponseError(ErrCodeBadRequest, "bad json request"))
		return
	}

	resp, err := rtr.orgService.MoveUserToOrganization(r.Context(), &req)
	if err != nil {
		rtr.handleError(w, r, err)
		return
	}
	rtr.responseJSON(w, http.StatusOK, resp)
}
