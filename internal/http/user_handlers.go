package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloudyy74/user-directory/internal/models"
)

type UserService interface {
	GetUser(context.Context, string) (*models.UserWithProfile, error)
	GetUserByEmail(context.Context, string) (*models.UserCredentials, error)
	FindUsersByUsername(context.Context, string, []string) (*models.UsersResponse, error)
	GetUserTeams(context.Context, string) (*models.UserTeams, error)
	GetUserOrganizations(context.Context, string) (*models.OrganizationsResponse, error)
	GetUserProfile(context.Context, string, string) (*models.UserWithProfile, error)
}

func (rtr *router) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := rtr.userService.GetUser(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		rtr.handleError(w, r, err)
		return
	}
	rtr.responseJSON(w, http.StatusOK, user)
}

func (rtr *router) getUserByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := rtr.userService.GetUserByEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		rtr.handleError(w, r, err)
		return
	}
	rtr.responseJSON(w, http.StatusOK, user)
}

func (rtr *router) findUsersByUsername(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var usernames []string
	for _, v := range q["usernames"] {
		usernames = append(usernames, strings.Split(v, ",")...)
	}
	resp, err := rtr.userService.FindUsersByUsername(r.Context(), q.Get("org_slug"), usernames)
	if err != nil {
		rtr.handleError(w, r, err)
		return
	}
	rtr.responseJSON(w, http.StatusOK, resp)
}

func (rtr *router) getUserTeams(w http.ResponseWriter, r *http.Request) {
	resp, err := rtr.userService.GetUserTeams(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		rtr.handleError(w, r, err)
		return
	}
	rtr.responseJSON(w, http.StatusOK, resp)
}

func (rtr *router) getUserOrganizations(w http.ResponseWriter, r *http.Request) {
	resp, err := rtr.userService.GetUserOrganizations(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		rtr.handleError(w, r, err)
		return
	}
	rtr.responseJSON(w, http.StatusOK, resp)
}

func (rtr *router) getUserProfile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := rtr.userService.GetUserProfile(r.Context(), q.Get("user_id"), q.Get("up_id"))
	if err != nil {
		rtr.handleError(w, r, err)
		return
	}
	rtr.responseJSON(w, http.StatusOK, resp)
}
