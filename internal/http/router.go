package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cloudyy74/user-directory/internal/metrics"
)

type router struct {
	userService UserService
	orgService  OrganizationService
	metrics     *metrics.Metrics
	log         *slog.Logger
}

func SetupRouter(
	mux *http.ServeMux,
	userService UserService,
	orgService OrganizationService,
	m *metrics.Metrics,
	log *slog.Logger,
) error {
	if mux == nil {
		return errors.New("mux cannot be nil")
	}
	if userService == nil {
		return errors.New("user service cannot be nil")
	}
	if orgService == nil {
		return errors.New("organization service cannot be nil")
	}
	if m == nil {
		return errors.New("metrics cannot be nil")
	}
	if log == nil {
		return errors.New("logger cannot be nil")
	}
	r := router{
		userService: userService,
		orgService:  orgService,
		metrics:     m,
		log:         log,
	}
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /ping", r.wrap(r.ping))
	mux.HandleFunc("GET /users/get", r.wrap(r.getUser))
	mux.HandleFunc("GET /users/getByEmail", r.wrap(r.getUserByEmail))
	mux.HandleFunc("GET /users/findByUsername", r.wrap(r.findUsersByUsername))
	mux.HandleFunc("GET /users/teams", r.wrap(r.getUserTeams))
	mux.HandleFunc("GET /users/organizations", r.wrap(r.getUserOrganizations))
	mux.HandleFunc("GET /users/profile", r.wrap(r.getUserProfile))
	mux.HandleFunc("GET /organizations/get", r.wrap(r.getOrganization))
	mux.HandleFunc("GET /organizations/members", r.wrap(r.listOrganizationMembers))
	mux.HandleFunc("GET /organizations/isMember", r.wrap(r.isOrganizationMember))
	mux.HandleFunc("POST /organizations/moveUser", r.wrap(r.moveUserToOrganization))
	return nil
}

func (rtr *router) responseJSON(w http.ResponseWriter, statusCode int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		rtr.log.Error("failed to encode response", slog.Any("error", err))
	}
}
