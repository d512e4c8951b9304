package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudyy74/user-directory/internal/models"
	"github.com/cloudyy74/user-directory/internal/service"
)

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (re ResponseError) Error() string {
	return re.Message
}

func newResponseError(code string, msg string) ResponseError {
	return ResponseError{
		Code:    code,
		Message: msg,
	}
}

func newInternalError(msg string, args ...any) ResponseError {
	return newResponseError(ErrCodeInternal, fmt.Sprintf(msg, args...))
}

func (rtr *router) handleError(w http.ResponseWriter, r *http.Request, err error) {
	respErr := rtr.mapError(err)
	status := statusForCode(respErr.Code)
	if status == http.StatusInternalServerError {
		rtr.log.Error("request failed",
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&models.ErrorResponse{
		Error: models.Error{
			Code:    respErr.Code,
			Message: respErr.Message,
		},
	})
}

func (rtr *router) mapError(err error) ResponseError {
	var respErr ResponseError
	if errors.As(err, &respErr) {
		return respErr
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		return newResponseError(ErrCodeValidation, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		return newResponseError(ErrCodeNotFound, "user not found")
	case errors.Is(err, service.ErrOrganizationNotFound):
		return newResponseError(ErrCodeNotFound, "organization not found")
	case errors.Is(err, service.ErrAlreadyMember):
		return newResponseError(ErrCodeAlreadyMember, "user already belongs to organization")
	case errors.Is(err, service.ErrUsernameTaken):
		return newResponseError(ErrCodeUsernameTaken, "username already taken in organization")
	default:
		return newInternalError("internal error")
	}
}

func statusForCode(code string) int {
	switch code {
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyMember, ErrCodeUsernameTaken:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
