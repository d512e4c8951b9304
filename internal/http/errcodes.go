package http

const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternal      = "INTERNAL"
	ErrCodeValidation    = "VALIDATION"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyMember = "ALREADY_MEMBER"
	ErrCodeUsernameTaken = "USERNAME_TAKEN"
)
