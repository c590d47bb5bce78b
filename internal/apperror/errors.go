package apperror

var (
	ErrNotAuthenticated = New(KindUnauthorized, "not_authenticated", "not logged in")
	ErrForbidden        = New(KindUnauthorized, "forbidden", "insufficient permissions")
	ErrNotAuthor        = New(KindUnauthorized, "not_author", "only the author of the request may do this")
	ErrNotSupervisor    = New(KindUnauthorized, "not_supervisor", "you are not the supervisor of this request")

	ErrRequestNotFound = New(KindNotFound, "request_not_found", "overtime request not found")
	ErrUserNotFound    = New(KindNotFound, "user_not_found", "user not found")

	ErrInvalidTransition = New(KindInvalidTransition, "invalid_transition", "this action is not allowed in the current status")
	ErrAccounted         = New(KindInvalidTransition, "accounted", "the request is accounted and can no longer be changed")
	ErrQuotaExceeded     = New(KindInvalidTransition, "quota_exceeded", "monthly overtime quota exceeded")

	ErrConflict = New(KindConflict, "conflict", "the request was changed by someone else, reload and try again")
)
