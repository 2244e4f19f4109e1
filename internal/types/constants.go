package types

const (
	ContextUserKey      = "user"
	ContextRequestIDKey = "request_id"

	SessionCookieName = "session"
	RequestIDHeader   = "X-Request-ID"
)

// Identity is the authenticated caller, resolved once per request by the
// session middleware and passed explicitly into every handler operation.
type Identity struct {
	ID    uint       `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  GlobalRole `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type UserResponse struct {
	ID    uint       `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  GlobalRole `json:"role"`
}
