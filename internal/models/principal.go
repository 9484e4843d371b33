package models

// Principal is the resolved identity a request acts as: either an
// authenticated user (UserID set) or a guest browser session
// (SessionID set, possibly empty for an anonymous caller).
type Principal struct {
	UserID    string
	SessionID string
}

// UserPrincipal returns a principal for an authenticated user.
func UserPrincipal(userID string) Principal {
	return Principal{UserID: userID}
}

// GuestPrincipal returns a principal for a guest session. The session
// id may be empty when the caller supplied no session token.
func GuestPrincipal(sessionID string) Principal {
	return Principal{SessionID: sessionID}
}

// IsUser reports whether the principal is an authenticated user.
func (p Principal) IsUser() bool {
	return p.UserID != ""
}

// IsGuest reports whether the principal is a guest session.
func (p Principal) IsGuest() bool {
	return !p.IsUser()
}
