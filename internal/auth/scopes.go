package auth

const (
	ScopeOpenID       = "openid"
	ScopeProfile      = "profile"
	ScopeEmail        = "email"
	ScopeTrackerRead  = "tracker:read"
	ScopeTrackerWrite = "tracker:write"
)

// AllScopes is requested at login and offered by the API docs.
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeTrackerRead,
	ScopeTrackerWrite,
}
