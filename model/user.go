package model

// Credentials carry the login information supplied by a front end.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"` // Never serialized or logged
}

// UserInfo describes the authenticated account returned by a successful login.
type UserInfo struct {
	Username    string `json:"username"`
	CountryCode string `json:"countryCode,omitempty"`
}
