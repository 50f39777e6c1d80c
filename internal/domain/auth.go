package domain

// Claims is the part of the access token this service relies on. Tokens are
// issued by the identity service.
type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the caller holds the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}
