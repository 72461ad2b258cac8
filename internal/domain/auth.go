package domain

// Identity is the request-scoped, trusted caller. It is only built from a
// validated token plus a live user record and must not outlive the request.
type Identity struct {
	SubjectID string
	Email     string
	Role      Role
}

// AccessToken is the sign-in result handed to clients.
type AccessToken struct {
	AccessToken string `json:"access_token"`
}
