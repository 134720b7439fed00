package models

// User is an account record. The coordinator references identities by
// phone; profile data is owned by the account endpoints, never by the
// messaging engine.
type User struct {
	Phone      string   `json:"phone"`
	Username   string   `json:"username"`
	Password   string   `json:"password,omitempty"`
	ProfilePic string   `json:"profile_pic,omitempty"`
	IsAdmin    bool     `json:"is_admin,omitempty"`
	Contacts   []string `json:"contacts,omitempty"`
}

// Public returns the externally visible view of a user.
func (u User) Public() PublicUser {
	return PublicUser{Phone: u.Phone, Username: u.Username, ProfilePic: u.ProfilePic}
}

// PublicUser is the credential-free projection returned by the API.
type PublicUser struct {
	Phone      string `json:"phone"`
	Username   string `json:"username"`
	ProfilePic string `json:"profile_pic,omitempty"`
}
