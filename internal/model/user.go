package model

// User is the cached identity record of the logged-in account.
type User struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	DisplayName      string `json:"fullName,omitempty"`
	Email            string `json:"email"`
	ProfileImageRef  string `json:"profileImage,omitempty"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	EmailVerified    bool   `json:"isEmailVerified"`
}

// Valid reports whether the record identifies an account.
func (u *User) Valid() bool {
	return u != nil && u.ID != ""
}
