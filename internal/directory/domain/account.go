package domain

// Account is the directory service's authoritative user record. The gateway
// reads it and asks the directory to create it, never storing it locally.
type Account struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	FullName     string `json:"fullName,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// CreateRequest is the body of POST /users/from-auth. Password carries the
// bcrypt digest, never the plaintext.
type CreateRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}
