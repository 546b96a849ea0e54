package model

// User is an account record. Only admins and approved reporters sign in.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Fullname  string `json:"fullname"`
	Role      string `json:"role"` // admin, reporter
	Approved  bool   `json:"approved"`
	CreatedAt string `json:"createdAt,omitempty"`
}
