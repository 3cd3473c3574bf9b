package user

// User is the identity produced by the mock login flow.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// GuestID owns the sessions of callers that never logged in.
const GuestID = "guest"
