package models

// User identifies the owner of agents and LLM calls.
// Authorization is limited to per-user ownership checks.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Enabled bool   `json:"enabled"`
}

// SingleUserID is the id of the implicit user in single-user mode.
const SingleUserID = "single"

// SingleUser returns the implicit user used when AUTH=single_user.
func SingleUser() User {
	return User{ID: SingleUserID, Name: "local", Enabled: true}
}
