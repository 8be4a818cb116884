package model

// Identity is the signed-in user that scopes all task storage
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
