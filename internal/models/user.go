package models

// User is the authenticated caller the auth middleware attaches to each
// request. The ID comes from the bearer token's subject claim; the tier
// comes from a custom claim and defaults to free when absent.
type User struct {
	ID   string `json:"id"`
	Tier Tier   `json:"tier"`
}
