package domain

// UserID is the stable id of an authenticated user. It comes from the token
// subject and is empty for anonymous callers.
type UserID string
