package models

// User identifies the caller that created or cancels a calculation.
type User struct {
	ID    int
	Login string
}
