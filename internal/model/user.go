package model

import "time"

// User represents a row of the users table. Age, IsActive and the
// timestamps are nullable in the store, so they are pointers here and
// serialize as null when absent.
type User struct {
	ID        int        `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Age       *int       `json:"age"`
	IsActive  *bool      `json:"is_active"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// UserCreate is the payload for creating a user. The store assigns the id
// and the service forces is_active to true.
type UserCreate struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Age   *int   `json:"age"`
}

// UserUpdate is a partial update. Name and email change only when supplied;
// age and is_active are always written from the patch, so omitting them
// clears the columns.
type UserUpdate struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Age      *int    `json:"age"`
	IsActive *bool   `json:"is_active"`
}
