package model

import "time"

type User struct {
	ID        int       `db:"id"`
	Email     string    `db:"email"`
	Name      *string   `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
