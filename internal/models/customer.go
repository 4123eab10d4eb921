package models

import "time"

// Customer is identified by the exact (name, phone) pair. An empty phone is a
// distinct identity from any non-empty one.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
