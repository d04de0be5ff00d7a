package domain

import "github.com/google/uuid"

// Category groups products; Slug is derived from Name
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

type Color struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	HexCode string    `json:"hex_code"`
}

type Size struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
