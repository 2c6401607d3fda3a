package domain

import "time"

// Book is an inventory item. For notification purposes it is read-only:
// the fan-out path copies the fields it needs into a message snapshot and
// never holds a live reference.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	ISBN        string    `json:"isbn"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	IsAvailable bool      `json:"is_available"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateBookRequest is the inbound payload for adding a book.
type CreateBookRequest struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	ISBN        string  `json:"isbn"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	IsAvailable bool    `json:"is_available"`
	Stock       int     `json:"stock"`
}

func (r *CreateBookRequest) Validate() error {
	if r.Title == "" {
		return ErrInvalidTitle
	}
	if r.Author == "" {
		return ErrInvalidAuthor
	}
	if r.Category == "" {
		return ErrInvalidCategory
	}
	if r.Price < 0 {
		return ErrInvalidPrice
	}
	if r.Stock < 0 {
		return ErrInvalidStock
	}
	return nil
}
