package item

import (
	"strings"
	"time"
)

type Item struct {
	ID          string    `json:"id"`
	ItemName    string    `json:"itemName"`
	Quantity    int       `json:"quantity"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Input is the payload for both create and full update.
type Input struct {
	ItemName    string `json:"itemName" validate:"required,min=2"`
	Quantity    *int   `json:"quantity" validate:"required,min=1"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required,min=2"`
}

func (in Input) Normalize() Input {
	in.ItemName = strings.TrimSpace(in.ItemName)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	return in
}

// Qty returns the quantity or zero when it was not supplied.
func (in Input) Qty() int {
	if in.Quantity == nil {
		return 0
	}
	return *in.Quantity
}
