package model

import "time"

// Review mirrors the `reviews` table.  Rating is 1..5.
type Review struct {
	ID        uint64    `json:"id"`
	ProductID uint64    `json:"productId"`
	UserID    uint64    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
