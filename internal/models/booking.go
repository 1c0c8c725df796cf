package models

import "time"

type Booking struct {
	ID        int64     `json:"id"`
	CabinID   string    `json:"cabin_id"`
	CabinName string    `json:"cabin_name"`
	Date      string    `json:"date"` // 2006-01-02
	Time      string    `json:"time"` // 15:04
	UserID    string    `json:"user_id"`
	UserEmail string    `json:"user_email"`
	FullName  string    `json:"full_name"`
	Status    string    `json:"status"` // confirmed, cancelled, completed
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// BookingFilter narrows ListBookings results. Zero values mean "no filter".
type BookingFilter struct {
	From    string
	To      string
	CabinID string
	Status  string
}
