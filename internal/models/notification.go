package models

// BookingNotification is the webhook payload sent when a booking is
// submitted. Field names follow the receiving automation's contract
// and must not change.
type BookingNotification struct {
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	DateTime  string `json:"dateTime"`
	TimeZone  string `json:"timeZone"`
	Cabin     string `json:"cabin"`
	CabinName string `json:"cabinName"`
}
