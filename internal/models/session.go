package models

import "time"

// Slot is one selectable time within a day for a given cabin and date.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// WidgetSession holds the full state of one embedded booking widget:
// the visitor's current selection, contact fields and the transient
// loading/error flags. It is stored JSON-encoded with a TTL and owns
// no data beyond the current view.
type WidgetSession struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id,omitempty"`
	CabinID  string `json:"cabin_id"`
	Date     string `json:"date"` // 2006-01-02
	Time     string `json:"time"` // 15:04
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Slots    []Slot `json:"slots"`
	Loading  bool   `json:"loading"`
	Error    string `json:"error"`

	// LoadSeq tags availability loads so a response for a superseded
	// selection can be recognized and discarded.
	LoadSeq uint64 `json:"load_seq"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate freely without
// sharing the slot slice.
func (s *WidgetSession) Clone() *WidgetSession {
	out := *s
	if s.Slots != nil {
		out.Slots = make([]Slot, len(s.Slots))
		copy(out.Slots, s.Slots)
	}
	return &out
}

// SlotByTime returns the loaded slot with the given label, if any.
func (s *WidgetSession) SlotByTime(t string) (Slot, bool) {
	for _, slot := range s.Slots {
		if slot.Time == t {
			return slot, true
		}
	}
	return Slot{}, false
}

// Reset returns the session to its initial empty state with the given
// default date. UserID and LoadSeq survive the reset.
func (s *WidgetSession) Reset(date string) {
	s.CabinID = ""
	s.Date = date
	s.Time = ""
	s.FullName = ""
	s.Email = ""
	s.Slots = nil
	s.Loading = false
	s.Error = ""
}
