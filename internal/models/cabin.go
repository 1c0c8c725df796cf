package models

type Cabin struct {
	ID             string  `yaml:"id" json:"id"`
	Name           string  `yaml:"name" json:"name"`
	Description    string  `yaml:"description" json:"description"`
	PricePerMinute float64 `yaml:"price_per_minute" json:"price_per_minute"`
	Open           string  `yaml:"open" json:"open"`
	Close          string  `yaml:"close" json:"close"`
	SlotMinutes    int     `yaml:"slot_minutes" json:"slot_minutes"`
	SortOrder      int64   `yaml:"sort_order" json:"sort_order"`
}
