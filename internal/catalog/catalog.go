package catalog

import (
	"fmt"
	"os"
	"sort"

	"namelis/internal/config"
	"namelis/internal/models"

	"gopkg.in/yaml.v2"
)

// Catalog is the static, read-only set of bookable cabins, loaded once
// at startup. Cabins without their own opening hours inherit the
// availability defaults.
type Catalog struct {
	cabins []models.Cabin
	byID   map[string]models.Cabin
}

func New(cabins []models.Cabin, defaults config.AvailabilityConfig) (*Catalog, error) {
	if err := config.ValidateCabins(cabins); err != nil {
		return nil, fmt.Errorf("invalid cabin catalog: %w", err)
	}

	open := defaults.Open
	if open == "" {
		open = models.DefaultOpen
	}
	closeAt := defaults.Close
	if closeAt == "" {
		closeAt = models.DefaultClose
	}
	slotMinutes := defaults.SlotMinutes
	if slotMinutes == 0 {
		slotMinutes = models.DefaultSlotMinutes
	}

	normalized := make([]models.Cabin, len(cabins))
	copy(normalized, cabins)
	for i := range normalized {
		if normalized[i].Open == "" {
			normalized[i].Open = open
		}
		if normalized[i].Close == "" {
			normalized[i].Close = closeAt
		}
		if normalized[i].SlotMinutes == 0 {
			normalized[i].SlotMinutes = slotMinutes
		}
	}

	sort.Slice(normalized, func(i, j int) bool {
		if normalized[i].SortOrder == normalized[j].SortOrder {
			return normalized[i].ID < normalized[j].ID
		}
		return normalized[i].SortOrder < normalized[j].SortOrder
	})

	byID := make(map[string]models.Cabin, len(normalized))
	for _, cabin := range normalized {
		byID[cabin.ID] = cabin
	}

	return &Catalog{cabins: normalized, byID: byID}, nil
}

// LoadFile reads a cabins YAML file of the form:
//
//	cabins:
//	  - id: sauna-a
//	    name: "Sauna A"
func LoadFile(path string) ([]models.Cabin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cabins file: %w", err)
	}

	var parsed struct {
		Cabins []models.Cabin `yaml:"cabins"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse cabins file: %w", err)
	}

	return parsed.Cabins, nil
}

// All returns the cabins in display order.
func (c *Catalog) All() []models.Cabin {
	out := make([]models.Cabin, len(c.cabins))
	copy(out, c.cabins)
	return out
}

// Get looks a cabin up by id.
func (c *Catalog) Get(id string) (models.Cabin, bool) {
	cabin, ok := c.byID[id]
	return cabin, ok
}

func (c *Catalog) Len() int {
	return len(c.cabins)
}
