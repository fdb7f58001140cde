// Package models contains domain models for sommelier.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// WineType classifies a catalog wine.
type WineType string

const (
	WineTypeRed       WineType = "red"
	WineTypeWhite     WineType = "white"
	WineTypeRose      WineType = "rose"
	WineTypeSparkling WineType = "sparkling"
	WineTypeDessert   WineType = "dessert"
	WineTypeFortified WineType = "fortified"
)

// CatalogWine is a catalog record. It is owned by the catalog subsystem and
// read-only to the recommendation engine.
type CatalogWine struct {
	ID           int64
	Name         string
	Winery       string
	Region       string
	Country      string
	Grapes       string // free-text grape composition, e.g. "Cabernet Sauvignon, Merlot"
	Type         WineType
	Vintage      int
	Price        float64
	ImageURL     string
	TastingNotes string // AI-generated tasting profile text
	Pairings     string
	DrinkFrom    *time.Time
	DrinkTo      *time.Time
	StyleVector  StyleVector
	CreatedAt    time.Time
}

// StyleVector maps named style dimensions (body, acidity, tannin, oak,
// sweetness) to numeric intensities. A nil or empty vector is a valid state
// and contributes zero to any similarity computation.
type StyleVector map[string]float64

// IsEmpty reports whether the vector carries no dimensions.
func (v StyleVector) IsEmpty() bool { return len(v) == 0 }

// TopDimensions returns up to n dimension names ordered by absolute magnitude
// descending, with ties broken alphabetically for deterministic output.
func (v StyleVector) TopDimensions(n int) []string {
	if len(v) == 0 || n <= 0 {
		return nil
	}
	type dim struct {
		name string
		mag  float64
	}
	dims := make([]dim, 0, len(v))
	for name, val := range v {
		mag := val
		if mag < 0 {
			mag = -mag
		}
		dims = append(dims, dim{name: name, mag: mag})
	}
	// Insertion-style stable ordering: magnitude desc, name asc.
	for i := 1; i < len(dims); i++ {
		for j := i; j > 0; j-- {
			a, b := dims[j-1], dims[j]
			if b.mag > a.mag || (b.mag == a.mag && b.name < a.name) {
				dims[j-1], dims[j] = b, a
			} else {
				break
			}
		}
	}
	if n > len(dims) {
		n = len(dims)
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = dims[i].name
	}
	return names
}

// Scan implements sql.Scanner for StyleVector.
func (v *StyleVector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}

	var data []byte
	switch s := src.(type) {
	case string:
		data = []byte(s)
	case []byte:
		data = s
	default:
		return fmt.Errorf("StyleVector: unsupported type %T", src)
	}

	if len(data) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(data, v)
}

// Value implements driver.Valuer for StyleVector.
func (v StyleVector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// JSONStringArray is a custom type for handling JSON string arrays in text columns.
type JSONStringArray []string

// Scan implements sql.Scanner for JSONStringArray.
func (j *JSONStringArray) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("JSONStringArray: unsupported type %T", src)
	}

	if len(data) == 0 {
		*j = nil
		return nil
	}
	return json.Unmarshal(data, j)
}

// Value implements driver.Valuer for JSONStringArray.
func (j JSONStringArray) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
