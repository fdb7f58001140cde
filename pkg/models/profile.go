package models

import "time"

// CellarBottle is a bottle in a user's inventory, possibly rated and priced.
// Read-only to the recommendation engine; owned by the inventory subsystem.
type CellarBottle struct {
	ID        int64
	UserID    int64
	WineID    int64 // catalog wine id; 0 when the bottle could not be resolved
	Rating    *int  // 1-5, nil when unrated
	PricePaid *float64
	CreatedAt time.Time
}

// Rated reports whether the bottle carries a rating.
func (b *CellarBottle) Rated() bool { return b.Rating != nil }

// TasteProfile is a learned per-user taste summary. A fully-empty profile
// (nil price band, empty centroid, empty lists) is a valid state meaning
// "no preference"; downstream scoring treats every empty field as neutral.
type TasteProfile struct {
	UserID       int64
	PriceMin     *float64
	PriceMax     *float64
	Style        StyleVector
	TopVarietals JSONStringArray
	TopRegions   JSONStringArray
	UpdatedAt    time.Time
}

// HasPriceBand reports whether both band edges are present.
func (p *TasteProfile) HasPriceBand() bool {
	return p != nil && p.PriceMin != nil && p.PriceMax != nil
}

// InPriceBand reports whether price falls inside the band (inclusive).
// Always false when the profile has no band.
func (p *TasteProfile) InPriceBand(price float64) bool {
	if !p.HasPriceBand() {
		return false
	}
	return price >= *p.PriceMin && price <= *p.PriceMax
}

// IsEmpty reports whether the profile carries no signal at all.
func (p *TasteProfile) IsEmpty() bool {
	return p == nil || (!p.HasPriceBand() && p.Style.IsEmpty() &&
		len(p.TopVarietals) == 0 && len(p.TopRegions) == 0)
}
