package models

import "time"

type Site string

const (
	Amazon   Site = "amazon"
	Flipkart Site = "flipkart"
)

type Product struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	URL          string     `json:"url" db:"url"`
	Site         Site       `json:"site" db:"site"`
	CurrentPrice *float64   `json:"current_price" db:"current_price"`
	TargetPrice  float64    `json:"target_price" db:"target_price"`
	LowestPrice  *float64   `json:"lowest_price" db:"lowest_price"`
	HighestPrice *float64   `json:"highest_price" db:"highest_price"`
	LastChecked  *time.Time `json:"last_checked" db:"last_checked"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	UserID       int64      `json:"user_id" db:"user_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

type PriceSample struct {
	ID        int64     `json:"id" db:"id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Price     float64   `json:"price" db:"price"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// ExtractionResult is produced per scrape attempt and never persisted.
// A successful result may still lack a price.
type ExtractionResult struct {
	Success bool     `json:"success"`
	Name    string   `json:"name,omitempty"`
	Price   *float64 `json:"price,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Complete reports whether both fields the pipeline needs were found.
func (r ExtractionResult) Complete() bool {
	return r.Success && r.Name != "" && r.Price != nil
}

type AlertEvent struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	CurrentPrice float64 `json:"current_price"`
	TargetPrice  float64 `json:"target_price"`
	URL          string  `json:"url"`
}

type SiteCount struct {
	Site  Site  `json:"site" db:"site"`
	Count int64 `json:"count" db:"count"`
}

type Stats struct {
	TotalProducts  int64       `json:"total_products"`
	ActiveProducts int64       `json:"active_products"`
	PerSite        []SiteCount `json:"per_site"`
	TotalChecks    int64       `json:"total_price_checks"`
	RecentChecks   int64       `json:"recent_price_checks"`
}
