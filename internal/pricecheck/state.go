package pricecheck

import (
	"time"

	"price_tracker/internal/models"
)

// ApplyPrice records a successful check of p at now. Bounds only ever widen,
// so applying the same price twice leaves them as after the first call. The
// alert predicate is price <= target and ignores the direction of change.
func ApplyPrice(p models.Product, price float64, now time.Time) (models.Product, bool) {
	p.CurrentPrice = &price
	p.LastChecked = &now

	if p.LowestPrice == nil || price < *p.LowestPrice {
		low := price
		p.LowestPrice = &low
	}

	if p.HighestPrice == nil || price > *p.HighestPrice {
		high := price
		p.HighestPrice = &high
	}

	return p, price <= p.TargetPrice
}

// Alert builds the event for a product whose current price is set.
func Alert(p models.Product) models.AlertEvent {
	var current float64
	if p.CurrentPrice != nil {
		current = *p.CurrentPrice
	}

	return models.AlertEvent{
		ProductID:    p.ID,
		ProductName:  p.Name,
		CurrentPrice: current,
		TargetPrice:  p.TargetPrice,
		URL:          p.URL,
	}
}
