package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"price_tracker/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// NameStrategy reads a product name from one known page template.
type NameStrategy func(doc *goquery.Document) (string, bool)

// PriceStrategy reads a price from one known page template.
type PriceStrategy func(doc *goquery.Document) (float64, bool)

// Extractor tries its strategies in order; the first one that yields a value
// wins.
type Extractor struct {
	Name  []NameStrategy
	Price []PriceStrategy
}

func (e Extractor) Extract(document []byte) models.ExtractionResult {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return failure(fmt.Errorf("%w: parse document: %w", ErrExtraction, err))
	}

	res := models.ExtractionResult{Success: true}

	for _, s := range e.Name {
		if name, ok := s(doc); ok {
			res.Name = name
			break
		}
	}

	for _, s := range e.Price {
		if price, ok := s(doc); ok {
			res.Price = &price
			break
		}
	}

	return res
}

// SelectText returns the collapsed text of the first element matching sel.
func SelectText(sel string) NameStrategy {
	return func(doc *goquery.Document) (string, bool) {
		text := collapse(doc.Find(sel).First().Text())
		return text, text != ""
	}
}

// SelectPrice parses the text of the first element matching sel. Elements
// without digits do not count as a match.
func SelectPrice(sel string) PriceStrategy {
	return func(doc *goquery.Document) (float64, bool) {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			return 0, false
		}

		d, ok := ParsePrice(el.Text())
		if !ok {
			return 0, false
		}

		f, _ := d.Float64()
		return f, true
	}
}

// SplitPrice handles templates that render the whole and fractional parts of
// a price in separate elements under a common container.
func SplitPrice(containers []string, wholeSel, fractionSel string) PriceStrategy {
	return func(doc *goquery.Document) (float64, bool) {
		for _, c := range containers {
			container := doc.Find(c).First()
			if container.Length() == 0 {
				continue
			}

			whole := container.Find(wholeSel).First()
			if whole.Length() == 0 {
				return 0, false
			}

			fraction := strings.TrimSpace(container.Find(fractionSel).First().Text())

			d, ok := JoinPrice(whole.Text(), fraction)
			if !ok {
				return 0, false
			}

			f, _ := d.Float64()
			return f, true
		}

		return 0, false
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func failure(err error) models.ExtractionResult {
	return models.ExtractionResult{Success: false, Error: err.Error()}
}
