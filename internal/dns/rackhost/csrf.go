package rackhost

import (
	"github.com/PuerkitoBio/goquery"
)

// ExtractCSRF returns the anti-forgery token of a console page. Form pages
// carry it in a hidden input, other templates only in the csrf-key meta tag.
// It returns "" when the page has neither.
func ExtractCSRF(doc *goquery.Document) string {
	if v, ok := doc.Find(`input[name="` + csrfField + `"]`).First().Attr("value"); ok && v != "" {
		return v
	}
	v, _ := doc.Find(`meta[name="csrf-key"]`).First().Attr("content")
	return v
}
