// Package scrape implements the fetch-extract pipeline that crawls
// competitor listing and review pages under adversarial network conditions.
package scrape

import (
	"time"

	"github.com/calderdata/shopcrawl/internal/dataset"
)

// FetchTask identifies one unit of crawl work: a (category, page) pair.
type FetchTask struct {
	Category string
	Page     int
	URL      string
	Attempt  int
}

// Product is one extracted listing record. Fields that cannot be resolved
// fall back to documented defaults instead of aborting extraction.
type Product struct {
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Rating    float64   `json:"rating"`
	ImageURL  string    `json:"image_url"`
	Category  string    `json:"category"`
	Source    string    `json:"source"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Review is one extracted review record from a rendered page.
type Review struct {
	ProductURL string    `json:"product_url"`
	Reviewer   string    `json:"reviewer_name"`
	Rating     float64   `json:"rating"`
	Text       string    `json:"review_text"`
	Date       string    `json:"review_date"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

// ProductsDataset converts products into the tabular form used by the
// writers and the loader.
func ProductsDataset(products []Product) *dataset.Dataset {
	ds := dataset.New("competitor_products",
		"name", "price", "rating", "image_url", "category", "source", "scraped_at")
	for _, p := range products {
		// column count is fixed above, Append cannot fail here
		_ = ds.Append(p.Name, p.Price, p.Rating, p.ImageURL, p.Category, p.Source, p.ScrapedAt)
	}
	return ds
}

// ReviewsDataset converts reviews into tabular form.
func ReviewsDataset(reviews []Review) *dataset.Dataset {
	ds := dataset.New("product_reviews",
		"product_url", "reviewer_name", "rating", "review_text", "review_date", "scraped_at")
	for _, r := range reviews {
		_ = ds.Append(r.ProductURL, r.Reviewer, r.Rating, r.Text, r.Date, r.ScrapedAt)
	}
	return ds
}
