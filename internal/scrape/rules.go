package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/clock"
)

// Profile maps record fields to site-specific selectors. One structural
// template per site is assumed; the orchestrator selects the profile at
// construction time.
type Profile struct {
	Source string

	ProductContainer string
	ProductName      string
	ProductPrice     string
	ProductRating    string
	ProductImage     string

	ReviewContainer string
	ReviewerName    string
	ReviewRating    string
	ReviewText      string
	ReviewDate      string
}

// DefaultProfile matches the generic competitor-site template.
func DefaultProfile() Profile {
	return Profile{
		Source:           "competitor_site",
		ProductContainer: "div.product-item",
		ProductName:      "h3.product-name",
		ProductPrice:     "span.price",
		ProductRating:    "div.rating",
		ProductImage:     "img",
		ReviewContainer:  "div.review-item",
		ReviewerName:     ".reviewer-name",
		ReviewRating:     ".review-rating",
		ReviewText:       ".review-text",
		ReviewDate:       ".review-date",
	}
}

// Rules extracts typed records from document nodes using a site profile.
// Extraction never fails a crawl: unresolvable fields resolve to defaults
// (0 for numeric, empty string for text) and record-level failures are
// logged and skipped.
type Rules struct {
	profile Profile
	clock   clock.Clock
	logger  *zap.Logger
}

// NewRules builds extraction rules for the given site profile.
func NewRules(profile Profile, clk clock.Clock, logger *zap.Logger) *Rules {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rules{profile: profile, clock: clk, logger: logger}
}

// Products extracts every product node in doc. A node with no recognizable
// fields at all yields no record.
func (r *Rules) Products(doc *goquery.Document, category, pageURL string) []Product {
	var products []Product
	doc.Find(r.profile.ProductContainer).Each(func(_ int, node *goquery.Selection) {
		product, ok := r.extractProduct(node, category)
		if !ok {
			r.logger.Warn("skipping unextractable product node",
				zap.String("category", category),
				zap.Error(&ParseError{URL: pageURL, Selector: r.profile.ProductContainer}),
			)
			return
		}
		products = append(products, product)
	})
	return products
}

func (r *Rules) extractProduct(node *goquery.Selection, category string) (Product, bool) {
	name := node.Find(r.profile.ProductName)
	price := node.Find(r.profile.ProductPrice)
	rating := node.Find(r.profile.ProductRating)
	image := node.Find(r.profile.ProductImage)

	if name.Length() == 0 && price.Length() == 0 && rating.Length() == 0 && image.Length() == 0 {
		return Product{}, false
	}

	imageURL, _ := image.Attr("src")
	return Product{
		Name:      textOrDefault(name, "Unknown"),
		Price:     CleanPrice(price.Text()),
		Rating:    ExtractRating(rating),
		ImageURL:  imageURL,
		Category:  category,
		Source:    r.profile.Source,
		ScrapedAt: r.clock.Now(),
	}, true
}

// Reviews extracts every review node in doc, up to max records (0 = all).
func (r *Rules) Reviews(doc *goquery.Document, productURL string, max int) []Review {
	var reviews []Review
	doc.Find(r.profile.ReviewContainer).EachWithBreak(func(i int, node *goquery.Selection) bool {
		if max > 0 && i >= max {
			return false
		}
		reviews = append(reviews, Review{
			ProductURL: productURL,
			Reviewer:   textOrDefault(node.Find(r.profile.ReviewerName), "Anonymous"),
			Rating:     ratingFromText(node.Find(r.profile.ReviewRating).Text()),
			Text:       strings.TrimSpace(node.Find(r.profile.ReviewText).Text()),
			Date:       strings.TrimSpace(node.Find(r.profile.ReviewDate).Text()),
			ScrapedAt:  r.clock.Now(),
		})
		return true
	})
	return reviews
}

// CleanPrice strips currency symbols and separators, returning a
// non-negative price. Text with no digits resolves to 0.
func CleanPrice(text string) float64 {
	var b strings.Builder
	for _, ch := range text {
		if (ch >= '0' && ch <= '9') || ch == '.' {
			b.WriteRune(ch)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price < 0 {
		return 0
	}
	return price
}

var ratingNumber = regexp.MustCompile(`\d+\.?\d*`)

// ExtractRating resolves a rating through a fallback chain: an "X out of Y"
// phrase, then an "X/5" fraction, then a count of filled-star markers, then
// 0. The precedence mirrors the markup variants seen on target sites; it has
// not been re-validated against live markup.
func ExtractRating(sel *goquery.Selection) float64 {
	if sel == nil || sel.Length() == 0 {
		return 0
	}
	text := strings.TrimSpace(sel.Text())
	switch {
	case strings.Contains(text, "out of"):
		return clampRating(ratingFromText(strings.Fields(text)[0]))
	case strings.Contains(text, "/5"):
		return clampRating(ratingFromText(strings.SplitN(text, "/", 2)[0]))
	default:
		stars := sel.Find("span.star-filled").Length()
		return clampRating(float64(stars))
	}
}

func ratingFromText(text string) float64 {
	match := ratingNumber.FindString(text)
	if match == "" {
		return 0
	}
	rating, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return clampRating(rating)
}

func clampRating(rating float64) float64 {
	if rating < 0 {
		return 0
	}
	if rating > 5 {
		return 5
	}
	return rating
}

func textOrDefault(sel *goquery.Selection, fallback string) string {
	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return fallback
	}
	return text
}
