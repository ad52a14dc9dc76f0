// Package generate produces the synthetic internal datasets (customers,
// products, transactions) that seed the pipeline. Output is deterministic
// under a fixed seed.
package generate

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/calderdata/shopcrawl/internal/clock"
	"github.com/calderdata/shopcrawl/internal/dataset"
)

var (
	categories = []string{"Electronics", "Clothing", "Books", "Home & Garden", "Sports", "Beauty"}
	brands     = []string{"BrandA", "BrandB", "BrandC", "BrandD", "BrandE"}
	segments   = []string{"Premium", "Regular", "Budget"}

	segmentDiscount = map[string]float64{
		"Premium": 0.10,
		"Regular": 0.05,
		"Budget":  0.02,
	}
)

// Generator emits reproducible synthetic records.
type Generator struct {
	faker *gofakeit.Faker
	rng   *rand.Rand
	clock clock.Clock
}

// New builds a generator seeded for reproducibility.
func New(seed int64, clk clock.Clock) *Generator {
	return &Generator{
		faker: gofakeit.New(uint64(seed)),
		rng:   rand.New(rand.NewSource(seed)),
		clock: clk,
	}
}

// Customers generates n customer rows.
func (g *Generator) Customers(n int) *dataset.Dataset {
	ds := dataset.New("customers",
		"customer_id", "first_name", "last_name", "email", "phone", "city",
		"state", "zip_code", "country", "date_joined", "customer_segment", "lifetime_value")
	now := g.clock.Now()
	for i := 0; i < n; i++ {
		joined := now.AddDate(0, 0, -g.rng.Intn(730))
		_ = ds.Append(
			fmt.Sprintf("CUST_%06d", i+1),
			g.faker.FirstName(),
			g.faker.LastName(),
			g.faker.Email(),
			g.faker.Phone(),
			g.faker.City(),
			g.faker.StateAbr(),
			g.faker.Zip(),
			"USA",
			joined.Format("2006-01-02"),
			pick(g.rng, segments),
			round2(100+g.rng.Float64()*4900),
		)
	}
	return ds
}

// Products generates n product rows.
func (g *Generator) Products(n int) *dataset.Dataset {
	ds := dataset.New("products",
		"product_id", "name", "category", "brand", "price", "cost",
		"stock_quantity", "rating", "reviews_count", "date_added")
	now := g.clock.Now()
	for i := 0; i < n; i++ {
		category := pick(g.rng, categories)
		price := round2(10 + g.rng.Float64()*490)
		added := now.AddDate(0, 0, -g.rng.Intn(365))
		_ = ds.Append(
			fmt.Sprintf("PROD_%06d", i+1),
			g.faker.ProductName(),
			category,
			pick(g.rng, brands),
			price,
			round2(price*0.6),
			g.rng.Intn(1001),
			round1(1+g.rng.Float64()*4),
			g.rng.Intn(501),
			added.Format("2006-01-02"),
		)
	}
	return ds
}

// Transactions generates n transaction rows joining the given customer and
// product datasets by sampled row.
func (g *Generator) Transactions(customers, products *dataset.Dataset, n int) (*dataset.Dataset, error) {
	if customers.Len() == 0 || products.Len() == 0 {
		return nil, fmt.Errorf("transactions require non-empty customers and products")
	}
	custID := columnIndex(customers, "customer_id")
	custSegment := columnIndex(customers, "customer_segment")
	prodID := columnIndex(products, "product_id")
	prodPrice := columnIndex(products, "price")
	if custID < 0 || custSegment < 0 || prodID < 0 || prodPrice < 0 {
		return nil, fmt.Errorf("customers/products datasets missing expected columns")
	}

	ds := dataset.New("transactions",
		"transaction_id", "customer_id", "product_id", "quantity", "unit_price",
		"total_amount", "discount_amount", "tax_amount", "payment_method",
		"transaction_date", "order_status", "channel")
	payments := []string{"Credit Card", "Debit Card", "PayPal", "Bank Transfer"}
	statuses := []string{"Completed", "Pending", "Cancelled", "Refunded"}
	channels := []string{"Website", "Mobile App", "In-Store", "Phone"}
	now := g.clock.Now()

	for i := 0; i < n; i++ {
		customer := customers.Rows[g.rng.Intn(customers.Len())]
		product := products.Rows[g.rng.Intn(products.Len())]
		quantity := 1 + g.rng.Intn(5)

		price, _ := product[prodPrice].(float64)
		segment, _ := customer[custSegment].(string)
		discount := segmentDiscount[segment]

		unitPrice := round2(price * (1 - discount))
		total := round2(unitPrice * float64(quantity))
		txnTime := now.Add(-time.Duration(g.rng.Intn(180*24)) * time.Hour)

		if err := ds.Append(
			fmt.Sprintf("TXN_%08d", i+1),
			customer[custID],
			product[prodID],
			quantity,
			unitPrice,
			total,
			round2(price*float64(quantity)*discount),
			round2(total*0.08),
			pick(g.rng, payments),
			txnTime,
			pick(g.rng, statuses),
			pick(g.rng, channels),
		); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}

func columnIndex(ds *dataset.Dataset, name string) int {
	for i, col := range ds.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

func round2(f float64) float64 { return float64(int64(f*100+0.5)) / 100 }

func round1(f float64) float64 { return float64(int64(f*10+0.5)) / 10 }
