package sources

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/dataset"
)

// CatalogProduct is one product from the sample-catalog API.
type CatalogProduct struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      struct {
		Rate  float64 `json:"rate"`
		Count int     `json:"count"`
	} `json:"rating"`
}

// CatalogUser is one user from the sample-catalog API.
type CatalogUser struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     struct {
		Firstname string `json:"firstname"`
		Lastname  string `json:"lastname"`
	} `json:"name"`
	Address struct {
		City string `json:"city"`
	} `json:"address"`
}

// CatalogCart is one cart from the sample-catalog API.
type CatalogCart struct {
	ID       int    `json:"id"`
	UserID   int    `json:"userId"`
	Date     string `json:"date"`
	Products []struct {
		ProductID int `json:"productId"`
		Quantity  int `json:"quantity"`
	} `json:"products"`
}

// Catalog bundles the three sample-catalog collections.
type Catalog struct {
	Products []CatalogProduct
	Users    []CatalogUser
	Carts    []CatalogCart
}

// FetchCatalog retrieves /products, /users, and /carts from the catalog API.
func (c *Client) FetchCatalog(ctx context.Context, baseURL string) (Catalog, error) {
	var catalog Catalog

	c.logger.Info("fetching catalog products", zap.String("base_url", baseURL))
	if err := c.getJSON(ctx, baseURL+"/products", nil, &catalog.Products); err != nil {
		return Catalog{}, fmt.Errorf("catalog products: %w", err)
	}

	c.logger.Info("fetching catalog users", zap.String("base_url", baseURL))
	if err := c.getJSON(ctx, baseURL+"/users", nil, &catalog.Users); err != nil {
		return Catalog{}, fmt.Errorf("catalog users: %w", err)
	}

	c.logger.Info("fetching catalog carts", zap.String("base_url", baseURL))
	if err := c.getJSON(ctx, baseURL+"/carts", nil, &catalog.Carts); err != nil {
		return Catalog{}, fmt.Errorf("catalog carts: %w", err)
	}

	return catalog, nil
}

// ProductsDataset flattens catalog products into tabular form.
func (cat Catalog) ProductsDataset() *dataset.Dataset {
	ds := dataset.New("catalog_products",
		"id", "title", "price", "category", "rating_rate", "rating_count")
	for _, p := range cat.Products {
		_ = ds.Append(p.ID, p.Title, p.Price, p.Category, p.Rating.Rate, p.Rating.Count)
	}
	return ds
}

// UsersDataset flattens catalog users into tabular form.
func (cat Catalog) UsersDataset() *dataset.Dataset {
	ds := dataset.New("catalog_users", "id", "username", "email", "full_name", "city")
	for _, u := range cat.Users {
		fullName := strings.TrimSpace(u.Name.Firstname + " " + u.Name.Lastname)
		_ = ds.Append(u.ID, u.Username, u.Email, fullName, u.Address.City)
	}
	return ds
}

// CartsDataset flattens catalog carts into tabular form, one row per cart
// line item.
func (cat Catalog) CartsDataset() *dataset.Dataset {
	ds := dataset.New("catalog_carts", "cart_id", "user_id", "cart_date", "product_id", "quantity")
	for _, cart := range cat.Carts {
		for _, item := range cart.Products {
			_ = ds.Append(cart.ID, cart.UserID, cart.Date, item.ProductID, item.Quantity)
		}
	}
	return ds
}
