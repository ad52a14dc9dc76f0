package sources

import (
	"context"

	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/dataset"
)

type weatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
}

// FetchWeather retrieves current conditions for each city. A failed city is
// logged and skipped; the dataset holds whatever succeeded.
func (c *Client) FetchWeather(ctx context.Context, baseURL, apiKey string, cities []string) (*dataset.Dataset, error) {
	ds := dataset.New("weather_data", "city", "temperature", "humidity", "weather_condition", "timestamp")

	for _, city := range cities {
		if err := ctx.Err(); err != nil {
			return ds, err
		}
		var resp weatherResponse
		params := map[string]string{
			"q":     city,
			"appid": apiKey,
			"units": "metric",
		}
		if err := c.getJSON(ctx, baseURL, params, &resp); err != nil {
			c.logger.Error("weather fetch failed",
				zap.String("city", city),
				zap.Error(err),
			)
			continue
		}
		condition := ""
		if len(resp.Weather) > 0 {
			condition = resp.Weather[0].Main
		}
		_ = ds.Append(city, resp.Main.Temp, resp.Main.Humidity, condition, c.clock.Now())
	}
	return ds, nil
}
