package sources

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/calderdata/shopcrawl/internal/dataset"
)

// SocialMention is one keyword hit from the social search endpoint.
type SocialMention struct {
	Platform  string    `json:"platform"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Score     int       `json:"score"`
	Comments  int       `json:"comments"`
	CreatedAt float64   `json:"created_utc"`
	Subreddit string    `json:"subreddit"`
	Author    string    `json:"author"`
	URL       string    `json:"url"`
	Keyword   string    `json:"keyword"`
	ScrapedAt time.Time `json:"scraped_at"`
}

type socialSearchResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
				Subreddit   string  `json:"subreddit"`
				Author      string  `json:"author"`
				Permalink   string  `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// SearchMentions queries the social endpoint for each keyword. A failed
// keyword is logged and skipped so one bad query never empties the dataset.
func (c *Client) SearchMentions(ctx context.Context, baseURL string, keywords []string) ([]SocialMention, error) {
	var mentions []SocialMention

	for _, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			return mentions, err
		}
		var resp socialSearchResponse
		params := map[string]string{
			"q":     keyword,
			"sort":  "new",
			"limit": "25",
		}
		if err := c.getJSON(ctx, baseURL, params, &resp); err != nil {
			c.logger.Error("social search failed",
				zap.String("keyword", keyword),
				zap.Error(err),
			)
			continue
		}
		for _, child := range resp.Data.Children {
			post := child.Data
			mentions = append(mentions, SocialMention{
				Platform:  "reddit",
				Title:     post.Title,
				Content:   post.Selftext,
				Score:     post.Score,
				Comments:  post.NumComments,
				CreatedAt: post.CreatedUTC,
				Subreddit: post.Subreddit,
				Author:    post.Author,
				URL:       "https://reddit.com" + post.Permalink,
				Keyword:   keyword,
				ScrapedAt: c.clock.Now(),
			})
		}
	}
	return mentions, nil
}

// MentionsDataset converts mentions into tabular form.
func MentionsDataset(mentions []SocialMention) *dataset.Dataset {
	ds := dataset.New("social_mentions",
		"platform", "title", "content", "score", "comments", "created_utc",
		"subreddit", "author", "url", "keyword", "scraped_at")
	for _, m := range mentions {
		_ = ds.Append(m.Platform, m.Title, m.Content, m.Score, m.Comments,
			m.CreatedAt, m.Subreddit, m.Author, m.URL, m.Keyword, m.ScrapedAt)
	}
	return ds
}
