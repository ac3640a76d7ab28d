// Package recipe is a client for the TheMealDB dessert catalogue.
package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/illmade-knight/go-recipecache/pkg/cache"
	"github.com/illmade-knight/go-recipecache/pkg/fetch"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the public TheMealDB v1 API.
const DefaultBaseURL = "https://www.themealdb.com/api/json/v1/1"

// Summary is one entry of the dessert list.
type Summary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
}

// Recipe is a single meal, reshaped for display.
type Recipe struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Category     string            `json:"category,omitempty"`
	Area         string            `json:"area,omitempty"`
	Instructions string            `json:"instructions"`
	Thumbnail    string            `json:"thumbnail,omitempty"`
	Ingredients  []string          `json:"ingredients"`
	Measurements []string          `json:"measurements"`
	Lines        []string          `json:"ingredient_lines"`
	Fields       map[string]string `json:"fields"`
}

// listedMeal is an entry of the filter.php response.
type listedMeal struct {
	StrMeal      string `json:"strMeal"`
	StrMealThumb string `json:"strMealThumb"`
	IDMeal       string `json:"idMeal"`
}

// Client queries TheMealDB through a byte fetcher.
type Client struct {
	baseURL string
	fetcher cache.Fetcher[string, []byte]
	logger  zerolog.Logger
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, fetcher cache.Fetcher[string, []byte], logger zerolog.Logger) (*Client, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher cannot be nil")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, baseURL)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		fetcher: fetcher,
		logger:  logger.With().Str("component", "RecipeClient").Logger(),
	}, nil
}

// ListDesserts returns every dessert sorted by name.
func (c *Client) ListDesserts(ctx context.Context) ([]Summary, error) {
	body, err := c.get(ctx, "filter.php", url.Values{"c": {"Dessert"}})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Meals []listedMeal `json:"meals"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error().Err(err).Msg("Failed to decode dessert list.")
		return nil, fmt.Errorf("%w: %v", ErrDecoding, err)
	}

	summaries := lo.Map(resp.Meals, func(m listedMeal, _ int) Summary {
		return Summary{ID: m.IDMeal, Name: m.StrMeal, Thumbnail: m.StrMealThumb}
	})
	slices.SortStableFunc(summaries, func(a, b Summary) int {
		return strings.Compare(a.Name, b.Name)
	})
	return summaries, nil
}

// Lookup returns the recipe with the given id.
func (c *Client) Lookup(ctx context.Context, id string) (*Recipe, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty recipe id", ErrInvalidURL)
	}
	body, err := c.get(ctx, "lookup.php", url.Values{"i": {id}})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed JSON for recipe %s", ErrDecoding, id)
	}

	// An unknown id yields "meals": null rather than a 404.
	meals := gjson.GetBytes(body, "meals").Array()
	if len(meals) == 0 {
		return nil, fmt.Errorf("%w: no meal with id %s", ErrInvalidData, id)
	}
	if len(meals) > 1 {
		return nil, fmt.Errorf("%w: %d meals share id %s", ErrInvalidData, len(meals), id)
	}
	meal := meals[0]
	if !meal.IsObject() {
		return nil, fmt.Errorf("%w: meal %s is not an object", ErrDecoding, id)
	}
	return Format(meal), nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	u := c.baseURL + "/" + endpoint + "?" + query.Encode()
	body, err := c.fetcher.Fetch(ctx, u)
	if err != nil {
		var statusErr *fetch.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: status %d from %s", ErrInvalidResponse, statusErr.StatusCode, endpoint)
		}
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Request failed.")
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	return body, nil
}
