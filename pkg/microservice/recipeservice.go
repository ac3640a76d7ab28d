package microservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/illmade-knight/go-recipecache/pkg/imagecache"
	"github.com/illmade-knight/go-recipecache/pkg/recipe"
	"github.com/rs/zerolog"
)

// RecipeSource lists and looks up recipes.
type RecipeSource interface {
	ListDesserts(ctx context.Context) ([]recipe.Summary, error)
	Lookup(ctx context.Context, id string) (*recipe.Recipe, error)
}

// ImageSource serves cached images by URL.
type ImageSource interface {
	Load(ctx context.Context, key string) (*imagecache.Image, error)
	Stats() imagecache.Stats
}

var _ Service = (*RecipeService)(nil)

// imageSchemes are the URL schemes accepted by the images endpoint.
var imageSchemes = map[string]bool{"http": true, "https": true, "gs": true}

// RecipeService exposes the dessert list, recipe details and recipe images over HTTP.
type RecipeService struct {
	*BaseServer
	recipes RecipeSource
	images  ImageSource
	logger  zerolog.Logger
}

// NewRecipeService creates a RecipeService listening on httpPort.
func NewRecipeService(httpPort string, recipes RecipeSource, images ImageSource, logger zerolog.Logger) (*RecipeService, error) {
	if recipes == nil || images == nil {
		return nil, errors.New("recipe source and image source cannot be nil")
	}
	s := &RecipeService{
		BaseServer: NewBaseServer(logger, httpPort),
		recipes:    recipes,
		images:     images,
		logger:     logger.With().Str("component", "RecipeService").Logger(),
	}

	mux := s.Mux()
	mux.HandleFunc("GET /recipes", s.handleListRecipes)
	mux.HandleFunc("GET /recipes/{id}", s.handleGetRecipe)
	mux.HandleFunc("GET /images", s.handleGetImage)
	mux.HandleFunc("GET /stats", s.handleStats)
	return s, nil
}

// Start starts the HTTP server.
func (s *RecipeService) Start(_ context.Context) error {
	return s.BaseServer.Start()
}

func (s *RecipeService) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	desserts, err := s.recipes.ListDesserts(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list desserts.")
		http.Error(w, "failed to list recipes", recipeErrorStatus(err))
		return
	}
	s.writeJSON(w, desserts)
}

func (s *RecipeService) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.recipes.Lookup(r.Context(), id)
	if err != nil {
		s.logger.Warn().Err(err).Str("recipe_id", id).Msg("Failed to look up recipe.")
		http.Error(w, "failed to look up recipe", recipeErrorStatus(err))
		return
	}
	s.writeJSON(w, rec)
}

// handleGetImage validates the url parameter; the cache itself does not.
func (s *RecipeService) handleGetImage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	u, err := url.Parse(raw)
	if raw == "" || err != nil || !imageSchemes[u.Scheme] || u.Host == "" {
		http.Error(w, "url must be an absolute http, https or gs URL", http.StatusBadRequest)
		return
	}
	key := u.String()

	img, err := s.images.Load(r.Context(), key)
	if err != nil {
		if errors.Is(err, imagecache.ErrUnavailable) {
			s.logger.Debug().Err(err).Str("key", key).Msg("Image unavailable.")
			http.Error(w, "image unavailable", http.StatusBadGateway)
			return
		}
		// The client went away or timed out while waiting.
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
		return
	}

	w.Header().Set("Content-Type", img.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func (s *RecipeService) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.images.Stats())
}

func (s *RecipeService) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response.")
	}
}

func recipeErrorStatus(err error) int {
	switch {
	case errors.Is(err, recipe.ErrInvalidData):
		return http.StatusNotFound
	case errors.Is(err, recipe.ErrInvalidURL):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
