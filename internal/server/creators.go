package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/influo/discovery/internal/discovery"
	"github.com/influo/discovery/models"
	"github.com/influo/discovery/repository"
)

// Searcher is the slice of the discovery engine the HTTP layer needs.
type Searcher interface {
	Search(ctx context.Context, req discovery.SearchRequest) (*models.SearchResponse, error)
	Creator(ctx context.Context, id string) (*models.CreatorProfile, error)
}

type CreatorsHandler struct {
	Engine   Searcher
	Trending repository.Trending
	Logger   *log.Logger
}

func (h *CreatorsHandler) Register(g *echo.Group) {
	g.GET("/search", h.search)
	g.GET("/trending", h.trending)
	g.GET("/:id", h.get)
}

func (h *CreatorsHandler) search(c echo.Context) error {
	req := discovery.SearchRequest{
		Term:             c.QueryParam("term"),
		Tags:             splitCSV(c.QueryParam("tags")),
		Name:             c.QueryParam("name"),
		Location:         c.QueryParam("location"),
		Gender:           c.QueryParam("gender"),
		AgeRange:         c.QueryParam("ageRange"),
		AudienceLocation: c.QueryParam("audienceLocation"),
		Platforms:        splitCSV(c.QueryParam("platforms")),
		ContentTypes:     splitCSV(c.QueryParam("contentTypes")),
		MinFollowers:     parseInt64(c.QueryParam("minFollowers")),
		MaxFollowers:     parseInt64(c.QueryParam("maxFollowers")),
		MinEngagement:    parseFloat(c.QueryParam("minEngagement")),
		MinAuthenticity:  parseFloat(c.QueryParam("minAuthenticity")),
		Cursor:           c.QueryParam("cursor"),
		Limit:            int(parseInt64(c.QueryParam("limit"))),
		Generative:       isTruthy(c.QueryParam("ai")),
	}

	// Best-effort; trending being down never affects the search.
	if h.Trending != nil {
		if err := h.Trending.RecordSearch(c.Request().Context(), req.Term, req.Tags); err != nil {
			h.Logger.Printf("trending record failed: %v", err)
		}
	}

	resp, err := h.Engine.Search(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CreatorsHandler) get(c echo.Context) error {
	p, err := h.Engine.Creator(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrCreatorNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CreatorsHandler) trending(c echo.Context) error {
	if h.Trending == nil {
		return c.JSON(http.StatusOK, []repository.SearchCount{})
	}
	top, err := h.Trending.TopSearches(c.Request().Context(), int(parseInt64(c.QueryParam("limit"))))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if top == nil {
		top = []repository.SearchCount{}
	}
	return c.JSON(http.StatusOK, top)
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
