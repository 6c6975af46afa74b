package server

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/kdwils/feedreader/db"
	"github.com/kdwils/feedreader/models"
	"github.com/kdwils/feedreader/paging"
)

// Store is the slice of the database the HTTP layer reads and writes.
type Store interface {
	ListArticles(ctx context.Context, scope db.ArticleScope, req paging.Request) (*paging.Page[models.Article], error)
	GetArticle(ctx context.Context, id string) (models.Article, error)
	ToggleRead(ctx context.Context, id string) (models.Article, error)
	ToggleFavorite(ctx context.Context, id string) (models.Article, error)
	GetArticleCountPerTime(ctx context.Context, interval string) ([]models.ArticlesAggregatedByTime, error)
	ListFeeds(ctx context.Context, req paging.Request) (*paging.Page[models.Feed], error)
	CreateFeed(ctx context.Context, feed models.Feed) error
	GetFeed(ctx context.Context, id string) (models.Feed, error)
	DeleteFeed(ctx context.Context, id string) error
}

// Refresher triggers a synchronous refresh for the manual endpoint.
type Refresher interface {
	RefreshFeed(ctx context.Context, feed models.Feed) (int, error)
}

type ServerConfig struct {
	// The store backing all read and write endpoints
	Store Store

	// Refresher for the manual per-feed refresh endpoint
	Refresher Refresher

	// Broadcast channel to pass new articles to SSE clients
	Broadcaster *Broadcaster
}

// pageResponse is the JSON shape of one paginated window. Cursors are the
// encoded tokens, absent on an empty page.
type pageResponse[T any] struct {
	Items   []T    `json:"items"`
	HasNext bool   `json:"hasNext"`
	HasPrev bool   `json:"hasPrev"`
	Next    string `json:"next,omitempty"`
	Prev    string `json:"prev,omitempty"`
}

func pageJSON[T any](page *paging.Page[T]) pageResponse[T] {
	resp := pageResponse[T]{
		Items:   page.Items,
		HasNext: page.HasNext,
		HasPrev: page.HasPrev,
	}
	if resp.Items == nil {
		resp.Items = []T{}
	}
	if page.Next != nil {
		resp.Next = page.Next.Encode()
	}
	if page.Prev != nil {
		resp.Prev = page.Prev.Encode()
	}
	return resp
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, paging.ErrInvalidRequest), errors.Is(err, paging.ErrInvalidCursor):
		return fiber.StatusBadRequest
	case errors.Is(err, sql.ErrNoRows):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		log.WithFields(log.Fields{
			"route": c.Route().Path,
			"error": err,
		}).Error("Request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func pageRequest(c *fiber.Ctx) (paging.Request, error) {
	direction, err := paging.ParseDirection(c.Query("direction"))
	if err != nil {
		return paging.Request{}, err
	}

	limit := paging.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return paging.Request{}, fmt.Errorf("%w: bad limit: %s", paging.ErrInvalidRequest, raw)
		}
	}

	return paging.Request{
		Cursor:    c.Query("cursor"),
		Direction: direction,
		Limit:     limit,
	}, nil
}

// Returns a fiber.App instance to be used as the feedreader HTTP server
func Server(config *ServerConfig) *fiber.App {

	store := config.Store
	bc := config.Broadcaster

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())
	app.Use(cors.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"up": true})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/api/articles", func(c *fiber.Ctx) error {
		filter, err := models.ParseFilter(c.Query("filter"))
		if err != nil {
			return sendError(c, fmt.Errorf("%w: %v", paging.ErrInvalidRequest, err))
		}

		req, err := pageRequest(c)
		if err != nil {
			return sendError(c, err)
		}

		scope := db.ArticleScope{
			FeedID: c.Query("feed"),
			Filter: filter,
		}

		page, err := store.ListArticles(c.Context(), scope, req)
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(pageJSON(page))
	})

	app.Post("/api/articles/:id/read", func(c *fiber.Ctx) error {
		article, err := store.ToggleRead(c.Context(), c.Params("id"))
		if err != nil {
			return sendError(c, err)
		}
		return c.JSON(article)
	})

	app.Post("/api/articles/:id/favorite", func(c *fiber.Ctx) error {
		article, err := store.ToggleFavorite(c.Context(), c.Params("id"))
		if err != nil {
			return sendError(c, err)
		}
		return c.JSON(article)
	})

	app.Get("/api/articles/stats", func(c *fiber.Ctx) error {
		interval := c.Query("interval", "hour")
		if interval != "hour" && interval != "day" && interval != "week" {
			return sendError(c, fmt.Errorf("%w: bad interval: %s", paging.ErrInvalidRequest, interval))
		}

		counts, err := store.GetArticleCountPerTime(c.Context(), interval)
		if err != nil {
			return sendError(c, err)
		}
		if counts == nil {
			counts = []models.ArticlesAggregatedByTime{}
		}
		return c.JSON(counts)
	})

	app.Get("/api/feeds", func(c *fiber.Ctx) error {
		req, err := pageRequest(c)
		if err != nil {
			return sendError(c, err)
		}

		page, err := store.ListFeeds(c.Context(), req)
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(pageJSON(page))
	})

	app.Post("/api/feeds", func(c *fiber.Ctx) error {
		var body struct {
			Name    string `json:"name" form:"name"`
			SiteURL string `json:"siteUrl" form:"site_url"`
			FeedURL string `json:"feedUrl" form:"feed_url"`
		}
		if err := c.BodyParser(&body); err != nil {
			return sendError(c, fmt.Errorf("%w: %v", paging.ErrInvalidRequest, err))
		}
		if body.FeedURL == "" {
			return sendError(c, fmt.Errorf("%w: feed url is required", paging.ErrInvalidRequest))
		}

		feed := models.NewFeed(body.Name, body.SiteURL, body.FeedURL)
		if err := store.CreateFeed(c.Context(), feed); err != nil {
			return sendError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(feed)
	})

	app.Delete("/api/feeds/:id", func(c *fiber.Ctx) error {
		if err := store.DeleteFeed(c.Context(), c.Params("id")); err != nil {
			return sendError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Post("/api/feeds/:id/refresh", func(c *fiber.Ctx) error {
		feed, err := store.GetFeed(c.Context(), c.Params("id"))
		if err != nil {
			return sendError(c, err)
		}

		stored, err := config.Refresher.RefreshFeed(c.Context(), feed)
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(fiber.Map{"stored": stored})
	})

	app.Get("/api/articles/sse", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		events := make(chan models.CreateArticleEvent, 10) // Buffered channel
		keepAlive := time.NewTicker(5 * time.Second)

		defer keepAlive.Stop()

		bc.AddClient(key, events)

		cleanup := func() {
			log.Infof("Cleaning up SSE stream for client: %s", key)
			bc.RemoveClient(key)
		}

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cleanup()

			// Send initial event with client key
			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-keepAlive.C:
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case event, ok := <-events:
					if !ok {
						log.Warnf("Event channel closed for client %s", key)
						return
					}
					jsonArticle, err := json.Marshal(event.Article)
					if err != nil {
						log.Errorf("Error marshalling article for client %s: %v", key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: create-article\ndata: %s\n\n", jsonArticle); err != nil {
						log.Warnf("Failed to send create-article event to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush create-article event for client %s: %v", key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	// Registered after the static article routes so stats and sse are not
	// swallowed by the id parameter.
	app.Get("/api/articles/:id", func(c *fiber.Ctx) error {
		article, err := store.GetArticle(c.Context(), c.Params("id"))
		if err != nil {
			return sendError(c, err)
		}
		return c.JSON(article)
	})

	return app
}
