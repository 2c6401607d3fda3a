package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/api/handler"
	apimw "github.com/bookhub/book-notify/internal/api/middleware"
	"github.com/bookhub/book-notify/internal/event"
	"github.com/bookhub/book-notify/internal/queue"
	"github.com/bookhub/book-notify/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	books *service.BookService,
	subscribers *service.SubscriberService,
	transport *queue.MemoryTransport,
	bus *event.Bus,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	bh := handler.NewBookHandler(books, logger)
	sh := handler.NewSubscriberHandler(subscribers, logger)
	oh := handler.NewOpsHandler(transport, bus)
	hh := handler.NewHealthHandler()

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/books", bh.Create)
		r.Get("/books", bh.List)
		r.Get("/books/{id}", bh.GetByID)
		r.Delete("/books/{id}", bh.Delete)

		r.Post("/subscribers", sh.Create)
		r.Get("/subscribers", sh.List)
		r.Get("/subscribers/{id}", sh.GetByID)
		r.Post("/subscribers/{id}/confirm", sh.Confirm)
		r.Post("/subscribers/{id}/deactivate", sh.Deactivate)

		r.Get("/ops/queue", oh.QueueStats)
		r.Get("/ops/dead-letters", oh.DeadLetters)
	})

	return r
}
