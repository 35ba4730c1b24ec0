package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shasan419/qkart/internal/auth"
	"github.com/shasan419/qkart/internal/catalog"
)

type RouterDeps struct {
	Carts          CartAPI
	Users          UserAPI
	UserLoader     UserLoader
	Catalog        catalog.Lookup
	Tokens         *auth.TokenManager
	RequestTimeout time.Duration
}

func NewRouter(deps RouterDeps) chi.Router {
	authHandler := NewAuthHandler(deps.Users, deps.RequestTimeout)
	userHandler := NewUserHandler(deps.Users, deps.RequestTimeout)
	productHandler := NewProductHandler(deps.Catalog, deps.RequestTimeout)
	cartHandler := NewCartHandler(deps.Carts, deps.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(deps.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Get("/products", productHandler.ListProducts)
		r.Get("/products/{product_id}", productHandler.GetProduct)

		// Everything below requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(deps.Tokens, deps.UserLoader))

			r.Get("/users/me", userHandler.GetMe)
			r.Put("/users/address", userHandler.SetAddress)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
				r.Put("/checkout", cartHandler.Checkout)
			})
		})
	})

	return r
}
