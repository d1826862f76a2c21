package api

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"gearshop/pkg/metrics"
	"gearshop/pkg/middleware"
)

// NewServer wires middleware and routes into a fresh echo instance.
func NewServer(h *Handlers, reg *metrics.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(reg))

	Register(e, h, reg)
	return e
}

// Register mounts every route on e.
func Register(e *echo.Echo, h *Handlers, reg *metrics.Registry) {
	e.GET("/healthz", h.Health)
	if reg != nil {
		e.GET("/metrics", reg.TextHandler)
		e.GET("/metrics.json", reg.JSONHandler)
	}

	v1 := e.Group("/api/v1")
	v1.GET("/products", h.ListProducts)
	v1.GET("/products/:id", h.GetProduct)
	v1.GET("/categories", h.Categories)
	v1.POST("/recommendations", h.Recommendations)
	v1.POST("/cart/summary", h.CartSummary)
	v1.POST("/checkout", h.Checkout)
	v1.POST("/shopping-assistant", h.ShoppingAssistant)
	v1.POST("/shopping-assistant/recommendations", h.AssistantRecommendations)
}
