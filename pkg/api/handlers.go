package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"gearshop/pkg/assistant"
	"gearshop/pkg/cart"
	"gearshop/pkg/catalog"
	"gearshop/pkg/domain"
	"gearshop/pkg/metrics"
	"gearshop/pkg/models"
	"gearshop/pkg/recommend"
)

// SessionHeader scopes assistant supersession to one browser tab.
const SessionHeader = "X-Session-ID"

// Assistant answers shopper questions. *assistant.Service implements it.
type Assistant interface {
	Ask(ctx context.Context, sessionID, query string) (models.TextStream, error)
	Recommend(ctx context.Context, sessionID, query string) (*assistant.Answer, error)
}

// Handlers serves the storefront API.
type Handlers struct {
	catalog   *catalog.Catalog
	assistant Assistant
	reg       *metrics.Registry
	limit     int
}

// NewHandlers constructs Handlers. limit is the default number of
// recommendations next to a cart.
func NewHandlers(c *catalog.Catalog, a Assistant, reg *metrics.Registry, limit int) *Handlers {
	if limit <= 0 {
		limit = recommend.DefaultLimit
	}
	return &Handlers{catalog: c, assistant: a, reg: reg, limit: limit}
}

// ErrorResponse is the body of every non-success response.
type ErrorResponse struct {
	Error   domain.ErrorType `json:"error"`
	Details string           `json:"details"`
}

type productsResponse struct {
	Products []models.Product `json:"products"`
	Total    int              `json:"total"`
	Offset   int              `json:"offset"`
	Limit    int              `json:"limit"`
}

type assistantRequest struct {
	Prompt string `json:"prompt"`
}

type recommendationsRequest struct {
	ProductIDs []string `json:"product_ids"`
	Limit      int      `json:"limit"`
}

type recommendationsResponse struct {
	Products []models.Product `json:"products"`
}

type cartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartRequest struct {
	Items []cartItem `json:"items"`
}

type cartResponse struct {
	Lines           []cart.Line      `json:"lines"`
	Total           float64          `json:"total"`
	Recommendations []models.Product `json:"recommendations"`
}

type shipping struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	City      string `json:"city"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
}

type checkoutRequest struct {
	Items    []cartItem `json:"items"`
	Shipping shipping   `json:"shipping"`
}

type checkoutResponse struct {
	OrderID string      `json:"order_id"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Lines   []cart.Line `json:"lines"`
	Total   float64     `json:"total"`
}

// Health handles GET /healthz
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "products": h.catalog.Len()})
}

// ListProducts handles GET /api/v1/products
func (h *Handlers) ListProducts(c echo.Context) error {
	offset, err := intParam(c, "offset", 0)
	if err != nil {
		return writeError(c, err)
	}
	limit, err := intParam(c, "limit", catalog.DefaultPageSize)
	if err != nil {
		return writeError(c, err)
	}
	if limit <= 0 {
		limit = catalog.DefaultPageSize
	}

	filtered := h.catalog.Filter(c.QueryParams()["category"])
	return c.JSON(http.StatusOK, productsResponse{
		Products: nonNil(catalog.Page(filtered, offset, limit)),
		Total:    len(filtered),
		Offset:   max(offset, 0),
		Limit:    limit,
	})
}

// GetProduct handles GET /api/v1/products/:id
func (h *Handlers) GetProduct(c echo.Context) error {
	p, ok := h.catalog.Lookup(c.Param("id"))
	if !ok {
		return writeError(c, domain.NotFoundError("product not found", nil))
	}
	return c.JSON(http.StatusOK, p)
}

// Categories handles GET /api/v1/categories
func (h *Handlers) Categories(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"categories": h.catalog.Categories()})
}

// Recommendations handles POST /api/v1/recommendations
func (h *Handlers) Recommendations(c echo.Context) error {
	var req recommendationsRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.ValidationError("invalid JSON payload", nil))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = h.limit
	}

	products := recommend.Recommend(h.catalog.Resolve(req.ProductIDs), h.catalog.All(), limit)
	h.reg.Inc(c.Request().Context(), metrics.RecommendationsShown, metrics.Labels{"source": "seeds"}, int64(len(products)))
	return c.JSON(http.StatusOK, recommendationsResponse{Products: nonNil(products)})
}

// CartSummary handles POST /api/v1/cart/summary
func (h *Handlers) CartSummary(c echo.Context) error {
	var req cartRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.ValidationError("invalid JSON payload", nil))
	}
	ct, err := h.buildCart(req.Items)
	if err != nil {
		return writeError(c, err)
	}

	recs := recommend.Recommend(h.catalog.Resolve(ct.ProductIDs()), h.catalog.All(), h.limit)
	h.reg.Inc(c.Request().Context(), metrics.RecommendationsShown, metrics.Labels{"source": "cart"}, int64(len(recs)))
	return c.JSON(http.StatusOK, cartResponse{
		Lines:           nonNilLines(ct.Lines()),
		Total:           ct.Total(),
		Recommendations: nonNil(recs),
	})
}

// Checkout handles POST /api/v1/checkout. Orders are not stored and no
// payment is taken.
func (h *Handlers) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.ValidationError("invalid JSON payload", nil))
	}
	if err := req.Shipping.validate(); err != nil {
		return writeError(c, err)
	}
	ct, err := h.buildCart(req.Items)
	if err != nil {
		return writeError(c, err)
	}
	if ct.Len() == 0 {
		return writeError(c, domain.ValidationError("cannot checkout an empty cart", nil))
	}

	orderID := uuid.NewString()
	log.Ctx(c.Request().Context()).Info().
		Str("order_id", orderID).
		Int("lines", ct.Len()).
		Float64("total", ct.Total()).
		Msg("demo order placed")
	h.reg.Inc(c.Request().Context(), metrics.Checkouts, nil, 1)

	return c.JSON(http.StatusCreated, checkoutResponse{
		OrderID: orderID,
		Status:  "demo",
		Message: "Order placed successfully! (This is a demo)",
		Lines:   ct.Lines(),
		Total:   ct.Total(),
	})
}

// ShoppingAssistant handles POST /api/v1/shopping-assistant and streams
// the reply as plain text.
func (h *Handlers) ShoppingAssistant(c echo.Context) error {
	var req assistantRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.ValidationError("invalid JSON payload", nil))
	}

	ctx := c.Request().Context()
	stream, err := h.assistant.Ask(ctx, c.Request().Header.Get(SessionHeader), req.Prompt)
	if err != nil {
		return writeError(c, err)
	}
	defer stream.Close()

	// Hold the status line until the first fragment so that failures
	// before any text still get a proper error response.
	if !stream.Next() {
		if err := stream.Err(); err != nil {
			return writeError(c, err)
		}
		return c.String(http.StatusOK, "")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(http.StatusOK)
	for {
		if _, err := res.Write([]byte(stream.Text())); err != nil {
			return err
		}
		res.Flush()
		if !stream.Next() {
			break
		}
	}

	if err := stream.Err(); err != nil {
		// Headers are gone; the client sees a truncated reply.
		log.Ctx(ctx).Warn().Err(err).Msg("assistant stream ended early")
	}
	return nil
}

// AssistantRecommendations handles POST /api/v1/shopping-assistant/recommendations
func (h *Handlers) AssistantRecommendations(c echo.Context) error {
	var req assistantRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.ValidationError("invalid JSON payload", nil))
	}

	answer, err := h.assistant.Recommend(c.Request().Context(), c.Request().Header.Get(SessionHeader), req.Prompt)
	if err != nil {
		return writeError(c, err)
	}
	answer.Products = nonNil(answer.Products)
	h.reg.Inc(c.Request().Context(), metrics.RecommendationsShown, metrics.Labels{"source": "assistant"}, int64(len(answer.Products)))
	return c.JSON(http.StatusOK, answer)
}

func (h *Handlers) buildCart(items []cartItem) (cart.Cart, error) {
	var ct cart.Cart
	for _, it := range items {
		if it.Quantity < 1 {
			return cart.Cart{}, domain.ValidationError("quantity must be a positive integer", nil)
		}
		// Unknown products are dropped like any other unresolvable ID.
		if p, ok := h.catalog.Lookup(it.ProductID); ok {
			ct = ct.AddN(p, it.Quantity)
		}
	}
	return ct, nil
}

func (s shipping) validate() error {
	required := []struct{ name, value string }{
		{"first_name", s.FirstName},
		{"last_name", s.LastName},
		{"email", s.Email},
		{"address", s.Address},
		{"city", s.City},
		{"zip_code", s.ZipCode},
		{"country", s.Country},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return domain.ValidationError("missing shipping fields: "+strings.Join(missing, ", "), nil)
	}
	if !strings.Contains(s.Email, "@") {
		return domain.ValidationError("invalid email address", nil)
	}
	return nil
}

func statusFor(t domain.ErrorType) int {
	switch t {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeSuperseded:
		return http.StatusConflict
	case domain.ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		de = domain.InternalError("an error occurred while processing your request", err)
	}
	status := statusFor(de.Type)
	if status >= http.StatusInternalServerError {
		log.Ctx(c.Request().Context()).Error().Err(err).Msg("request failed")
	}
	return c.JSON(status, ErrorResponse{Error: de.Type, Details: de.Detail()})
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ValidationError(name+" must be an integer", nil)
	}
	return v, nil
}

func nonNil(p []models.Product) []models.Product {
	if p == nil {
		return []models.Product{}
	}
	return p
}

func nonNilLines(l []cart.Line) []cart.Line {
	if l == nil {
		return []cart.Line{}
	}
	return l
}
