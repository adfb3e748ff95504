package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agrilink/agrilink-api/internal/model"
	"github.com/agrilink/agrilink-api/internal/repository"
)

type MarketPriceHandler struct {
	Prices *repository.MarketPriceRepo
}

func NewMarketPriceHandler(p *repository.MarketPriceRepo) *MarketPriceHandler {
	return &MarketPriceHandler{Prices: p}
}

type createPriceReq struct {
	CropName       string  `json:"crop_name"`
	MarketLocation string  `json:"market_location"`
	State          string  `json:"state"`
	Price          float64 `json:"price"`
	PriceType      string  `json:"price_type"`
	MarketType     string  `json:"market_type"`
	RecordedDate   string  `json:"recorded_date"`
}

// Create records one market price point. Admin only.
func (h *MarketPriceHandler) Create(c echo.Context) error {
	var req createPriceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.CropName = strings.TrimSpace(req.CropName)
	req.MarketLocation = strings.TrimSpace(req.MarketLocation)
	req.State = strings.TrimSpace(req.State)
	if req.CropName == "" || req.MarketLocation == "" || req.State == "" || req.Price <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "crop name, market location, state and a positive price are required"})
	}
	recorded := time.Now().UTC()
	if req.RecordedDate != "" {
		d, err := time.Parse("2006-01-02", req.RecordedDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "recorded_date must be YYYY-MM-DD"})
		}
		recorded = d
	}

	price := &model.MarketPrice{
		ID:             uuid.NewString(),
		CropName:       req.CropName,
		MarketLocation: req.MarketLocation,
		State:          req.State,
		Price:          req.Price,
		PriceType:      req.PriceType,
		MarketType:     req.MarketType,
		RecordedDate:   recorded,
		CreatedAt:      time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Prices.Create(ctx, price); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create price failed"})
	}
	return c.JSON(http.StatusCreated, price)
}

// List returns recent price points, optionally filtered by crop and state.
// Public, cached.
func (h *MarketPriceHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	prices, err := h.Prices.List(ctx, c.QueryParam("crop"), c.QueryParam("state"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"prices": prices})
}
