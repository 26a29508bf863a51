package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sweetshop/backend/internal/catalog"
	"github.com/sweetshop/backend/internal/orders"
)

type SweetsHandler struct {
	Catalog      catalog.Store
	Reservations *orders.ReservationService
}

func (h *SweetsHandler) Register(r *chi.Mux) {
	r.Route("/api/sweets", func(r chi.Router) {
		r.Post("/", h.createSweet)
		r.Get("/", h.listSweets)
		r.Get("/{id}", h.getSweet)
		r.Put("/{id}", h.updateSweet)
		r.Delete("/{id}", h.deleteSweet)
		r.Patch("/{id}/stock", h.adjustStock)
	})
}

type sweetReq struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (h *SweetsHandler) createSweet(w http.ResponseWriter, r *http.Request) {
	var req sweetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing name"})
		return
	}
	price, err := decimalToCents(req.Price)
	if err != nil || price < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}
	if req.Stock < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stock must be >= 0"})
		return
	}
	if req.Image == "" {
		req.Image = "/images/default.jpg"
	}

	sweet := &catalog.Sweet{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Category:    req.Category,
		PriceCents:  price,
		Stock:       req.Stock,
	}
	if err := h.Catalog.Create(r.Context(), sweet); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sweetToJSON(sweet))
}

func (h *SweetsHandler) listSweets(w http.ResponseWriter, r *http.Request) {
	sweets, err := h.Catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(sweets))
	for i := range sweets {
		out = append(out, sweetToJSON(&sweets[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SweetsHandler) getSweet(w http.ResponseWriter, r *http.Request) {
	sweet, err := h.Catalog.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweetToJSON(sweet))
}

func (h *SweetsHandler) updateSweet(w http.ResponseWriter, r *http.Request) {
	sweet, err := h.Catalog.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req sweetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Name != "" {
		sweet.Name = req.Name
	}
	if req.Description != "" {
		sweet.Description = req.Description
	}
	if req.Image != "" {
		sweet.Image = req.Image
	}
	if req.Category != "" {
		sweet.Category = req.Category
	}
	if !req.Price.IsZero() {
		price, err := decimalToCents(req.Price)
		if err != nil || price < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
			return
		}
		sweet.PriceCents = price
	}

	if err := h.Catalog.Update(r.Context(), sweet); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweetToJSON(sweet))
}

func (h *SweetsHandler) deleteSweet(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sweet removed"})
}

type adjustStockReq struct {
	Quantity int `json:"quantity"`
}

// adjustStock is the administrative stock correction; it goes through the
// reservation service so the adjustment races safely with order placement.
func (h *SweetsHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	newStock, err := h.Reservations.AdjustManual(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Stock updated", "stock": newStock})
}

func sweetToJSON(s *catalog.Sweet) map[string]any {
	return map[string]any{
		"id":          s.ID,
		"name":        s.Name,
		"description": s.Description,
		"image":       s.Image,
		"category":    s.Category,
		"price":       centsToDecimal(s.PriceCents),
		"stock":       s.Stock,
		"createdAt":   s.CreatedAt,
		"updatedAt":   s.UpdatedAt,
	}
}
