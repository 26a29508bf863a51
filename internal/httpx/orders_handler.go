package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/sweetshop/backend/internal/kafka"
	"github.com/sweetshop/backend/internal/orders"
	"github.com/sweetshop/backend/internal/redisx"
)

type OrdersHandler struct {
	Orders  *orders.Lifecycle
	Revenue *orders.Revenue
	Redis   *redis.Client
	Service string

	ProducerCreated   *kafkax.Producer
	ProducerDelivered *kafkax.Producer
	ProducerDeleted   *kafkax.Producer
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.placeOrder)
		r.Get("/", h.listOrders)
		r.Get("/income", h.monthlyIncome)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getOrderStatus)
		r.Put("/{id}/pay", h.markPaid)
		r.Put("/{id}/deliver", h.markDelivered)
		r.Delete("/{id}", h.deleteOrder)
	})
}

type orderItemReq struct {
	Sweet string `json:"sweet"`
	Qty   int    `json:"qty"`
}

type shippingAddressJSON struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type placeOrderReq struct {
	User            string              `json:"user"`
	OrderItems      []orderItemReq      `json:"orderItems"`
	ShippingAddress shippingAddressJSON `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	TaxPrice        decimal.Decimal     `json:"taxPrice"`
	ShippingPrice   decimal.Decimal     `json:"shippingPrice"`
	TotalPrice      decimal.Decimal     `json:"totalPrice"`
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.User == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user"})
		return
	}

	tax, err := decimalToCents(req.TaxPrice)
	if err != nil {
		writeError(w, err)
		return
	}
	shipping, err := decimalToCents(req.ShippingPrice)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := decimalToCents(req.TotalPrice)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]orders.ItemQty, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		items = append(items, orders.ItemQty{SweetID: it.Sweet, Qty: it.Qty})
	}

	order, err := h.Orders.PlaceOrder(r.Context(), orders.PlaceOrderInput{
		UserID: req.User,
		Items:  items,
		ShippingAddress: orders.ShippingAddress{
			Address:    req.ShippingAddress.Address,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		PaymentMethod:      req.PaymentMethod,
		TaxPriceCents:      tax,
		ShippingPriceCents: shipping,
		TotalPriceCents:    total,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(r, order)
	h.publish(h.ProducerCreated, orders.EventOrderCreated, order.ID, orders.OrderCreatedPayload{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Items:      items,
		TotalCents: order.TotalPriceCents,
	})

	writeJSON(w, http.StatusCreated, orderToJSON(order))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToJSON(order))
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	order, err := h.Orders.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(r, order)
	writeJSON(w, http.StatusOK, statusDoc(order))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListOrders(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for i := range list {
		out = append(out, orderToJSON(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type paymentResultReq struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

func (h *OrdersHandler) markPaid(w http.ResponseWriter, r *http.Request) {
	var req paymentResultReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	order, err := h.Orders.MarkPaid(r.Context(), chi.URLParam(r, "id"), orders.PaymentResult{
		ID:           req.ID,
		Status:       req.Status,
		UpdateTime:   req.UpdateTime,
		EmailAddress: req.EmailAddress,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(r, order)
	writeJSON(w, http.StatusOK, orderToJSON(order))
}

func (h *OrdersHandler) markDelivered(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.MarkDelivered(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(r, order)
	h.publish(h.ProducerDelivered, orders.EventOrderDelivered, order.ID,
		orders.OrderDeliveredPayload{OrderID: order.ID})
	writeJSON(w, http.StatusOK, orderToJSON(order))
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	restored, err := h.Orders.DeleteOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	_ = h.Redis.Del(r.Context(), fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
	h.publish(h.ProducerDeleted, orders.EventOrderDeleted, orderID,
		orders.OrderDeletedPayload{OrderID: orderID, StockRestored: restored})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order removed"})
}

func (h *OrdersHandler) monthlyIncome(w http.ResponseWriter, r *http.Request) {
	income, err := h.Revenue.MonthlyIncome(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make(map[string]decimal.Decimal, len(income))
	for month, cents := range income {
		out[month] = centsToDecimal(cents)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) publish(p *kafkax.Producer, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func statusDoc(o *orders.Order) map[string]bool {
	return map[string]bool{"is_paid": o.IsPaid, "is_delivered": o.IsDelivered}
}

func (h *OrdersHandler) cacheStatus(r *http.Request, o *orders.Order) {
	b, _ := json.Marshal(statusDoc(o))
	_ = h.Redis.Set(r.Context(), fmt.Sprintf(redisx.KeyOrderStatus, o.ID), b, redisx.TTLStatusCache).Err()
}

func orderToJSON(o *orders.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"name":  it.Name,
			"qty":   it.Qty,
			"image": it.Image,
			"price": centsToDecimal(it.PriceCents),
			"sweet": it.SweetID,
		})
	}
	out := map[string]any{
		"id":         o.ID,
		"user":       o.UserID,
		"orderItems": items,
		"shippingAddress": shippingAddressJSON{
			Address:    o.ShippingAddress.Address,
			City:       o.ShippingAddress.City,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		"paymentMethod": o.PaymentMethod,
		"itemsPrice":    centsToDecimal(o.ItemsPriceCents),
		"taxPrice":      centsToDecimal(o.TaxPriceCents),
		"shippingPrice": centsToDecimal(o.ShippingPriceCents),
		"totalPrice":    centsToDecimal(o.TotalPriceCents),
		"isPaid":        o.IsPaid,
		"isDelivered":   o.IsDelivered,
		"createdAt":     o.CreatedAt,
		"updatedAt":     o.UpdatedAt,
	}
	if o.PaidAt != nil {
		out["paidAt"] = o.PaidAt
	}
	if o.DeliveredAt != nil {
		out["deliveredAt"] = o.DeliveredAt
	}
	if o.PaymentResult != nil {
		out["paymentResult"] = map[string]string{
			"id":            o.PaymentResult.ID,
			"status":        o.PaymentResult.Status,
			"update_time":   o.PaymentResult.UpdateTime,
			"email_address": o.PaymentResult.EmailAddress,
		}
	}
	return out
}
