package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	invdomain "backoffice/internal/service/inventory/domain"
	"backoffice/internal/service/order/application"
	"backoffice/internal/service/order/domain"
)

const serviceName = "order-service"

var tracer = otel.Tracer(serviceName)

var orderTransitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "order_transition_total",
	Help: "订单状态迁移数，按目标状态和结果分类。",
}, []string{"target", "result"})

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/place_order", h.placeOrderHandler)
	mux.HandleFunc("/place_order_async", h.placeOrderAsyncHandler)
	mux.HandleFunc("/order", h.getOrderHandler)
	mux.HandleFunc("/confirm_order", h.confirmOrderHandler)
	mux.HandleFunc("/ship_order", h.shipOrderHandler)
	mux.HandleFunc("/deliver_order", h.deliverOrderHandler)
	mux.HandleFunc("/cancel_order", h.cancelOrderHandler)
}

// PlaceOrderRequest 是下单接口的请求体。
type PlaceOrderRequest struct {
	OrderNumber     string `json:"orderNumber"`
	UserID          string `json:"userId"`
	ShippingAddress string `json:"shippingAddress"`
	Lines           []struct {
		ProductID string  `json:"productId"`
		Quantity  int     `json:"quantity"`
		UnitPrice float64 `json:"unitPrice"`
	} `json:"lines"`
}

// ErrorResponse 是业务错误的统一返回体。
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Current   string `json:"current,omitempty"`
	Attempted string `json:"attempted,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Available int    `json:"available,omitempty"`
	Requested int    `json:"requested,omitempty"`
}

func (h *OrderHandler) placeOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "order-service.PlaceOrder")
	defer span.End()

	req, ok := decodePlaceOrder(w, r)
	if !ok {
		return
	}
	span.SetAttributes(
		attribute.String("order.number", req.OrderNumber),
		attribute.Int("order.lines", len(req.Lines)),
	)

	resp, err := h.service.PlaceOrder(ctx, req)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) placeOrderAsyncHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "order-service.PlaceOrderAsync")
	defer span.End()

	req, ok := decodePlaceOrder(w, r)
	if !ok {
		return
	}

	eventID, err := h.service.RequestOrderPlacement(ctx, req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"eventId": eventID,
		"message": "your order is being processed",
	})
}

func (h *OrderHandler) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "order-service.GetOrder")
	defer span.End()

	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		http.Error(w, "orderId is required", http.StatusBadRequest)
		return
	}
	order, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) confirmOrderHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, "order-service.ConfirmOrder", "CONFIRMED",
		func(ctx context.Context, orderID string) error { return h.service.ConfirmOrder(ctx, orderID) })
}

func (h *OrderHandler) shipOrderHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, "order-service.ShipOrder", "SHIPPED",
		func(ctx context.Context, orderID string) error { return h.service.ShipOrder(ctx, orderID) })
}

func (h *OrderHandler) deliverOrderHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, "order-service.DeliverOrder", "DELIVERED",
		func(ctx context.Context, orderID string) error { return h.service.DeliverOrder(ctx, orderID) })
}

func (h *OrderHandler) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	h.transitionHandler(w, r, "order-service.CancelOrder", "CANCELLED",
		func(ctx context.Context, orderID string) error { return h.service.CancelOrder(ctx, orderID, reason) })
}

// transitionHandler 是四个状态迁移端点的公共骨架，参数走 query：orderId。
func (h *OrderHandler) transitionHandler(
	w http.ResponseWriter, r *http.Request,
	spanName, target string,
	op func(ctx context.Context, orderID string) error,
) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		http.Error(w, "orderId is required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("order.id", orderID))

	if err := op(ctx, orderID); err != nil {
		orderTransitionTotal.WithLabelValues(target, "rejected").Inc()
		writeBusinessError(w, err)
		return
	}
	orderTransitionTotal.WithLabelValues(target, "ok").Inc()
	w.WriteHeader(http.StatusOK)
}

func decodePlaceOrder(w http.ResponseWriter, r *http.Request) (*application.PlaceOrderRequest, bool) {
	var body PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	if body.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return nil, false
	}
	req := &application.PlaceOrderRequest{
		OrderNumber:     body.OrderNumber,
		UserID:          body.UserID,
		ShippingAddress: body.ShippingAddress,
	}
	for _, line := range body.Lines {
		req.Lines = append(req.Lines, application.PlaceOrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return req, true
}

// writeBusinessError 把领域错误翻译成 HTTP 状态码和结构化返回体。
func writeBusinessError(w http.ResponseWriter, err error) {
	var invalidState *domain.InvalidOrderStateError
	if errors.As(err, &invalidState) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Code:      "INVALID_ORDER_STATE",
			Message:   invalidState.Error(),
			Current:   string(invalidState.Current),
			Attempted: string(invalidState.Attempted),
		})
		return
	}
	var insufficient *invdomain.InsufficientStockError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Code:      "INSUFFICIENT_STOCK",
			Message:   insufficient.Error(),
			ProductID: insufficient.ProductID.String(),
			Available: insufficient.Available,
			Requested: insufficient.Requested,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Code: "ORDER_NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrEmptyOrder), errors.Is(err, domain.ErrInvalidLine):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
	default:
		log.Error().Err(err).Msg("order request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
