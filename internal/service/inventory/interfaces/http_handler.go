package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"backoffice/internal/pkg/constants"
	"backoffice/internal/service/inventory/application"
	"backoffice/internal/service/inventory/domain"
)

const serviceName = "inventory-service"

var tracer = otel.Tracer(serviceName)

var (
	allocationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_allocation_total",
		Help: "整单分配请求数，按结果分类。",
	}, []string{"result"})
	ledgerOpTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_ledger_operation_total",
		Help: "台账操作数，按操作和结果分类。",
	}, []string{"op", "result"})
)

// InventoryHandler 封装了库存服务的 HTTP 处理器
type InventoryHandler struct {
	ledger    *application.StockLedgerService
	engine    *application.AllocationEngine
	directory *application.WarehouseDirectoryService
}

// NewInventoryHandler 创建一个新的 HTTP 处理器实例
func NewInventoryHandler(
	ledger *application.StockLedgerService,
	engine *application.AllocationEngine,
	directory *application.WarehouseDirectoryService,
) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, engine: engine, directory: directory}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc(constants.InventoryAllocatePath, h.allocateHandler)
	mux.HandleFunc("/reserve_stock", h.reserveHandler)
	mux.HandleFunc(constants.InventoryConfirmPath, h.confirmHandler)
	mux.HandleFunc(constants.InventoryReleasePath, h.releaseHandler)
	mux.HandleFunc(constants.InventoryReplenishPath, h.replenishHandler)
	mux.HandleFunc(constants.InventoryAvailablePath, h.availabilityHandler)
	mux.HandleFunc("/warehouses", h.warehousesHandler)
	mux.HandleFunc("/warehouses/deactivate", h.deactivateWarehouseHandler)
	mux.HandleFunc("/movements", h.movementsHandler)
}

// AllocateRequest 是整单分配的请求体。
type AllocateRequest struct {
	OrderID string `json:"orderId"`
	Lines   []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"lines"`
}

// AllocateResponse 携带每一行的供货仓。
type AllocateResponse struct {
	Allocations []AllocationDTO `json:"allocations"`
}

type AllocationDTO struct {
	ProductID   string `json:"productId"`
	WarehouseID string `json:"warehouseId"`
	Quantity    int    `json:"quantity"`
}

// ErrorResponse 是业务错误的统一返回体，调用方按 code 分支处理。
type ErrorResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	ProductID   string `json:"productId,omitempty"`
	WarehouseID string `json:"warehouseId,omitempty"`
	Available   int    `json:"available,omitempty"`
	Requested   int    `json:"requested,omitempty"`
	Reserved    int    `json:"reserved,omitempty"`
}

func (h *InventoryHandler) allocateHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.Allocate")
	defer span.End()

	var req AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.Int("order.lines", len(req.Lines)),
	)

	demands := make([]application.Demand, 0, len(req.Lines))
	for _, line := range req.Lines {
		demands = append(demands, application.Demand{
			ProductID: domain.ProductID(line.ProductID),
			Quantity:  line.Quantity,
		})
	}

	allocations, err := h.engine.Allocate(ctx, demands)
	if err != nil {
		allocationTotal.WithLabelValues("rejected").Inc()
		writeBusinessError(w, err)
		return
	}
	allocationTotal.WithLabelValues("ok").Inc()

	resp := AllocateResponse{Allocations: make([]AllocationDTO, 0, len(allocations))}
	for _, a := range allocations {
		resp.Allocations = append(resp.Allocations, AllocationDTO{
			ProductID:   a.ProductID.String(),
			WarehouseID: a.WarehouseID.String(),
			Quantity:    a.Quantity,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *InventoryHandler) reserveHandler(w http.ResponseWriter, r *http.Request) {
	h.ledgerOpHandler(w, r, "inventory-service.Reserve", "reserve", h.ledger.Reserve)
}

func (h *InventoryHandler) confirmHandler(w http.ResponseWriter, r *http.Request) {
	h.ledgerOpHandler(w, r, "inventory-service.Confirm", "confirm", h.ledger.Confirm)
}

func (h *InventoryHandler) releaseHandler(w http.ResponseWriter, r *http.Request) {
	h.ledgerOpHandler(w, r, "inventory-service.Release", "release", h.ledger.Release)
}

// ledgerOpHandler 是 reserve/confirm/release 三个同构端点的公共骨架。
// 参数走 query：productId、warehouseId、quantity、reference。
func (h *InventoryHandler) ledgerOpHandler(
	w http.ResponseWriter, r *http.Request,
	spanName, opLabel string,
	op func(ctx context.Context, productID domain.ProductID, warehouseID domain.WarehouseID, qty int, reference string) error,
) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	productID := domain.ProductID(r.URL.Query().Get("productId"))
	warehouseID := domain.WarehouseID(r.URL.Query().Get("warehouseId"))
	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
	reference := r.URL.Query().Get("reference")

	span.SetAttributes(
		attribute.String("product.id", productID.String()),
		attribute.String("warehouse.id", warehouseID.String()),
		attribute.Int("quantity", quantity),
	)

	if err := op(ctx, productID, warehouseID, quantity, reference); err != nil {
		ledgerOpTotal.WithLabelValues(opLabel, "rejected").Inc()
		writeBusinessError(w, err)
		return
	}
	ledgerOpTotal.WithLabelValues(opLabel, "ok").Inc()
	w.WriteHeader(http.StatusOK)
}

func (h *InventoryHandler) replenishHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.Replenish")
	defer span.End()

	productID := domain.ProductID(r.URL.Query().Get("productId"))
	warehouseID := domain.WarehouseID(r.URL.Query().Get("warehouseId"))
	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
	reference := r.URL.Query().Get("reference")

	span.SetAttributes(
		attribute.String("product.id", productID.String()),
		attribute.String("warehouse.id", warehouseID.String()),
		attribute.Int("quantity", quantity),
	)

	if err := h.ledger.Replenish(ctx, warehouseID, productID, quantity, reference); err != nil {
		ledgerOpTotal.WithLabelValues("replenish", "rejected").Inc()
		writeBusinessError(w, err)
		return
	}
	ledgerOpTotal.WithLabelValues("replenish", "ok").Inc()
	w.WriteHeader(http.StatusOK)
}

// availabilityHandler 查询可用量。
// 单个商品: /availability?productId=P1
// 批量:     /availability?productIds=P1,P2,P3
func (h *InventoryHandler) availabilityHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.Availability")
	defer span.End()

	if single := r.URL.Query().Get("productId"); single != "" {
		available, err := h.ledger.GetAvailable(ctx, domain.ProductID(single))
		if err != nil {
			writeBusinessError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"productId": single, "available": available})
		return
	}

	raw := r.URL.Query().Get("productIds")
	if raw == "" {
		http.Error(w, "productId or productIds is required", http.StatusBadRequest)
		return
	}
	ids := make([]domain.ProductID, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, domain.ProductID(part))
		}
	}
	span.SetAttributes(attribute.Int("batch.size", len(ids)))

	result, err := h.ledger.GetAvailableBatch(ctx, ids)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	payload := make(map[string]int, len(result))
	for id, available := range result {
		payload[id.String()] = available
	}
	writeJSON(w, http.StatusOK, payload)
}

// WarehouseDTO 是仓库目录的读写表示。
type WarehouseDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

func (h *InventoryHandler) warehousesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	switch r.Method {
	case http.MethodPost:
		ctx, span := tracer.Start(ctx, "inventory-service.RegisterWarehouse")
		defer span.End()

		var dto WarehouseDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if dto.ID == "" || dto.Name == "" {
			http.Error(w, "id and name are required", http.StatusBadRequest)
			return
		}
		warehouse, err := h.directory.Register(ctx, domain.WarehouseID(dto.ID), dto.Name, dto.Address)
		if err != nil {
			writeBusinessError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toWarehouseDTO(warehouse))

	case http.MethodGet:
		ctx, span := tracer.Start(ctx, "inventory-service.ListWarehouses")
		defer span.End()

		var (
			warehouses []domain.Warehouse
			err        error
		)
		if r.URL.Query().Get("active") == "true" {
			warehouses, err = h.directory.ListActive(ctx)
		} else {
			warehouses, err = h.directory.List(ctx)
		}
		if err != nil {
			writeBusinessError(w, err)
			return
		}
		dtos := make([]WarehouseDTO, 0, len(warehouses))
		for i := range warehouses {
			dtos = append(dtos, toWarehouseDTO(&warehouses[i]))
		}
		writeJSON(w, http.StatusOK, dtos)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *InventoryHandler) deactivateWarehouseHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.DeactivateWarehouse")
	defer span.End()

	id := r.URL.Query().Get("warehouseId")
	if id == "" {
		http.Error(w, "warehouseId is required", http.StatusBadRequest)
		return
	}
	if err := h.directory.Deactivate(ctx, domain.WarehouseID(id)); err != nil {
		writeBusinessError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *InventoryHandler) movementsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.ListMovements")
	defer span.End()

	productID := r.URL.Query().Get("productId")
	if productID == "" {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	movements, err := h.ledger.ListMovements(ctx, domain.ProductID(productID), limit)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

func toWarehouseDTO(w *domain.Warehouse) WarehouseDTO {
	return WarehouseDTO{
		ID:      w.ID.String(),
		Name:    w.Name,
		Address: w.Address,
		Active:  w.Active,
	}
}

// writeBusinessError 把领域错误翻译成 HTTP 状态码和结构化返回体。
// 库存不足和非法预占都是调用方可处理的冲突，用 409 而不是 500。
func writeBusinessError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientStockError
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
	var invalidRes *domain.InvalidReservationError
	if errors.As(err, &invalidRes) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Code:        "INVALID_RESERVATION",
			Message:     invalidRes.Error(),
			ProductID:   invalidRes.ProductID.String(),
			WarehouseID: invalidRes.WarehouseID.String(),
			Reserved:    invalidRes.Reserved,
			Requested:   invalidRes.Requested,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrWarehouseNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Code: "WAREHOUSE_NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrStockNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Code: "PRODUCT_STOCK_NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrEmptyDemands):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
	default:
		log.Error().Err(err).Msg("inventory request failed")
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
