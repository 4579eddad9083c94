package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"backoffice/internal/pkg/constants"
	"backoffice/internal/pkg/httpclient"
	invdomain "backoffice/internal/service/inventory/domain"
	"backoffice/internal/service/order/port"
)

// AllocationHTTPAdapter 通过库存服务的 HTTP 接口实现分配与预占操作。
// 服务实例经由 Nacos 发现。
type AllocationHTTPAdapter struct {
	client *httpclient.Client
}

func NewAllocationHTTPAdapter(client *httpclient.Client) *AllocationHTTPAdapter {
	return &AllocationHTTPAdapter{client: client}
}

type allocateRequest struct {
	OrderID string         `json:"orderId"`
	Lines   []allocateLine `json:"lines"`
}

type allocateLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type allocateResponse struct {
	Allocations []struct {
		ProductID   string `json:"productId"`
		WarehouseID string `json:"warehouseId"`
		Quantity    int    `json:"quantity"`
	} `json:"allocations"`
}

type inventoryErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	ProductID   string `json:"productId"`
	WarehouseID string `json:"warehouseId"`
	Available   int    `json:"available"`
	Requested   int    `json:"requested"`
	Reserved    int    `json:"reserved"`
}

// Allocate 调用库存服务的整单分配接口。
// 非 2xx 时把返回体解析回类型化的库存错误，调用方可以 errors.As 分支处理。
func (a *AllocationHTTPAdapter) Allocate(ctx context.Context, orderID string, demands []port.Demand) ([]port.Allocation, error) {
	req := allocateRequest{OrderID: orderID}
	for _, d := range demands {
		req.Lines = append(req.Lines, allocateLine{ProductID: d.ProductID, Quantity: d.Quantity})
	}

	var resp allocateResponse
	status, body, err := a.client.PostJSON(ctx, constants.InventoryService, constants.InventoryAllocatePath, &req, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, decodeInventoryError(status, body)
	}

	allocations := make([]port.Allocation, 0, len(resp.Allocations))
	for _, alloc := range resp.Allocations {
		allocations = append(allocations, port.Allocation{
			ProductID:   alloc.ProductID,
			WarehouseID: alloc.WarehouseID,
			Quantity:    alloc.Quantity,
		})
	}
	return allocations, nil
}

// ConfirmLine 发货时把一行预占转为实际出库。
func (a *AllocationHTTPAdapter) ConfirmLine(ctx context.Context, orderID, productID, warehouseID string, qty int) error {
	return a.callLedgerOp(ctx, constants.InventoryConfirmPath, orderID, productID, warehouseID, qty)
}

// ReleaseLine 取消时把一行预占退回可用库存。
func (a *AllocationHTTPAdapter) ReleaseLine(ctx context.Context, orderID, productID, warehouseID string, qty int) error {
	return a.callLedgerOp(ctx, constants.InventoryReleasePath, orderID, productID, warehouseID, qty)
}

func (a *AllocationHTTPAdapter) callLedgerOp(ctx context.Context, path, orderID, productID, warehouseID string, qty int) error {
	params := url.Values{}
	params.Set("productId", productID)
	params.Set("warehouseId", warehouseID)
	params.Set("quantity", strconv.Itoa(qty))
	params.Set("reference", orderID)
	return a.client.CallService(ctx, constants.InventoryService, path, params)
}

// decodeInventoryError 把库存服务的错误返回体还原成领域错误。
// 识别不了的返回体退化为普通错误，至少保留原始信息。
func decodeInventoryError(status int, body []byte) error {
	var payload inventoryErrorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("inventory service returned status %d: %s", status, string(body))
	}
	switch payload.Code {
	case "INSUFFICIENT_STOCK":
		return &invdomain.InsufficientStockError{
			ProductID: invdomain.ProductID(payload.ProductID),
			Available: payload.Available,
			Requested: payload.Requested,
		}
	case "INVALID_RESERVATION":
		return &invdomain.InvalidReservationError{
			ProductID:   invdomain.ProductID(payload.ProductID),
			WarehouseID: invdomain.WarehouseID(payload.WarehouseID),
			Reserved:    payload.Reserved,
			Requested:   payload.Requested,
		}
	case "WAREHOUSE_NOT_FOUND":
		return invdomain.ErrWarehouseNotFound
	case "PRODUCT_STOCK_NOT_FOUND":
		return invdomain.ErrStockNotFound
	default:
		return fmt.Errorf("inventory service rejected request (%d %s): %s", status, payload.Code, payload.Message)
	}
}
