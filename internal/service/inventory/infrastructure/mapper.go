// internal/service/inventory/infrastructure/mapper.go
package infrastructure

import "backoffice/internal/service/inventory/domain"

// 数据库模型与领域模型之间的转换。

func toDomainStockRecord(m *StockRecordModel) *domain.StockRecord {
	return &domain.StockRecord{
		ProductID:   domain.ProductID(m.ProductID),
		WarehouseID: domain.WarehouseID(m.WarehouseID),
		OnHand:      m.OnHand,
		Reserved:    m.Reserved,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toStockRecordModel(r *domain.StockRecord) *StockRecordModel {
	return &StockRecordModel{
		ProductID:   r.ProductID.String(),
		WarehouseID: r.WarehouseID.String(),
		OnHand:      r.OnHand,
		Reserved:    r.Reserved,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toDomainWarehouse(m *WarehouseModel) *domain.Warehouse {
	return &domain.Warehouse{
		ID:        domain.WarehouseID(m.ID),
		Name:      m.Name,
		Address:   m.Address,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toWarehouseModel(w *domain.Warehouse) *WarehouseModel {
	return &WarehouseModel{
		ID:        w.ID.String(),
		Name:      w.Name,
		Address:   w.Address,
		Active:    w.Active,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func toDomainMovement(m *StockMovementModel) domain.StockMovement {
	return domain.StockMovement{
		ID:          m.ID,
		ProductID:   domain.ProductID(m.ProductID),
		WarehouseID: domain.WarehouseID(m.WarehouseID),
		Type:        domain.MovementType(m.Type),
		Quantity:    m.Quantity,
		OnHandAfter: m.OnHandAfter,
		Reference:   m.Reference,
		CreatedAt:   m.CreatedAt,
	}
}

func toMovementModel(m *domain.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:          m.ID,
		ProductID:   m.ProductID.String(),
		WarehouseID: m.WarehouseID.String(),
		Type:        string(m.Type),
		Quantity:    m.Quantity,
		OnHandAfter: m.OnHandAfter,
		Reference:   m.Reference,
		CreatedAt:   m.CreatedAt,
	}
}
