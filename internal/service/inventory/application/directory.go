// internal/service/inventory/application/directory.go
package application

import (
	"context"
	"time"

	"backoffice/internal/service/inventory/domain"

	"go.opentelemetry.io/otel/trace"
)

// WarehouseDirectoryService 维护仓库目录。读多写少的后台管理入口。
type WarehouseDirectoryService struct {
	repo   domain.WarehouseRepository
	tracer trace.Tracer
}

func NewWarehouseDirectoryService(repo domain.WarehouseRepository, tracer trace.Tracer) *WarehouseDirectoryService {
	return &WarehouseDirectoryService{repo: repo, tracer: tracer}
}

// Register 新建一个仓库，默认启用。
func (s *WarehouseDirectoryService) Register(ctx context.Context, id domain.WarehouseID, name, address string) (*domain.Warehouse, error) {
	ctx, span := s.tracer.Start(ctx, "directory.Register")
	defer span.End()

	now := time.Now()
	w := &domain.Warehouse{
		ID:        id,
		Name:      name,
		Address:   address,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, w); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return w, nil
}

// Deactivate 停用一个仓库。已有库存记录保留，只是不再参与分配。
func (s *WarehouseDirectoryService) Deactivate(ctx context.Context, id domain.WarehouseID) error {
	ctx, span := s.tracer.Start(ctx, "directory.Deactivate")
	defer span.End()

	w, err := s.repo.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	w.Active = false
	w.UpdatedAt = time.Now()
	return s.repo.Save(ctx, w)
}

// ListActive 返回所有启用中的仓库。
func (s *WarehouseDirectoryService) ListActive(ctx context.Context) ([]domain.Warehouse, error) {
	return s.repo.ListActive(ctx)
}

// List 返回全部仓库。
func (s *WarehouseDirectoryService) List(ctx context.Context) ([]domain.Warehouse, error) {
	return s.repo.List(ctx)
}
