package rule

import (
	"context"
	"testing"

	"backoffice/internal/service/inventory/domain"
)

func candidates() []domain.Candidate {
	return []domain.Candidate{
		{Warehouse: domain.Warehouse{ID: "WH-BJ", Name: "北京一号仓", Address: "北京", Active: true}, Available: 30},
		{Warehouse: domain.Warehouse{ID: "WH-SH", Name: "上海一号仓", Address: "上海", Active: true}, Available: 50},
		{Warehouse: domain.Warehouse{ID: "WH-GZ", Name: "广州一号仓", Address: "广州", Active: true}, Available: 50},
	}
}

func TestCelPolicyRanksByExpression(t *testing.T) {
	// 偏好上海仓，其余按可用量
	policy, err := NewCelSelectionPolicy(`warehouseId == "WH-SH" ? 1000 : available`)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	ranked, err := policy.Rank(context.Background(), "P1", candidates())
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if ranked[0].Warehouse.ID != "WH-SH" {
		t.Fatalf("first = %s, want WH-SH", ranked[0].Warehouse.ID)
	}
}

func TestCelPolicyTieBreakIsDeterministic(t *testing.T) {
	// 所有候选得分相同时退回可用量降序、仓库ID升序
	policy, err := NewCelSelectionPolicy(`1`)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		ranked, err := policy.Rank(context.Background(), "P1", candidates())
		if err != nil {
			t.Fatalf("Rank failed: %v", err)
		}
		want := []domain.WarehouseID{"WH-GZ", "WH-SH", "WH-BJ"}
		for j, w := range want {
			if ranked[j].Warehouse.ID != w {
				t.Fatalf("run %d position %d = %s, want %s", i, j, ranked[j].Warehouse.ID, w)
			}
		}
	}
}

func TestCelPolicyBooleanExpression(t *testing.T) {
	policy, err := NewCelSelectionPolicy(`name.contains("广州")`)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	ranked, err := policy.Rank(context.Background(), "P1", candidates())
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if ranked[0].Warehouse.ID != "WH-GZ" {
		t.Fatalf("first = %s, want WH-GZ", ranked[0].Warehouse.ID)
	}
}

func TestCelPolicyRejectsBadExpression(t *testing.T) {
	if _, err := NewCelSelectionPolicy(`available +`); err == nil {
		t.Fatal("expected compile error for malformed expression")
	}
	if _, err := NewCelSelectionPolicy(`unknownVar > 3`); err == nil {
		t.Fatal("expected compile error for undeclared variable")
	}
}
