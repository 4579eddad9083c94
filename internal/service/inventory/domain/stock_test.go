package domain

import (
	"errors"
	"testing"
)

func newRecord(onHand, reserved int) *StockRecord {
	return &StockRecord{
		ProductID:   "P1",
		WarehouseID: "W1",
		OnHand:      onHand,
		Reserved:    reserved,
	}
}

func TestReserve(t *testing.T) {
	rec := newRecord(10, 3)

	if got := rec.Available(); got != 7 {
		t.Fatalf("Available() = %d, want 7", got)
	}

	if err := rec.Reserve(7); err != nil {
		t.Fatalf("Reserve(7) failed: %v", err)
	}
	if rec.Reserved != 10 || rec.OnHand != 10 {
		t.Fatalf("after reserve: onHand=%d reserved=%d, want 10/10", rec.OnHand, rec.Reserved)
	}
	if rec.Available() != 0 {
		t.Fatalf("Available() = %d, want 0", rec.Available())
	}

	err := rec.Reserve(1)
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Reserve(1) on empty availability: got %v, want InsufficientStockError", err)
	}
	if insufficient.Available != 0 || insufficient.Requested != 1 {
		t.Fatalf("error payload: available=%d requested=%d", insufficient.Available, insufficient.Requested)
	}
	// 失败的预占不能有副作用
	if rec.Reserved != 10 {
		t.Fatalf("failed reserve mutated record: reserved=%d", rec.Reserved)
	}
}

func TestReserveRejectsNonPositive(t *testing.T) {
	rec := newRecord(10, 0)
	for _, qty := range []int{0, -5} {
		if err := rec.Reserve(qty); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("Reserve(%d) = %v, want ErrInvalidQuantity", qty, err)
		}
	}
}

func TestConfirmReservation(t *testing.T) {
	rec := newRecord(10, 4)

	if err := rec.ConfirmReservation(4); err != nil {
		t.Fatalf("ConfirmReservation(4) failed: %v", err)
	}
	if rec.OnHand != 6 || rec.Reserved != 0 {
		t.Fatalf("after confirm: onHand=%d reserved=%d, want 6/0", rec.OnHand, rec.Reserved)
	}

	// 重复确认必须被拒绝
	err := rec.ConfirmReservation(4)
	var invalid *InvalidReservationError
	if !errors.As(err, &invalid) {
		t.Fatalf("double confirm: got %v, want InvalidReservationError", err)
	}
	if rec.OnHand != 6 {
		t.Fatalf("failed confirm mutated onHand: %d", rec.OnHand)
	}
}

func TestReleaseReservation(t *testing.T) {
	rec := newRecord(10, 4)

	if err := rec.ReleaseReservation(4); err != nil {
		t.Fatalf("ReleaseReservation(4) failed: %v", err)
	}
	// 释放只动 Reserved，不动 OnHand
	if rec.OnHand != 10 || rec.Reserved != 0 {
		t.Fatalf("after release: onHand=%d reserved=%d, want 10/0", rec.OnHand, rec.Reserved)
	}

	if err := rec.ReleaseReservation(1); !IsInvalidReservation(err) {
		t.Fatalf("release beyond reserved: got %v, want InvalidReservationError", err)
	}
}

func TestConfirmXorRelease(t *testing.T) {
	// 一笔预占要么被确认要么被释放，不能两者都发生
	rec := newRecord(10, 5)
	if err := rec.ConfirmReservation(5); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if err := rec.ReleaseReservation(5); !IsInvalidReservation(err) {
		t.Fatalf("release after confirm: got %v, want InvalidReservationError", err)
	}
}

func TestAddOnHand(t *testing.T) {
	rec := newRecord(10, 10)
	if err := rec.AddOnHand(5); err != nil {
		t.Fatalf("AddOnHand(5) failed: %v", err)
	}
	if rec.OnHand != 15 || rec.Available() != 5 {
		t.Fatalf("after replenish: onHand=%d available=%d", rec.OnHand, rec.Available())
	}
	if err := rec.AddOnHand(0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("AddOnHand(0) = %v, want ErrInvalidQuantity", err)
	}
}
