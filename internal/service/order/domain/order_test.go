package domain

import (
	"errors"
	"testing"
)

func testLines() []OrderLine {
	return []OrderLine{
		{ProductID: "P1", Quantity: 2, UnitPrice: 49.9},
		{ProductID: "P2", Quantity: 1, UnitPrice: 100.2},
	}
}

func placedOrder(t *testing.T) *Order {
	t.Helper()
	order, _, err := NewOrder("order-1", "ON-1001", "user-1", "北京市朝阳区", testLines())
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}
	return order
}

func TestNewOrder(t *testing.T) {
	order, placed, err := NewOrder("order-1", "ON-1001", "user-1", "北京市朝阳区", testLines())
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	if order.Status != StatusPlaced {
		t.Fatalf("status = %s, want PLACED", order.Status)
	}
	if want := 2*49.9 + 100.2; order.TotalAmount != want {
		t.Fatalf("total = %v, want %v", order.TotalAmount, want)
	}
	for _, line := range order.Lines {
		if line.Reservation != ReservationHeld {
			t.Fatalf("line %s reservation = %s, want HELD", line.ProductID, line.Reservation)
		}
	}
	if placed.Kind() != StatusPlaced || placed.OrderID != order.ID || placed.TotalAmount != order.TotalAmount {
		t.Fatalf("placed event = %+v", placed)
	}
}

func TestNewOrderValidation(t *testing.T) {
	if _, _, err := NewOrder("order-1", "ON-1", "user-1", "addr", nil); !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("empty lines: got %v, want ErrEmptyOrder", err)
	}
	lines := []OrderLine{{ProductID: "P1", Quantity: 0, UnitPrice: 1}}
	if _, _, err := NewOrder("order-1", "ON-1", "user-1", "addr", lines); !errors.Is(err, ErrInvalidLine) {
		t.Fatalf("zero quantity: got %v, want ErrInvalidLine", err)
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPlaced, StatusConfirmed, true},
		{StatusPlaced, StatusCancelled, true},
		{StatusPlaced, StatusShipped, false},
		{StatusPlaced, StatusDelivered, false},
		{StatusConfirmed, StatusShipped, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false}, // 已发货不可取消
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCancelled, StatusCancelled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPlaced, StatusConfirmed, StatusShipped} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestShipMarksReservationsConfirmed(t *testing.T) {
	order := placedOrder(t)
	if _, err := order.Confirm(); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	shipped, err := order.Ship()
	if err != nil {
		t.Fatalf("Ship failed: %v", err)
	}
	for _, line := range order.Lines {
		if line.Reservation != ReservationConfirmed {
			t.Fatalf("line %s reservation = %s, want CONFIRMED", line.ProductID, line.Reservation)
		}
	}
	if len(order.HeldLines()) != 0 {
		t.Fatal("no lines should remain held after shipping")
	}
	if len(shipped.ConfirmedLines) != len(order.Lines) {
		t.Fatalf("shipped event carries %d lines, want %d", len(shipped.ConfirmedLines), len(order.Lines))
	}
}

func TestCancelReleasesHeldLines(t *testing.T) {
	order := placedOrder(t)
	cancelled, err := order.Cancel("用户主动取消")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Reason != "用户主动取消" || len(cancelled.ReleasedLines) != 2 {
		t.Fatalf("cancelled event = %+v", cancelled)
	}
	if order.Status != StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", order.Status)
	}
	if order.CancelReason != "用户主动取消" {
		t.Fatalf("cancel reason = %q", order.CancelReason)
	}
	for _, line := range order.Lines {
		if line.Reservation != ReservationReleased {
			t.Fatalf("line %s reservation = %s, want RELEASED", line.ProductID, line.Reservation)
		}
	}
}

func TestCancelAfterShipRejected(t *testing.T) {
	order := placedOrder(t)
	order.Confirm()
	order.Ship()

	_, err := order.Cancel("too late")
	var stateErr *InvalidOrderStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("got %v, want InvalidOrderStateError", err)
	}
	if stateErr.Current != StatusShipped || stateErr.Attempted != StatusCancelled {
		t.Fatalf("error payload: %+v", stateErr)
	}
	// 失败的迁移不能有副作用
	if order.Status != StatusShipped {
		t.Fatalf("status mutated to %s", order.Status)
	}
	for _, line := range order.Lines {
		if line.Reservation != ReservationConfirmed {
			t.Fatalf("line %s reservation mutated to %s", line.ProductID, line.Reservation)
		}
	}
}

func TestAssignWarehousesWriteOnce(t *testing.T) {
	order := placedOrder(t)
	order.AssignWarehouses(map[string]string{"P1": "W1", "P2": "W2"})
	order.AssignWarehouses(map[string]string{"P1": "W9", "P2": "W9"})

	if order.Lines[0].WarehouseID != "W1" || order.Lines[1].WarehouseID != "W2" {
		t.Fatalf("assignments overwritten: %+v", order.Lines)
	}
}
