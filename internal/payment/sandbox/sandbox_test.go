package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func validInput() ChargeInput {
	next := time.Now().AddDate(1, 0, 0)
	return ChargeInput{
		OrderID:  1,
		Amount:   "99.00",
		Last4:    "4242",
		ExpMonth: int(next.Month()),
		ExpYear:  next.Year() % 100,
	}
}

func TestChargeApproves(t *testing.T) {
	result, err := Charge(context.Background(), &Config{}, validInput())
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	if !result.Approved() {
		t.Fatalf("expected approval, got %s (%s)", result.Status, result.Reason)
	}
	if result.TransactionRef == "" {
		t.Fatalf("expected transaction ref")
	}
}

func TestChargeDeclinesConfiguredCard(t *testing.T) {
	input := validInput()
	input.Last4 = "0002"
	result, err := Charge(context.Background(), &Config{DeclineLast4: []string{" 0002 "}}, input)
	if err != nil {
		t.Fatalf("decline should not be a transport error: %v", err)
	}
	if result.Approved() || result.Reason == "" {
		t.Fatalf("expected decline with reason, got %+v", result)
	}
}

func TestChargeDeclinesOverLimit(t *testing.T) {
	input := validInput()
	input.Amount = "10000.00"
	result, err := Charge(context.Background(), &Config{MaxAmount: "500"}, input)
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	if result.Approved() {
		t.Fatalf("expected decline over limit")
	}
}

func TestChargeRejectsInvalidInput(t *testing.T) {
	input := validInput()
	input.Amount = "0"
	if _, err := Charge(context.Background(), &Config{}, input); !errors.Is(err, ErrInputInvalid) {
		t.Fatalf("expected ErrInputInvalid, got %v", err)
	}
}

func TestChargeHonorsContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := Charge(ctx, &Config{Latency: time.Second}, validInput())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if isExpired(3, 26, now) {
		t.Fatalf("card expiring this month is still valid")
	}
	if !isExpired(2, 26, now) {
		t.Fatalf("card from last month should be expired")
	}
	if !isExpired(13, 30, now) {
		t.Fatalf("invalid month should be expired")
	}
}
