package deposit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/loyalty-pay/balance_ledger/internal/ledger"
	"github.com/loyalty-pay/balance_ledger/internal/logging"
)

func TestRecordDepositOncePerPayment(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	rec := NewRecorder(repo, ledger.MaxAmount, logging.Discard())

	first, err := rec.RecordDeposit(ctx, "pi_1", "u1", "loc1", 500)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.Status != StatusRecorded {
		t.Fatalf("expected recorded, got %s", first.Status)
	}

	second, err := rec.RecordDeposit(ctx, "pi_1", "u1", "loc1", 500)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.Status != StatusAlreadyRecorded {
		t.Fatalf("expected already recorded, got %s", second.Status)
	}
	if second.Deposit.ID != first.Deposit.ID {
		t.Fatalf("replay returned a different row: %s vs %s", second.Deposit.ID, first.Deposit.ID)
	}

	totals, err := repo.TotalsByAccount(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if got := totals[ledger.Account{UserID: "u1", LocationID: "loc1"}]; got != 500 {
		t.Fatalf("expected 500 deposited, got %d", got)
	}
}

func TestRecordDepositStoredRowWins(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(NewMemoryRepository(), 0, logging.Discard())

	if _, err := rec.RecordDeposit(ctx, "pi_2", "u1", "loc1", 500); err != nil {
		t.Fatalf("record: %v", err)
	}
	out, err := rec.RecordDeposit(ctx, "pi_2", "u2", "loc9", 900)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if out.Status != StatusAlreadyRecorded {
		t.Fatalf("expected already recorded, got %s", out.Status)
	}
	if out.Deposit.UserID != "u1" || out.Deposit.LocationID != "loc1" || out.Deposit.Amount != 500 {
		t.Fatalf("expected stored row, got %+v", out.Deposit)
	}
}

func TestRecordDepositValidation(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(NewMemoryRepository(), 10_000, logging.Discard())

	cases := []struct {
		name     string
		pid      string
		user     string
		location string
		amount   int64
		want     error
	}{
		{"missing payment id", "", "u1", "loc1", 100, ErrMissingPaymentID},
		{"missing location", "pi_3", "u1", "", 100, ErrMetadataIncomplete},
		{"missing user", "pi_3", "", "loc1", 100, ErrMetadataIncomplete},
		{"zero amount", "pi_3", "u1", "loc1", 0, ErrInvalidAmount},
		{"negative amount", "pi_3", "u1", "loc1", -5, ErrInvalidAmount},
		{"above ceiling", "pi_3", "u1", "loc1", 10_001, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := rec.RecordDeposit(ctx, tc.pid, tc.user, tc.location, tc.amount)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := rec.RecordDeposit(ctx, "pi_ceiling", "u1", "loc1", 10_000); err != nil {
		t.Fatalf("ceiling amount should be accepted: %v", err)
	}
}

func TestRecordDepositConcurrentDeliveries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	rec := NewRecorder(repo, ledger.MaxAmount, logging.Discard())

	var wg sync.WaitGroup
	var mu sync.Mutex
	recorded := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := rec.RecordDeposit(ctx, "pi_race", "u1", "loc1", 250)
			if err != nil {
				t.Errorf("record: %v", err)
				return
			}
			if out.Status == StatusRecorded {
				mu.Lock()
				recorded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if recorded != 1 {
		t.Fatalf("expected exactly one recorded delivery, got %d", recorded)
	}
}
