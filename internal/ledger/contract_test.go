package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// runContract exercises the behaviour every backend must share.
func runContract(t *testing.T, newLedger func(t *testing.T, ceiling int64) Ledger) {
	t.Run("ConcurrentCreditsSumExactly", func(t *testing.T) {
		l := newLedger(t, MaxAmount)
		ctx := context.Background()
		acct := Account{UserID: "u1", LocationID: "l1"}

		const workers = 25
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := l.Credit(ctx, Posting{Account: acct, Amount: int64(i + 1), Key: fmt.Sprintf("deposit:pi_%d", i)}); err != nil {
					t.Errorf("credit %d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()

		balance, err := l.Balance(ctx, acct)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		want := int64(workers * (workers + 1) / 2)
		if balance != want {
			t.Fatalf("expected balance %d, got %d", want, balance)
		}
	})

	t.Run("TwoConcurrentCreditsNoLostUpdate", func(t *testing.T) {
		l := newLedger(t, MaxAmount)
		ctx := context.Background()
		acct := Account{UserID: "u1", LocationID: "l1"}

		var wg sync.WaitGroup
		for i, amount := range []int64{200, 300} {
			wg.Add(1)
			go func(i int, amount int64) {
				defer wg.Done()
				if _, err := l.Credit(ctx, Posting{Account: acct, Amount: amount, Key: fmt.Sprintf("deposit:pi_%d", i)}); err != nil {
					t.Errorf("credit %d: %v", amount, err)
				}
			}(i, amount)
		}
		wg.Wait()

		if balance, _ := l.Balance(ctx, acct); balance != 500 {
			t.Fatalf("expected 500, got %d", balance)
		}
	})

	t.Run("RepeatedKeyCreditsOnce", func(t *testing.T) {
		l := newLedger(t, MaxAmount)
		ctx := context.Background()
		acct := Account{UserID: "u1", LocationID: "l1"}
		p := Posting{Account: acct, Amount: 500, Key: "deposit:pi_1"}

		first, err := l.Credit(ctx, p)
		if err != nil {
			t.Fatalf("first credit: %v", err)
		}
		if first.Status != StatusApplied || first.Balance != 500 {
			t.Fatalf("unexpected first outcome: %+v", first)
		}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out, err := l.Credit(ctx, p)
				if err != nil {
					t.Errorf("replayed credit: %v", err)
					return
				}
				if out.Status != StatusAlreadyApplied {
					t.Errorf("expected already applied, got %s", out.Status)
				}
			}()
		}
		wg.Wait()

		if balance, _ := l.Balance(ctx, acct); balance != 500 {
			t.Fatalf("expected 500 after replays, got %d", balance)
		}
	})

	t.Run("DebitInsufficientLeavesBalance", func(t *testing.T) {
		l := newLedger(t, MaxAmount)
		ctx := context.Background()
		acct := Account{UserID: "u1", LocationID: "l1"}
		if _, err := l.Credit(ctx, Posting{Account: acct, Amount: 300, Key: "deposit:pi_1"}); err != nil {
			t.Fatalf("credit: %v", err)
		}

		out, err := l.Debit(ctx, Posting{Account: acct, Amount: 500, Key: "purchase:r1"})
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("expected insufficient funds, got %v", err)
		}
		if out.Balance != 300 {
			t.Fatalf("expected reported balance 300, got %d", out.Balance)
		}
		if balance, _ := l.Balance(ctx, acct); balance != 300 {
			t.Fatalf("expected balance to stay 300, got %d", balance)
		}

		// the denied key is not consumed, so the same request can succeed after a top-up
		if _, err := l.Credit(ctx, Posting{Account: acct, Amount: 200, Key: "deposit:pi_2"}); err != nil {
			t.Fatalf("top-up: %v", err)
		}
		out, err = l.Debit(ctx, Posting{Account: acct, Amount: 500, Key: "purchase:r1"})
		if err != nil {
			t.Fatalf("retry debit: %v", err)
		}
		if out.Status != StatusApplied || out.Balance != 0 {
			t.Fatalf("unexpected retry outcome: %+v", out)
		}
	})

	t.Run("DebitOnFreshAccountIsInsufficient", func(t *testing.T) {
		l := newLedger(t, MaxAmount)
		_, err := l.Debit(context.Background(), Posting{Account: Account{UserID: "u9", LocationID: "l9"}, Amount: 1, Key: "purchase:r9"})
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("expected insufficient funds, got %v", err)
		}
	})

	t.Run("ConcurrentDebitsNeverOverdraw", func(t *testing.T) {
		l := newLedger(t, MaxAmount)
		ctx := context.Background()
		acct := Account{UserID: "u1", LocationID: "l1"}
		if _, err := l.Credit(ctx, Posting{Account: acct, Amount: 1_000, Key: "deposit:seed"}); err != nil {
			t.Fatalf("seed credit: %v", err)
		}

		const workers = 20
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < workers; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				_, err := l.Debit(ctx, Posting{Account: acct, Amount: 150, Key: fmt.Sprintf("purchase:r%d", i)})
				switch {
				case err == nil:
					mu.Lock()
					succeeded++
					mu.Unlock()
				case errors.Is(err, ErrInsufficientFunds):
				default:
					t.Errorf("debit %d: %v", i, err)
				}
			}(i)
			go func(i int) {
				defer wg.Done()
				if i%5 != 0 {
					return
				}
				if _, err := l.Credit(ctx, Posting{Account: acct, Amount: 50, Key: fmt.Sprintf("deposit:late_%d", i)}); err != nil {
					t.Errorf("credit %d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()

		balance, err := l.Balance(ctx, acct)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if balance < 0 {
			t.Fatalf("balance went negative: %d", balance)
		}
		credited := int64(1_000 + 4*50)
		if want := credited - int64(succeeded)*150; balance != want {
			t.Fatalf("expected balance %d after %d debits, got %d", want, succeeded, balance)
		}
	})

	t.Run("CreditThenDebitRoundTrip", func(t *testing.T) {
		l := newLedger(t, MaxAmount)
		ctx := context.Background()
		acct := Account{UserID: "u1", LocationID: "l1"}
		if _, err := l.Credit(ctx, Posting{Account: acct, Amount: 700, Key: "deposit:base"}); err != nil {
			t.Fatalf("base credit: %v", err)
		}
		before, _ := l.Balance(ctx, acct)

		if _, err := l.Credit(ctx, Posting{Account: acct, Amount: 1_234, Key: "deposit:x"}); err != nil {
			t.Fatalf("credit: %v", err)
		}
		if _, err := l.Debit(ctx, Posting{Account: acct, Amount: 1_234, Key: "purchase:x"}); err != nil {
			t.Fatalf("debit: %v", err)
		}
		if after, _ := l.Balance(ctx, acct); after != before {
			t.Fatalf("expected round trip to %d, got %d", before, after)
		}
	})

	t.Run("AccountsAreIndependent", func(t *testing.T) {
		l := newLedger(t, MaxAmount)
		ctx := context.Background()
		a := Account{UserID: "u1", LocationID: "l1"}
		b := Account{UserID: "u1", LocationID: "l2"}
		if _, err := l.Credit(ctx, Posting{Account: a, Amount: 100, Key: "deposit:a"}); err != nil {
			t.Fatalf("credit a: %v", err)
		}
		if _, err := l.Credit(ctx, Posting{Account: b, Amount: 40, Key: "deposit:b"}); err != nil {
			t.Fatalf("credit b: %v", err)
		}
		all, err := l.Balances(ctx)
		if err != nil {
			t.Fatalf("balances: %v", err)
		}
		if all[a] != 100 || all[b] != 40 || len(all) != 2 {
			t.Fatalf("unexpected balances: %v", all)
		}
	})

	t.Run("RejectsInvalidPostings", func(t *testing.T) {
		l := newLedger(t, MaxAmount)
		ctx := context.Background()
		acct := Account{UserID: "u1", LocationID: "l1"}
		cases := []struct {
			name string
			p    Posting
			want error
		}{
			{"zero amount", Posting{Account: acct, Amount: 0, Key: "k"}, ErrInvalidAmount},
			{"negative amount", Posting{Account: acct, Amount: -5, Key: "k"}, ErrInvalidAmount},
			{"missing key", Posting{Account: acct, Amount: 5}, ErrMissingKey},
			{"missing location", Posting{Account: Account{UserID: "u1"}, Amount: 5, Key: "k"}, ErrMissingAccount},
		}
		for _, tc := range cases {
			if _, err := l.Credit(ctx, tc.p); !errors.Is(err, tc.want) {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
			}
		}
	})

	t.Run("CeilingBoundary", func(t *testing.T) {
		const ceiling = int64(10_000)
		l := newLedger(t, ceiling)
		ctx := context.Background()
		acct := Account{UserID: "u1", LocationID: "l1"}

		if _, err := l.Credit(ctx, Posting{Account: acct, Amount: ceiling + 1, Key: "deposit:over"}); !errors.Is(err, ErrAmountAboveCeiling) {
			t.Fatalf("expected ErrAmountAboveCeiling, got %v", err)
		}
		out, err := l.Credit(ctx, Posting{Account: acct, Amount: ceiling, Key: "deposit:exact"})
		if err != nil {
			t.Fatalf("credit at ceiling: %v", err)
		}
		if out.Balance != ceiling {
			t.Fatalf("expected balance %d, got %d", ceiling, out.Balance)
		}
		if _, err := l.Credit(ctx, Posting{Account: acct, Amount: 1, Key: "deposit:one_more"}); !errors.Is(err, ErrBalanceOverflow) {
			t.Fatalf("expected ErrBalanceOverflow, got %v", err)
		}
		if balance, _ := l.Balance(ctx, acct); balance != ceiling {
			t.Fatalf("overflow changed balance to %d", balance)
		}
	})

	t.Run("MaxAmountBoundary", func(t *testing.T) {
		l := newLedger(t, MaxAmount)
		ctx := context.Background()
		acct := Account{UserID: "u1", LocationID: "l1"}
		if _, err := l.Credit(ctx, Posting{Account: acct, Amount: MaxAmount, Key: "deposit:max"}); err != nil {
			t.Fatalf("credit at MaxAmount: %v", err)
		}
		if _, err := l.Credit(ctx, Posting{Account: acct, Amount: MaxAmount + 1, Key: "deposit:max_plus"}); !errors.Is(err, ErrAmountAboveCeiling) {
			t.Fatalf("expected ErrAmountAboveCeiling, got %v", err)
		}
		if balance, _ := l.Balance(ctx, acct); balance != MaxAmount {
			t.Fatalf("expected %d, got %d", MaxAmount, balance)
		}
	})
}

func TestInMemoryLedger(t *testing.T) {
	runContract(t, func(_ *testing.T, ceiling int64) Ledger {
		return NewInMemoryWithCeiling(ceiling)
	})
}

func TestValidateCeiling(t *testing.T) {
	if err := ValidateCeiling(MaxAmount); err != nil {
		t.Fatalf("MaxAmount should be valid: %v", err)
	}
	if err := ValidateCeiling(MaxAmount + 1); err == nil {
		t.Fatal("expected error above MaxAmount")
	}
	if err := ValidateCeiling(0); err == nil {
		t.Fatal("expected error for zero ceiling")
	}
}

func TestAccountFieldRoundTrip(t *testing.T) {
	acct := Account{UserID: "user/with/slashes", LocationID: "loc 1%"}
	got, err := parseField(acct.field())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != acct {
		t.Fatalf("expected %+v, got %+v", acct, got)
	}
}
