package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func tipParams(from, to string, amount, fee decimal.Decimal) store.TipParams {
	return store.TipParams{
		FromUserId:  from,
		ToUserId:    to,
		Amount:      amount,
		PlatformFee: fee,
		NetAmount:   amount.Sub(fee),
		ReferenceId: newReference("TIP"),
	}
}

func TestSendTip_MovesNetAmount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fan := createTestUser(t, service, "0944000001")
	dj := createTestUser(t, service, "0944000002")
	fundUser(t, service, fan.Id, decimal.NewFromInt(1000))

	params := tipParams(fan.Id, dj.Id, decimal.NewFromInt(100), decimal.NewFromInt(10))
	params.TrackId = "track-42"
	params.Message = "great set"

	tip, txn, err := service.SendTip(ctx, params)
	if err != nil {
		t.Fatalf("SendTip failed: %v", err)
	}

	assertBalance(t, service, fan.Id, decimal.NewFromInt(900))
	assertBalance(t, service, dj.Id, decimal.NewFromInt(90))

	if !tip.NetAmount.Equal(decimal.NewFromInt(90)) || !tip.PlatformFee.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Unexpected tip amounts: net=%s fee=%s", tip.NetAmount.String(), tip.PlatformFee.String())
	}
	if tip.TrackId == nil || *tip.TrackId != "track-42" {
		t.Errorf("Expected track id to be stored, got %v", tip.TrackId)
	}
	if tip.TransactionId != txn.Id {
		t.Errorf("Expected tip to reference transaction %s, got %s", txn.Id, tip.TransactionId)
	}

	if txn.Type != models.TransactionTypeTip || txn.Status != models.TransactionStatusCompleted {
		t.Errorf("Expected completed tip transaction, got %s/%s", txn.Type, txn.Status)
	}
	if txn.UserId != fan.Id || !txn.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected sender-side transaction of 100, got user %s amount %s", txn.UserId, txn.Amount.String())
	}
	if !txn.BalanceAfter.Valid || !txn.BalanceAfter.Decimal.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Expected balance_after 900, got %v", txn.BalanceAfter)
	}

	journal, err := service.listJournalEntries(ctx, txn.Id)
	if err != nil {
		t.Fatalf("listJournalEntries failed: %v", err)
	}
	if len(journal) != 3 {
		t.Errorf("Expected 3 journal entries including the fee, got %d", len(journal))
	}

	for _, id := range []string{fan.Id, dj.Id} {
		if err := service.ReconcileUserBalance(ctx, id); err != nil {
			t.Errorf("Reconcile failed for %s: %v", id, err)
		}
	}
}

func TestSendTip_ZeroFeeSkipsRevenueLine(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fan := createTestUser(t, service, "0944000003")
	dj := createTestUser(t, service, "0944000004")
	fundUser(t, service, fan.Id, decimal.NewFromInt(5))

	_, txn, err := service.SendTip(ctx, tipParams(fan.Id, dj.Id, decimal.RequireFromString("0.04"), decimal.Zero))
	if err != nil {
		t.Fatalf("SendTip failed: %v", err)
	}

	journal, err := service.listJournalEntries(ctx, txn.Id)
	if err != nil {
		t.Fatalf("listJournalEntries failed: %v", err)
	}
	if len(journal) != 2 {
		t.Errorf("Expected 2 journal entries without a fee, got %d", len(journal))
	}
}

func TestSendTip_InsufficientFundsChangesNothing(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fan := createTestUser(t, service, "0944000005")
	dj := createTestUser(t, service, "0944000006")
	fundUser(t, service, fan.Id, decimal.NewFromInt(50))

	_, _, err := service.SendTip(ctx, tipParams(fan.Id, dj.Id, decimal.NewFromInt(100), decimal.NewFromInt(10)))
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected insufficient funds error, got: %v", err)
	}

	assertBalance(t, service, fan.Id, decimal.NewFromInt(50))
	assertBalance(t, service, dj.Id, decimal.Zero)

	tips, err := service.ListTransactions(ctx, models.TransactionFilter{UserId: fan.Id, Type: models.TransactionTypeTip})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(tips) != 0 {
		t.Errorf("Expected no tip transaction after rollback, got %d", len(tips))
	}
}

func TestSendTip_InvalidTargets(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fan := createTestUser(t, service, "0944000007")
	fundUser(t, service, fan.Id, decimal.NewFromInt(100))

	_, _, err := service.SendTip(ctx, tipParams(fan.Id, fan.Id, decimal.NewFromInt(10), decimal.NewFromInt(1)))
	if !errors.Is(err, store.ErrInvalidTarget) {
		t.Errorf("Expected invalid target for self-tip, got: %v", err)
	}

	// Both sort orders relative to the sender's id
	for _, missing := range []string{"0", "zzzzzzzz-" + uuid.New().String()} {
		_, _, err := service.SendTip(ctx, tipParams(fan.Id, missing, decimal.NewFromInt(10), decimal.NewFromInt(1)))
		if !errors.Is(err, store.ErrTargetNotFound) {
			t.Errorf("Expected target not found for %q, got: %v", missing, err)
		}
	}

	disabled := createTestUser(t, service, "0944000008")
	if _, err := service.UpdateUserStatus(ctx, "admin", disabled.Id, false); err != nil {
		t.Fatalf("UpdateUserStatus failed: %v", err)
	}
	_, _, err = service.SendTip(ctx, tipParams(fan.Id, disabled.Id, decimal.NewFromInt(10), decimal.NewFromInt(1)))
	if !errors.Is(err, store.ErrInvalidTarget) {
		t.Errorf("Expected invalid target for disabled recipient, got: %v", err)
	}

	assertBalance(t, service, fan.Id, decimal.NewFromInt(100))
}

func TestSendTip_UnknownSender(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	dj := createTestUser(t, service, "0944000009")
	_, _, err := service.SendTip(context.Background(), tipParams("no-such-sender", dj.Id, decimal.NewFromInt(10), decimal.NewFromInt(1)))
	if !errors.Is(err, store.ErrUserNotFound) || errors.Is(err, store.ErrTargetNotFound) {
		t.Errorf("Expected user not found for sender, got: %v", err)
	}
}

func TestSendTip_AmountsMustAddUp(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	fan := createTestUser(t, service, "0944000010")
	dj := createTestUser(t, service, "0944000011")

	params := tipParams(fan.Id, dj.Id, decimal.NewFromInt(10), decimal.NewFromInt(1))
	params.NetAmount = decimal.NewFromInt(10)
	if _, _, err := service.SendTip(context.Background(), params); err == nil {
		t.Errorf("Expected error when fee and net do not sum to amount")
	}
}

func TestSendTip_ConcurrentOverdrawAttempts(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	fan := createTestUser(t, service, "0944000012")
	dj := createTestUser(t, service, "0944000013")
	fundUser(t, service, fan.Id, decimal.NewFromInt(100))

	const attempts = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := service.SendTip(context.Background(), tipParams(fan.Id, dj.Id, decimal.NewFromInt(10), decimal.NewFromInt(1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, store.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("Unexpected tip error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 || rejected != attempts-10 {
		t.Errorf("Expected 10 tips to succeed and %d to be rejected, got %d/%d", attempts-10, succeeded, rejected)
	}
	assertBalance(t, service, fan.Id, decimal.Zero)
	assertBalance(t, service, dj.Id, decimal.NewFromInt(90))
}

func TestSendTip_ConcurrentMixedTrafficConservesMoney(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	users := []*models.User{
		createTestUser(t, service, "0944000020"),
		createTestUser(t, service, "0944000021"),
		createTestUser(t, service, "0944000022"),
	}
	for _, u := range users {
		fundUser(t, service, u.Id, decimal.NewFromInt(500))
	}

	// Pending recharges settled concurrently with tips in both directions
	var pending []*models.Transaction
	for _, u := range users {
		pending = append(pending, requestRecharge(t, service, u.Id, decimal.NewFromInt(100)))
	}

	var wg sync.WaitGroup
	for round := 0; round < 10; round++ {
		for i := range users {
			from, to := users[i], users[(i+1)%len(users)]
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _, err := service.SendTip(ctx, tipParams(from.Id, to.Id, decimal.NewFromInt(20), decimal.NewFromInt(2)))
				if err != nil && !errors.Is(err, store.ErrInsufficientFunds) {
					t.Errorf("Unexpected tip error: %v", err)
				}
			}()
			go func() {
				defer wg.Done()
				_, _, err := service.SendTip(ctx, tipParams(to.Id, from.Id, decimal.NewFromInt(15), decimal.RequireFromString("1.50")))
				if err != nil && !errors.Is(err, store.ErrInsufficientFunds) {
					t.Errorf("Unexpected tip error: %v", err)
				}
			}()
		}
	}
	for _, txn := range pending {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := service.Settle(ctx, store.SettleParams{TransactionId: id, Outcome: "completed", AdminId: "admin"}); err != nil {
				t.Errorf("Unexpected settle error: %v", err)
			}
		}(txn.Id)
	}
	wg.Wait()

	result, err := service.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	if len(result.Mismatched) != 0 {
		t.Errorf("Expected no mismatches after concurrent traffic, got %v", result.Mismatched)
	}

	// Every unit is either in a wallet or was taken as a fee
	var walletTotal decimal.Decimal
	for _, u := range users {
		balance, err := service.GetUserBalance(ctx, u.Id)
		if err != nil {
			t.Fatalf("GetUserBalance failed: %v", err)
		}
		if balance.IsNegative() {
			t.Errorf("Balance of %s went negative: %s", u.Id, balance.String())
		}
		walletTotal = walletTotal.Add(balance)
	}

	var fees []decimal.Decimal
	if err := service.db.SelectContext(ctx, &fees, service.q(`SELECT platform_fee FROM tips`)); err != nil {
		t.Fatalf("Failed to load fees: %v", err)
	}
	feeTotal := decimal.Sum(decimal.Zero, fees...)

	funded := decimal.NewFromInt(int64(len(users)) * 600)
	if !walletTotal.Add(feeTotal).Equal(funded) {
		t.Errorf("Expected wallets plus fees to equal %s, got %s + %s", funded.String(), walletTotal.String(), feeTotal.String())
	}
}
