package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"music-ledger-go/internal/api"
	"music-ledger-go/internal/common"
	"music-ledger-go/internal/config"
	"music-ledger-go/internal/models"

	"go.uber.org/zap"
)

func printPending(ctx context.Context, ledger *api.LedgerService, txType string) {
	txns, err := ledger.ListAllTransactions(ctx, models.TransactionFilter{
		Type:   txType,
		Status: models.TransactionStatusPending,
		Limit:  100,
	})
	if err != nil {
		zap.L().Fatal("Failed to list pending transactions", zap.Error(err))
	}

	report := common.NewReport(os.Stdout, common.WideWidth)
	report.Header(fmt.Sprintf("PENDING TRANSACTIONS (%d)", len(txns)))
	for i, t := range txns {
		report.Item(i == len(txns)-1, "%-36s %-13s %16s  %-12s user=%s  %s",
			t.Id, t.Type, common.FormatAmount(t.Amount), t.PaymentMethod,
			common.ShortId(t.UserId), t.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}
	report.Separator("=")
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	listFlag := flag.Bool("list", false, "List pending transactions and exit")
	typeFlag := flag.String("type", "", "Filter -list by type: recharge, withdraw, vip_purchase")
	idFlag := flag.String("id", "", "Transaction id to settle")
	statusFlag := flag.String("status", "", "Outcome: completed or failed")
	notesFlag := flag.String("notes", "", "Processing notes recorded with the settlement")
	adminFlag := flag.String("admin-phone", "", "Phone of the admin performing the settlement (required)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	ledger := api.NewLedgerService(services.DbService, services.Pricing, nil, cfg.Auth.SuperAdminPhones)

	if *listFlag {
		printPending(ctx, ledger, *typeFlag)
		return
	}

	if *idFlag == "" || *statusFlag == "" || *adminFlag == "" {
		zap.L().Fatal("Flags required: --id, --status and --admin-phone")
	}

	admin, err := services.DbService.GetUserByPhone(ctx, *adminFlag)
	if err != nil {
		zap.L().Fatal("Failed to find admin", zap.String("phone", *adminFlag), zap.Error(err))
	}
	if !admin.IsAdmin() || !admin.IsActive {
		zap.L().Fatal("User is not an active admin", zap.String("phone", *adminFlag), zap.String("role", admin.Role))
	}

	txn, err := ledger.Settle(ctx, admin.Id, *idFlag, models.SettleRequest{Status: *statusFlag, Notes: *notesFlag})
	if err != nil {
		zap.L().Fatal("Settlement failed", zap.String("transaction_id", *idFlag), zap.Error(err))
	}

	report := common.NewReport(os.Stdout, common.DefaultWidth)
	report.Header("TRANSACTION SETTLED")
	fmt.Printf("ID:        %s\n", txn.Id)
	fmt.Printf("Type:      %s\n", txn.Type)
	fmt.Printf("Amount:    %s\n", common.FormatAmount(txn.Amount))
	fmt.Printf("Status:    %s\n", txn.Status)
	fmt.Printf("Reference: %s\n", txn.ReferenceId)
	if txn.BalanceAfter.Valid {
		fmt.Printf("Balance:   %s\n", common.FormatAmount(txn.BalanceAfter.Decimal))
	}
	report.Separator("=")
}
