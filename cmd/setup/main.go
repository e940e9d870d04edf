package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"music-ledger-go/internal/api"
	"music-ledger-go/internal/common"
	"music-ledger-go/internal/config"
	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"go.uber.org/zap"
)

// seedSuperAdmin registers phone as a super admin unless it already exists
func seedSuperAdmin(ctx context.Context, ledger *api.LedgerService, phone, password string) error {
	user, err := ledger.Register(ctx, models.RegisterRequest{Phone: phone, Password: password, DisplayName: "Super Admin"})
	if errors.Is(err, store.ErrDuplicateUser) {
		zap.L().Info("Super admin already exists", zap.String("phone", phone))
		return nil
	}
	if err != nil {
		return err
	}
	zap.L().Info("Created super admin", zap.String("id", user.Id), zap.String("phone", user.Phone))
	return nil
}

func seedPaymentInfo(ctx context.Context, ledger *api.LedgerService, method, accountName, accountNumber string) error {
	info, err := ledger.UpdatePaymentInfo(ctx, "setup", method, accountName, accountNumber)
	if err != nil {
		return err
	}
	zap.L().Info("Stored payment info",
		zap.String("method", info.Method),
		zap.String("account_name", info.AccountName))
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	phoneFlag := flag.String("admin-phone", "", "Phone of the super admin to seed (optional)")
	passwordFlag := flag.String("admin-password", "", "Password for the seeded super admin")
	methodFlag := flag.String("payment-method", "", "Payment method to configure (optional)")
	accountNameFlag := flag.String("account-name", "", "Receiving account name for -payment-method")
	accountNumberFlag := flag.String("account-number", "", "Receiving account number for -payment-method")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	// Opening the database creates the schema.
	zap.L().Info("Initializing database", zap.String("driver", cfg.Database.Driver))
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	superAdmins := cfg.Auth.SuperAdminPhones
	if *phoneFlag != "" {
		superAdmins = append(superAdmins, *phoneFlag)
	}
	ledger := api.NewLedgerService(services.DbService, services.Pricing, nil, superAdmins)

	if *phoneFlag != "" {
		if err := seedSuperAdmin(ctx, ledger, *phoneFlag, *passwordFlag); err != nil {
			zap.L().Fatal("Failed to seed super admin", zap.Error(err))
		}
	}

	if *methodFlag != "" {
		if err := seedPaymentInfo(ctx, ledger, *methodFlag, *accountNameFlag, *accountNumberFlag); err != nil {
			zap.L().Fatal("Failed to seed payment info", zap.Error(err))
		}
	}

	infos, err := ledger.ListPaymentInfo(ctx)
	if err != nil {
		zap.L().Fatal("Failed to list payment info", zap.Error(err))
	}

	report := common.NewReport(os.Stdout, common.DefaultWidth)
	report.Header("SETUP COMPLETE")
	fmt.Printf("Database: %s\n", cfg.Database.Driver)
	fmt.Printf("Payment methods accepted: %v\n", services.Pricing.PaymentMethods)
	for i, info := range infos {
		report.Item(i == len(infos)-1, "%-12s %s (%s)", info.Method, info.AccountName, info.AccountNumber)
	}
	report.Separator("=")
}
