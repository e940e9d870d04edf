/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"

	"music-ledger-go/internal/api"
	"music-ledger-go/internal/common"
	"music-ledger-go/internal/config"
	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"

	"go.uber.org/zap"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

func validatePhone(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone cannot be empty")
	}
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid phone format: %s", phone)
	}
	return nil
}

func validateRole(role string) error {
	switch role {
	case models.RoleUser, models.RoleDj, models.RoleAdmin, models.RoleSuperAdmin:
		return nil
	}
	return fmt.Errorf("unknown role %q", role)
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	phoneFlag := flag.String("phone", "", "User's phone number (required)")
	passwordFlag := flag.String("password", "", "Initial password (required)")
	nameFlag := flag.String("name", "", "Display name (defaults to the phone)")
	roleFlag := flag.String("role", models.RoleUser, "Role: user, dj, admin or super_admin")
	flag.Parse()

	if *phoneFlag == "" || *passwordFlag == "" {
		zap.L().Fatal("Both flags are required: --phone and --password")
	}
	if err := validatePhone(*phoneFlag); err != nil {
		zap.L().Fatal("Invalid phone", zap.Error(err))
	}
	if err := validateRole(*roleFlag); err != nil {
		zap.L().Fatal("Invalid role", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var superAdmins []string
	if *roleFlag == models.RoleSuperAdmin {
		superAdmins = []string{*phoneFlag}
	}
	ledger := api.NewLedgerService(services.DbService, services.Pricing, nil, superAdmins)

	zap.L().Info("Creating user", zap.String("phone", *phoneFlag), zap.String("role", *roleFlag))
	user, err := ledger.Register(ctx, models.RegisterRequest{Phone: *phoneFlag, Password: *passwordFlag, DisplayName: *nameFlag})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			zap.L().Fatal("User already exists with this phone", zap.String("phone", *phoneFlag))
		}
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	if *roleFlag == models.RoleDj || *roleFlag == models.RoleAdmin {
		user, err = ledger.UpdateUserRole(ctx, "adduser", user.Id, *roleFlag)
		if err != nil {
			zap.L().Fatal("Failed to assign role", zap.Error(err))
		}
	}

	report := common.NewReport(os.Stdout, common.DefaultWidth)
	report.Header("USER CREATED")
	fmt.Printf("ID:    %s\n", user.Id)
	fmt.Printf("Phone: %s\n", user.Phone)
	fmt.Printf("Name:  %s\n", user.DisplayName)
	fmt.Printf("Role:  %s\n", user.Role)
	report.Separator("=")
}
