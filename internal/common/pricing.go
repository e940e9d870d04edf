package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"music-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type vipPlanConfig struct {
	Price string `yaml:"price"`
	Days  int    `yaml:"days"`
}

type pricingConfig struct {
	TipFeeRate     string                   `yaml:"tip_fee_rate"`
	PaymentMethods []string                 `yaml:"payment_methods"`
	VipPlans       map[string]vipPlanConfig `yaml:"vip_plans"`
}

// DefaultPricing is used when no pricing file is present
func DefaultPricing() *models.Pricing {
	return &models.Pricing{
		TipFeeRate:     decimal.RequireFromString("0.10"),
		PaymentMethods: []string{"kpay", "kbz_banking"},
		VipPlans: map[string]models.VipPlan{
			"monthly": {Name: "monthly", Price: decimal.NewFromInt(10000), Duration: 30 * 24 * time.Hour},
			"yearly":  {Name: "yearly", Price: decimal.NewFromInt(100000), Duration: 365 * 24 * time.Hour},
		},
	}
}

// LoadPricing reads pricing from a yaml file. A missing file yields DefaultPricing.
func LoadPricing(pricingFile string) (*models.Pricing, error) {
	var pricingPath string
	if filepath.IsAbs(pricingFile) {
		pricingPath = pricingFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		pricingPath = filepath.Join(wd, pricingFile)
	}

	data, err := os.ReadFile(pricingPath)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("No pricing file found, using defaults", zap.String("path", pricingPath))
		return DefaultPricing(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", pricingFile, err)
	}

	return ParsePricing(data)
}

func ParsePricing(data []byte) (*models.Pricing, error) {
	var config pricingConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse pricing: %w", err)
	}

	pricing := DefaultPricing()

	if config.TipFeeRate != "" {
		rate, err := decimal.NewFromString(config.TipFeeRate)
		if err != nil {
			return nil, fmt.Errorf("invalid tip_fee_rate %q: %w", config.TipFeeRate, err)
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("tip_fee_rate must be in [0, 1), got %s", rate.String())
		}
		pricing.TipFeeRate = rate
	}

	if len(config.PaymentMethods) > 0 {
		pricing.PaymentMethods = config.PaymentMethods
	}

	if len(config.VipPlans) > 0 {
		pricing.VipPlans = make(map[string]models.VipPlan, len(config.VipPlans))
		for name, plan := range config.VipPlans {
			price, err := decimal.NewFromString(plan.Price)
			if err != nil {
				return nil, fmt.Errorf("vip plan %s has invalid price %q: %w", name, plan.Price, err)
			}
			if !price.IsPositive() {
				return nil, fmt.Errorf("vip plan %s must have a positive price", name)
			}
			if plan.Days < 0 {
				return nil, fmt.Errorf("vip plan %s has negative days", name)
			}
			pricing.VipPlans[name] = models.VipPlan{
				Name:     name,
				Price:    price,
				Duration: time.Duration(plan.Days) * 24 * time.Hour,
			}
		}
	}

	return pricing, nil
}
