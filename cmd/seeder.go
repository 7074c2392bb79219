package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sems/expense-service/internal/workflow"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with a default approval ladder",
	Long:  `Seed the approval level catalog with a three-rung global ladder for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open gorm: %v", err)
		}

		if clearData {
			if err := db.Exec("DELETE FROM approval_levels").Error; err != nil {
				log.Fatalf("failed to clear approval levels: %v", err)
			}
			fmt.Println("Cleared existing approval levels")
		}

		maxManager := decimal.RequireFromString("999.99")
		maxFinance := decimal.RequireFromString("4999.99")

		levels := []*workflow.ApprovalLevel{
			{
				Level:              1,
				Name:               "Manager Approval",
				Description:        "First line manager sign-off",
				RoleID:             uuid.MustParse("a1e7a3a0-0000-4000-8000-000000000001"),
				MinAmountThreshold: decimal.RequireFromString("0.00"),
				MaxAmountThreshold: &maxManager,
				Active:             true,
				RequiredApprovers:  1,
			},
			{
				Level:              2,
				Name:               "Finance Approval",
				Description:        "Finance team review for mid-range amounts",
				RoleID:             uuid.MustParse("a1e7a3a0-0000-4000-8000-000000000002"),
				MinAmountThreshold: decimal.RequireFromString("500.00"),
				MaxAmountThreshold: &maxFinance,
				RequiresReceipt:    true,
				Active:             true,
				RequiredApprovers:  1,
			},
			{
				Level:              3,
				Name:               "Executive Approval",
				Description:        "Executive sign-off for large amounts",
				RoleID:             uuid.MustParse("a1e7a3a0-0000-4000-8000-000000000003"),
				MinAmountThreshold: decimal.RequireFromString("5000.00"),
				RequiresReceipt:    true,
				Active:             true,
				RequiredApprovers:  1,
			},
		}

		now := time.Now()
		for _, level := range levels {
			var count int64
			if err := db.Model(&workflow.ApprovalLevel{}).
				Where("level = ? AND department_id IS NULL", level.Level).
				Count(&count).Error; err != nil {
				log.Fatalf("failed to check level %d: %v", level.Level, err)
			}
			if count > 0 {
				fmt.Printf("Level %d already seeded, skipping\n", level.Level)
				continue
			}

			level.ID = uuid.New()
			level.CreatedAt = now
			level.UpdatedAt = now
			if err := db.Create(level).Error; err != nil {
				log.Fatalf("failed to seed level %d: %v", level.Level, err)
			}
			fmt.Printf("Seeded approval level %d (%s)\n", level.Level, level.Name)
		}
	},
}
