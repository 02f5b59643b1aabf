package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/auth"
	"github.com/hugh/go-marks/internal/database"
	"github.com/hugh/go-marks/internal/database/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var seedOpts struct {
	email    string
	password string
	name     string
	company  string
	samples  bool
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create an admin user with a first company",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(&cfg.Database, logger)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
		authService := auth.NewService(db, jwtService)

		resp, err := authService.Register(cmd.Context(), auth.RegisterInput{
			Email:       seedOpts.email,
			Password:    seedOpts.password,
			Name:        seedOpts.name,
			CompanyName: seedOpts.company,
		})
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Fprintf(cmd.OutOrStdout(), "User already exists: %s\n", seedOpts.email)
			return nil
		}
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User created: %s\n", resp.User.Email)
		if resp.Company != nil {
			fmt.Fprintf(out, "Company: %s (%s)\n", resp.Company.Name, resp.Company.ID)
		}

		if seedOpts.samples {
			n, err := seedSamples(db, resp)
			if err != nil {
				return fmt.Errorf("creating sample bookmarks: %w", err)
			}
			fmt.Fprintf(out, "Sample bookmarks: %d\n", n)
		}

		fmt.Fprintf(out, "Token: %s\n", resp.Token)
		return nil
	},
}

func seedSamples(db *gorm.DB, resp *auth.AuthResponse) (int, error) {
	samples := []struct{ url, title string }{
		{"https://go.dev/doc/effective_go", "Effective Go"},
		{"https://pkg.go.dev/std", "Standard library"},
		{"https://gorm.io/docs/", "GORM Guides"},
	}

	var companyID *uuid.UUID
	if resp.Company != nil {
		companyID = &resp.Company.ID
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		tag := models.Tag{UserID: resp.User.ID, CompanyID: companyID, Name: "reading"}
		if err := tx.Create(&tag).Error; err != nil {
			return err
		}

		for _, s := range samples {
			b := models.Bookmark{
				UserID:    resp.User.ID,
				CompanyID: companyID,
				URL:       s.url,
				Title:     s.title,
				Tags:      []models.Tag{tag},
			}
			if err := tx.Create(&b).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(samples), nil
}

func init() {
	f := seedCmd.Flags()
	f.StringVar(&seedOpts.email, "email", "admin@example.com", "login email")
	f.StringVar(&seedOpts.password, "password", "admin123!", "login password")
	f.StringVar(&seedOpts.name, "name", "Admin", "display name")
	f.StringVar(&seedOpts.company, "company", "Default Company", "first company name; empty skips it")
	f.BoolVar(&seedOpts.samples, "samples", false, "add a few sample bookmarks")
}
