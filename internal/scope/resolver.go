package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/internal/database/models"
	"gorm.io/gorm"
)

var ErrUnknownPrincipal = errors.New("principal does not match a user")

// Store is the lookup surface the resolver needs.
type Store interface {
	UserIDByEmail(ctx context.Context, email string) (uuid.UUID, error)
	CompaniesOwnedBy(ctx context.Context, userID uuid.UUID) ([]models.Company, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore returns a Store backed by gorm.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) UserIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrUnknownPrincipal
		}
		return uuid.Nil, fmt.Errorf("looking up user by email: %w", err)
	}
	return user.ID, nil
}

func (s *gormStore) CompaniesOwnedBy(ctx context.Context, userID uuid.UUID) ([]models.Company, error) {
	var companies []models.Company
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", userID).
		Order("created_at ASC").
		Find(&companies).Error; err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	return companies, nil
}

type Resolver struct {
	store  Store
	logger *slog.Logger
}

func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve never fails. Store errors degrade to an unscoped Scope for the same
// user; a principal that matches no user yields a Scope with a nil UserID,
// which callers report as unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, p Principal, hint *uuid.UUID) Scope {
	userID := p.UserID
	if userID == uuid.Nil {
		if p.Email == "" {
			return Scope{}
		}
		id, err := r.store.UserIDByEmail(ctx, p.Email)
		if err != nil {
			if !errors.Is(err, ErrUnknownPrincipal) {
				r.logger.Error("resolving principal by email", "error", err)
			}
			return Scope{}
		}
		userID = id
	}

	companies, err := r.store.CompaniesOwnedBy(ctx, userID)
	if err != nil {
		r.logger.Error("resolving active company, falling back to unscoped",
			"user_id", userID,
			"error", err,
		)
		return Scope{UserID: userID}
	}

	return Scope{
		UserID:    userID,
		CompanyID: PickCompany(companies, hint),
	}
}

// PickCompany chooses the active company: the hinted one if the principal
// owns it, else the earliest created, else none.
func PickCompany(companies []models.Company, hint *uuid.UUID) *uuid.UUID {
	if len(companies) == 0 {
		return nil
	}

	if hint != nil && *hint != uuid.Nil {
		for _, c := range companies {
			if c.ID == *hint {
				id := c.ID
				return &id
			}
		}
	}

	sorted := make([]models.Company, len(companies))
	copy(sorted, companies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	id := sorted[0].ID
	return &id
}
