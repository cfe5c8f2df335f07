package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nfrund/huddle/internal/database"
	"github.com/nfrund/huddle/internal/domain"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// userRow is the raw store shape of a profile; see messageRow for why the
// record id is typed.
type userRow struct {
	ID            *surrealmodels.RecordID `json:"id,omitempty"`
	Name          string                  `json:"name"`
	Email         string                  `json:"email"`
	AvatarURL     string                  `json:"avatarUrl,omitempty"`
	Bio           string                  `json:"bio,omitempty"`
	IsOnline      bool                    `json:"isOnline"`
	LastSeen      time.Time               `json:"lastSeen"`
	EmailVerified bool                    `json:"emailVerified"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

func (r *userRow) toDomain() *domain.UserProfile {
	profile := &domain.UserProfile{
		Name:          r.Name,
		Email:         r.Email,
		AvatarURL:     r.AvatarURL,
		Bio:           r.Bio,
		IsOnline:      r.IsOnline,
		LastSeen:      r.LastSeen,
		EmailVerified: r.EmailVerified,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.ID != nil {
		profile.ID = r.ID.String()
	}
	return profile
}

// UserStore encapsulates database operations for user profiles.
type UserStore struct {
	db     *surrealdb.DB
	ns     string
	dbName string
}

// NewUserStore creates a new UserStore.
func NewUserStore(db *surrealdb.DB, ns, dbName string) *UserStore {
	return &UserStore{db: db, ns: ns, dbName: dbName}
}

// FindByName queries for a single profile by display name.
// Returns nil, nil when no profile exists.
func (s *UserStore) FindByName(ctx context.Context, name string) (*domain.UserProfile, error) {
	if err := s.db.Use(ctx, s.ns, s.dbName); err != nil {
		return nil, fmt.Errorf("failed to set database scope: %w", err)
	}

	query := "SELECT * FROM user WHERE name = $name"
	params := map[string]any{"name": name}

	row, err := database.QueryOne[userRow](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	return row.toDomain(), nil
}

// EnsureProfile returns the profile for the given display name, creating one
// with default fields if it does not exist yet. Guest identities carry no
// email; the name is the stable key.
func (s *UserStore) EnsureProfile(ctx context.Context, name string) (*domain.UserProfile, error) {
	if name == "" {
		return nil, database.NewDBError(database.ErrInvalidInput, "profile name is required")
	}

	existing, err := s.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	query := `CREATE user SET
		name = $name,
		email = "",
		bio = "",
		isOnline = false,
		lastSeen = time::now(),
		emailVerified = false,
		createdAt = time::now(),
		updatedAt = time::now()
	RETURN AFTER`
	params := map[string]any{"name": name}

	created, err := database.QueryOne[userRow](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create user profile: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("user profile was not created or could not be fetched")
	}

	return created.toDomain(), nil
}

// SetPresence flips the stored online flag and refreshes lastSeen for the
// profile with the given display name. Record ids never compare equal to a
// string param, so the name is the only usable predicate here.
func (s *UserStore) SetPresence(ctx context.Context, userID string, online bool) error {
	if userID == "" {
		return database.NewDBError(database.ErrInvalidInput, "user ID is required")
	}

	if err := s.db.Use(ctx, s.ns, s.dbName); err != nil {
		return fmt.Errorf("failed to set database scope: %w", err)
	}

	query := `UPDATE user SET
		isOnline = $online,
		lastSeen = time::now(),
		updatedAt = time::now()
	WHERE name = $name`
	params := map[string]any{
		"name":   userID,
		"online": online,
	}

	if err := database.Execute(ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to update presence for %s: %w", userID, err)
	}

	return nil
}
