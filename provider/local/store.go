package local

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Account is the persisted identity record. Anonymous accounts are regular
// rows with a generated identifier and a throwaway password hash.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID             uuid.UUID  `bun:"id,pk,type:uuid"`
	Identifier     string     `bun:"identifier,notnull,unique"`
	DisplayName    string     `bun:"display_name"`
	PasswordHash   string     `bun:"password_hash,notnull"`
	Anonymous      bool       `bun:"anonymous,notnull,default:false"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at"`
	LastLoginAt    *time.Time `bun:"last_login_at"`
}

// Store persists accounts in a bun-managed table.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// OpenInMemory returns a bun.DB backed by an in-memory SQLite database,
// suitable for development and tests.
func OpenInMemory() (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Init creates the accounts table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Account)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	account := &Account{}
	err := s.db.NewSelect().
		Model(account).
		Where("?TableAlias.identifier = ?", normalizeKey(identifier)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	account := &Account{}
	err := s.db.NewSelect().
		Model(account).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Store) Insert(ctx context.Context, account *Account) (*Account, error) {
	now := time.Now()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.Identifier = normalizeKey(account.Identifier)
	account.CreatedAt = now
	account.UpdatedAt = now

	if _, err := s.db.NewInsert().Model(account).Exec(ctx); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Store) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error {
	_, err := s.db.NewUpdate().
		Model((*Account)(nil)).
		Set("display_name = ?", displayName).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// TrackAttemptedLogin records the timestamp of a credential attempt.
func (s *Store) TrackAttemptedLogin(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.NewUpdate().
		Model((*Account)(nil)).
		Set("login_attempt_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// TrackSuccessfulLogin records the timestamp of a successful sign-in.
func (s *Store) TrackSuccessfulLogin(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.NewUpdate().
		Model((*Account)(nil)).
		Set("last_login_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func normalizeKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
