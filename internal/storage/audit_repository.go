package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/menu-service/internal/model"
)

// LLMCallRepository handles persistence of LLM call tracking.
// Go interfaces are implicit: any struct that has these methods satisfies it,
// so tests can swap in a fake without touching SQLite.
type LLMCallRepository interface {
	Create(ctx context.Context, call *model.LLMCall) error
	CountByPurpose(ctx context.Context, purpose model.LLMPurpose) (int64, error)
	CountBlocked(ctx context.Context) (int64, error)
}

// MenuScanRepository records /upload_menu/ outcomes.
type MenuScanRepository interface {
	Create(ctx context.Context, scan *model.MenuScan) error
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status model.Status) (int64, error)
}

// DishLookupRepository records dish image searches.
type DishLookupRepository interface {
	Create(ctx context.Context, lookup *model.DishLookup) error
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status model.Status) (int64, error)
	CountMisses(ctx context.Context) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]model.DishLookup, error)
}

type sqliteLLMCallRepository struct {
	db *sqlx.DB
}

// NewLLMCallRepository creates a new SQLite-backed LLMCallRepository.
func NewLLMCallRepository(db *sqlx.DB) LLMCallRepository {
	return &sqliteLLMCallRepository{db: db}
}

func (r *sqliteLLMCallRepository) Create(ctx context.Context, call *model.LLMCall) error {
	// NamedExecContext uses the struct's `db:` tags to map fields to :named placeholders.
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO llm_calls (purpose, subject, provider, model, success, blocked, duration_ms)
		VALUES (:purpose, :subject, :provider, :model, :success, :blocked, :duration_ms)
	`, call)
	if err != nil {
		return fmt.Errorf("creating llm call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteLLMCallRepository) CountByPurpose(ctx context.Context, purpose model.LLMPurpose) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM llm_calls WHERE purpose = ?", purpose)
	return count, err
}

func (r *sqliteLLMCallRepository) CountBlocked(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM llm_calls WHERE blocked = 1")
	return count, err
}

type sqliteMenuScanRepository struct {
	db *sqlx.DB
}

// NewMenuScanRepository creates a new SQLite-backed MenuScanRepository.
func NewMenuScanRepository(db *sqlx.DB) MenuScanRepository {
	return &sqliteMenuScanRepository{db: db}
}

func (r *sqliteMenuScanRepository) Create(ctx context.Context, scan *model.MenuScan) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO menu_scans (status, engine, item_count, ocr_chars, duration_ms, error_message)
		VALUES (:status, :engine, :item_count, :ocr_chars, :duration_ms, :error_message)
	`, scan)
	if err != nil {
		return fmt.Errorf("creating menu scan record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	scan.ID = id
	return nil
}

func (r *sqliteMenuScanRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM menu_scans")
	return count, err
}

func (r *sqliteMenuScanRepository) CountByStatus(ctx context.Context, status model.Status) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM menu_scans WHERE status = ?", status)
	return count, err
}

type sqliteDishLookupRepository struct {
	db *sqlx.DB
}

// NewDishLookupRepository creates a new SQLite-backed DishLookupRepository.
func NewDishLookupRepository(db *sqlx.DB) DishLookupRepository {
	return &sqliteDishLookupRepository{db: db}
}

func (r *sqliteDishLookupRepository) Create(ctx context.Context, lookup *model.DishLookup) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO dish_lookups (dish, query, query_source, url, status, duration_ms, error_message)
		VALUES (:dish, :query, :query_source, :url, :status, :duration_ms, :error_message)
	`, lookup)
	if err != nil {
		return fmt.Errorf("creating dish lookup record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	lookup.ID = id
	return nil
}

func (r *sqliteDishLookupRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM dish_lookups")
	return count, err
}

func (r *sqliteDishLookupRepository) CountByStatus(ctx context.Context, status model.Status) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM dish_lookups WHERE status = ?", status)
	return count, err
}

// CountMisses counts successful lookups that found no usable image URL.
func (r *sqliteDishLookupRepository) CountMisses(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM dish_lookups WHERE status = ? AND url IS NULL", model.StatusSuccess)
	return count, err
}

func (r *sqliteDishLookupRepository) ListRecent(ctx context.Context, limit int) ([]model.DishLookup, error) {
	var lookups []model.DishLookup
	err := r.db.SelectContext(ctx, &lookups,
		"SELECT * FROM dish_lookups ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing dish lookups: %w", err)
	}
	return lookups, nil
}
