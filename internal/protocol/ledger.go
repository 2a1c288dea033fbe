package protocol

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lvollmer/bazaarnode/pkg/db/models"
)

// LedgerRepository persists the durable applied-message set.
type LedgerRepository interface {
	WithTx(tx *gorm.DB) LedgerRepository
	Record(ctx context.Context, entry *models.AppliedMessage) error
	HasApplied(ctx context.Context, hash string) (bool, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	if tx == nil {
		return r
	}
	return &ledgerRepository{db: tx}
}

func (r *ledgerRepository) Record(ctx context.Context, entry *models.AppliedMessage) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ledgerRepository) HasApplied(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AppliedMessage{}).
		Where("hash = ?", hash).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DedupCache is the positive-only fast path in front of the ledger table.
// A cache miss says nothing; a hit short-circuits redelivery without a DB
// round trip.
type DedupCache interface {
	MarkApplied(ctx context.Context, hash string, ttl time.Duration) error
	WasApplied(ctx context.Context, hash string) (bool, error)
}

// Ledger answers "has this message hash been applied" with the cache in
// front of the durable table. Writes to the table happen inside the apply
// transaction; the cache is populated best-effort after commit.
type Ledger struct {
	repo     LedgerRepository
	cache    DedupCache
	cacheTTL time.Duration
}

func NewLedger(repo LedgerRepository, cache DedupCache, cacheTTL time.Duration) *Ledger {
	return &Ledger{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

// WasApplied consults the cache first, then the durable table.
func (l *Ledger) WasApplied(ctx context.Context, hash string) (bool, error) {
	if l.cache != nil {
		if hit, err := l.cache.WasApplied(ctx, hash); err == nil && hit {
			return true, nil
		}
	}
	return l.repo.HasApplied(ctx, hash)
}

// HasAppliedTx checks the durable table through the supplied transaction.
// The in-lock, in-tx check is the authoritative one.
func (l *Ledger) HasAppliedTx(ctx context.Context, tx *gorm.DB, hash string) (bool, error) {
	return l.repo.WithTx(tx).HasApplied(ctx, hash)
}

// RecordTx writes the ledger row inside the apply transaction.
func (l *Ledger) RecordTx(ctx context.Context, tx *gorm.DB, entry *models.AppliedMessage) error {
	return l.repo.WithTx(tx).Record(ctx, entry)
}

// CacheApplied marks the hash in the fast path. Failures are ignored; the
// durable table remains the source of truth.
func (l *Ledger) CacheApplied(ctx context.Context, hash string) {
	if l.cache == nil {
		return
	}
	_ = l.cache.MarkApplied(ctx, hash, l.cacheTTL)
}
