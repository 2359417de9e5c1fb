package infrastructure

import (
	"fmt"

	"github.com/johnconna/pyforce-evaluation-v2/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteFetchLedger implements FetchLedger using SQLite
type SQLiteFetchLedger struct {
	db *gorm.DB
}

// NewSQLiteFetchLedger creates a new SQLite ledger
func NewSQLiteFetchLedger(dbPath string) (*SQLiteFetchLedger, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate the schema for Run and FetchRecord
	if err := db.AutoMigrate(&domain.Run{}, &domain.FetchRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteFetchLedger{db: db}, nil
}

// CreateRun records the start of a pipeline run
func (r *SQLiteFetchLedger) CreateRun(run *domain.Run) error {
	return r.db.Create(run).Error
}

// FinishRun updates a run with its final statistics
func (r *SQLiteFetchLedger) FinishRun(run *domain.Run) error {
	return r.db.Save(run).Error
}

// SaveRecords persists terminal fetch results for a run
func (r *SQLiteFetchLedger) SaveRecords(records []*domain.FetchRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.Create(records).Error
}

// FindByStatus finds records by status, newest first
func (r *SQLiteFetchLedger) FindByStatus(status domain.FetchStatus) ([]*domain.FetchRecord, error) {
	var records []*domain.FetchRecord
	err := r.db.Where("status = ?", status).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// FindByRun finds all records belonging to a run
func (r *SQLiteFetchLedger) FindByRun(runID string) ([]*domain.FetchRecord, error) {
	var records []*domain.FetchRecord
	err := r.db.Where("run_id = ?", runID).Find(&records).Error
	return records, err
}

// ListRuns lists runs, newest first, up to limit (0 = all)
func (r *SQLiteFetchLedger) ListRuns(limit int) ([]*domain.Run, error) {
	var runs []*domain.Run
	query := r.db.Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&runs).Error
	return runs, err
}

// LatestFailedNames returns the package names that failed in the most
// recent finished run
func (r *SQLiteFetchLedger) LatestFailedNames() ([]string, error) {
	var run domain.Run
	err := r.db.Where("finished_at IS NOT NULL").
		Order("started_at DESC").
		First(&run).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	err = r.db.Model(&domain.FetchRecord{}).
		Where("run_id = ? AND status = ?", run.ID, domain.StatusFailed).
		Pluck("name", &names).Error
	return names, err
}

// GetStats returns aggregate statistics across all recorded runs
func (r *SQLiteFetchLedger) GetStats() (*domain.LedgerStats, error) {
	stats := &domain.LedgerStats{}

	if err := r.db.Model(&domain.Run{}).Count(&stats.Runs).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&domain.FetchRecord{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.FetchStatus
		Count  int64
	}{}
	if err := r.db.Model(&domain.FetchRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}
	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.StatusSuccess:
			stats.Successful = sc.Count
		case domain.StatusSkipped:
			stats.Skipped = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		}
	}

	var totalBytes struct{ Total int64 }
	if err := r.db.Model(&domain.FetchRecord{}).
		Select("coalesce(sum(size), 0) as total").
		Where("status = ?", domain.StatusSuccess).
		Scan(&totalBytes).Error; err != nil {
		return nil, err
	}
	stats.TotalBytes = totalBytes.Total

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteFetchLedger) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure SQLiteFetchLedger implements FetchLedger.
var _ domain.FetchLedger = (*SQLiteFetchLedger)(nil)
