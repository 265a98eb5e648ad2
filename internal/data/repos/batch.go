package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

// BatchFilter scopes completed-batch queries for the reporting engine.
type BatchFilter struct {
	Year     *int
	From     *time.Time
	To       *time.Time
	Pipeline string
}

type BatchRepo interface {
	Create(dbc dbctx.Context, row *types.Batch) (*types.Batch, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Batch, error)
	GetByNumber(dbc dbctx.Context, batchNumber string) (*types.Batch, error)
	ListCompleted(dbc dbctx.Context, filter BatchFilter) ([]*types.Batch, error)
	ListActive(dbc dbctx.Context, pipeline string) ([]*types.Batch, error)
	UpdateWithVersion(dbc dbctx.Context, row *types.Batch) error
}

type batchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchRepo(db *gorm.DB, baseLog *logger.Logger) BatchRepo {
	return &batchRepo{db: db, log: baseLog.With("repo", "BatchRepo")}
}

func (r *batchRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *batchRepo) Create(dbc dbctx.Context, row *types.Batch) (*types.Batch, error) {
	if row == nil {
		return nil, nil
	}
	if row.CompletedNodeIDs == nil {
		row.CompletedNodeIDs = types.UUIDList{}
	}
	if row.Events == nil {
		row.Events = types.EventList{}
	}
	if row.Flags == nil {
		row.Flags = types.FlagList{}
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *batchRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Batch, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Batch
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *batchRepo) GetByNumber(dbc dbctx.Context, batchNumber string) (*types.Batch, error) {
	if batchNumber == "" {
		return nil, nil
	}
	var row types.Batch
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("batch_number = ?", batchNumber).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *batchRepo) ListCompleted(dbc dbctx.Context, filter BatchFilter) ([]*types.Batch, error) {
	q := r.conn(dbc).WithContext(dbc.Ctx).
		Where("status = ?", types.BatchCompleted)
	if filter.Year != nil {
		start := time.Date(*filter.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		q = q.Where("completed_at >= ? AND completed_at < ?", start, start.AddDate(1, 0, 0))
	}
	if filter.From != nil {
		q = q.Where("completed_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("completed_at < ?", *filter.To)
	}
	if filter.Pipeline != "" {
		q = q.Where("pipeline = ?", filter.Pipeline)
	}
	var out []*types.Batch
	if err := q.Order("completed_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *batchRepo) ListActive(dbc dbctx.Context, pipeline string) ([]*types.Batch, error) {
	q := r.conn(dbc).WithContext(dbc.Ctx).
		Where("status <> ?", types.BatchCompleted)
	if pipeline != "" {
		q = q.Where("pipeline = ?", pipeline)
	}
	var out []*types.Batch
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateWithVersion persists a mutated batch only if the stored version
// still matches the version the caller read; the row's version advances by
// one on success. Zero matched rows means a concurrent writer got there
// first and the save is rejected with ErrVersionConflict.
func (r *batchRepo) UpdateWithVersion(dbc dbctx.Context, row *types.Batch) error {
	if row == nil || row.ID == uuid.Nil {
		return types.ErrNotFound
	}
	readVersion := row.Version
	row.Version = readVersion + 1
	row.UpdatedAt = time.Now().UTC()

	res := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Batch{}).
		Where("id = ? AND version = ?", row.ID, readVersion).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(row)
	if res.Error != nil {
		row.Version = readVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		row.Version = readVersion
		return types.ErrVersionConflict
	}
	return nil
}
