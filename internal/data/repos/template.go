package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

type TemplateRepo interface {
	Create(dbc dbctx.Context, rows []*types.Template) ([]*types.Template, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Template, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Template, error)
	List(dbc dbctx.Context, kind types.TemplateKind) ([]*types.Template, error)
	Update(dbc dbctx.Context, row *types.Template) error
	SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

type templateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTemplateRepo(db *gorm.DB, baseLog *logger.Logger) TemplateRepo {
	return &templateRepo{db: db, log: baseLog.With("repo", "TemplateRepo")}
}

func (r *templateRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *templateRepo) Create(dbc dbctx.Context, rows []*types.Template) ([]*types.Template, error) {
	if len(rows) == 0 {
		return []*types.Template{}, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *templateRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Template, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *templateRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Template, error) {
	var out []*types.Template
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *templateRepo) List(dbc dbctx.Context, kind types.TemplateKind) ([]*types.Template, error) {
	var out []*types.Template
	q := r.conn(dbc).WithContext(dbc.Ctx)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *templateRepo) Update(dbc dbctx.Context, row *types.Template) error {
	if row == nil {
		return nil
	}
	row.UpdatedAt = time.Now().UTC()
	return r.conn(dbc).WithContext(dbc.Ctx).Save(row).Error
}

func (r *templateRepo) SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Template{}).Error
}
