package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

type FlowRepo interface {
	Create(dbc dbctx.Context, row *types.Flow) (*types.Flow, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Flow, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Flow, error)
	GetActiveByPipeline(dbc dbctx.Context, pipeline string) (*types.Flow, error)
	ListByPipeline(dbc dbctx.Context, pipeline string) ([]*types.Flow, error)
	Update(dbc dbctx.Context, row *types.Flow) error
	ReplaceStructure(dbc dbctx.Context, flowID uuid.UUID, nodes []types.FlowNode, edges []types.FlowEdge) error
	Activate(dbc dbctx.Context, id uuid.UUID) (*types.Flow, error)
	Archive(dbc dbctx.Context, id uuid.UUID) error
}

type flowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlowRepo(db *gorm.DB, baseLog *logger.Logger) FlowRepo {
	return &flowRepo{db: db, log: baseLog.With("repo", "FlowRepo")}
}

func (r *flowRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *flowRepo) Create(dbc dbctx.Context, row *types.Flow) (*types.Flow, error) {
	if row == nil {
		return nil, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *flowRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Flow, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Flow
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Preload("Nodes", func(db *gorm.DB) *gorm.DB { return db.Order("index ASC") }).
		Preload("Edges", func(db *gorm.DB) *gorm.DB { return db.Order("index ASC") }).
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

func (r *flowRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Flow, error) {
	var out []*types.Flow
	if len(ids) == 0 {
		return out, nil
	}
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Preload("Nodes", func(db *gorm.DB) *gorm.DB { return db.Order("index ASC") }).
		Preload("Edges", func(db *gorm.DB) *gorm.DB { return db.Order("index ASC") }).
		Where("id IN ?", ids).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *flowRepo) GetActiveByPipeline(dbc dbctx.Context, pipeline string) (*types.Flow, error) {
	if pipeline == "" {
		return nil, nil
	}
	var row types.Flow
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Preload("Nodes", func(db *gorm.DB) *gorm.DB { return db.Order("index ASC") }).
		Preload("Edges", func(db *gorm.DB) *gorm.DB { return db.Order("index ASC") }).
		Where("pipeline = ? AND status = ?", pipeline, types.FlowActive).
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

func (r *flowRepo) ListByPipeline(dbc dbctx.Context, pipeline string) ([]*types.Flow, error) {
	var out []*types.Flow
	q := r.conn(dbc).WithContext(dbc.Ctx)
	if pipeline != "" {
		q = q.Where("pipeline = ?", pipeline)
	}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *flowRepo) Update(dbc dbctx.Context, row *types.Flow) error {
	if row == nil {
		return nil
	}
	row.UpdatedAt = time.Now().UTC()
	return r.conn(dbc).WithContext(dbc.Ctx).
		Omit("Nodes", "Edges").
		Save(row).Error
}

// ReplaceStructure swaps a draft flow's nodes and edges wholesale. Callers
// enforce the draft-only rule.
func (r *flowRepo) ReplaceStructure(dbc dbctx.Context, flowID uuid.UUID, nodes []types.FlowNode, edges []types.FlowEdge) error {
	if flowID == uuid.Nil {
		return nil
	}
	t := r.conn(dbc).WithContext(dbc.Ctx)
	if err := t.Where("flow_id = ?", flowID).Delete(&types.FlowEdge{}).Error; err != nil {
		return err
	}
	if err := t.Where("flow_id = ?", flowID).Delete(&types.FlowNode{}).Error; err != nil {
		return err
	}
	for i := range nodes {
		nodes[i].FlowID = flowID
	}
	for i := range edges {
		edges[i].FlowID = flowID
	}
	if len(nodes) > 0 {
		if err := t.Create(&nodes).Error; err != nil {
			return err
		}
	}
	if len(edges) > 0 {
		if err := t.Create(&edges).Error; err != nil {
			return err
		}
	}
	return nil
}

// Activate promotes one flow and, in the same transaction, archives any
// other active flow of the same pipeline, so the one-active-per-pipeline
// invariant cannot be observed broken.
func (r *flowRepo) Activate(dbc dbctx.Context, id uuid.UUID) (*types.Flow, error) {
	if id == uuid.Nil {
		return nil, types.ErrNotFound
	}
	var activated *types.Flow
	run := func(tx *gorm.DB) error {
		txc := dbc.WithTx(tx)
		flow, err := r.GetByID(txc, id)
		if err != nil {
			return err
		}
		if flow == nil {
			return types.ErrNotFound
		}
		now := time.Now().UTC()
		if err := tx.WithContext(dbc.Ctx).
			Model(&types.Flow{}).
			Where("pipeline = ? AND status = ? AND id <> ?", flow.Pipeline, types.FlowActive, flow.ID).
			Updates(map[string]interface{}{"status": types.FlowArchived, "updated_at": now}).Error; err != nil {
			return err
		}
		if err := tx.WithContext(dbc.Ctx).
			Model(&types.Flow{}).
			Where("id = ?", flow.ID).
			Updates(map[string]interface{}{"status": types.FlowActive, "activated_at": now, "updated_at": now}).Error; err != nil {
			return err
		}
		flow.Status = types.FlowActive
		flow.ActivatedAt = &now
		activated = flow
		return nil
	}
	if dbc.Tx != nil {
		if err := run(dbc.Tx); err != nil {
			return nil, err
		}
		return activated, nil
	}
	if err := r.db.WithContext(dbc.Ctx).Transaction(run); err != nil {
		return nil, err
	}
	return activated, nil
}

func (r *flowRepo) Archive(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return types.ErrNotFound
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Flow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": types.FlowArchived, "updated_at": time.Now().UTC()}).Error
}
