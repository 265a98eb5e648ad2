package services

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/meridianrefining/refinery-backend/internal/data/repos"
	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
)

// In-memory repo fakes for service tests. Reads hand out copies so a caller
// mutating a batch in memory cannot bypass the version check on save.

type fakeBatchRepo struct {
	rows map[uuid.UUID]*types.Batch

	// beforeUpdate runs at the top of UpdateWithVersion, letting tests
	// interleave a concurrent writer between a read and its save.
	beforeUpdate func()
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{rows: map[uuid.UUID]*types.Batch{}}
}

func cloneBatch(b *types.Batch) *types.Batch {
	cp := *b
	cp.CompletedNodeIDs = append(types.UUIDList{}, b.CompletedNodeIDs...)
	cp.Events = append(types.EventList{}, b.Events...)
	cp.Flags = append(types.FlagList{}, b.Flags...)
	return &cp
}

func (r *fakeBatchRepo) Create(dbc dbctx.Context, row *types.Batch) (*types.Batch, error) {
	for _, existing := range r.rows {
		if existing.BatchNumber == row.BatchNumber {
			return nil, fmt.Errorf("duplicate batch number %s", row.BatchNumber)
		}
	}
	r.rows[row.ID] = cloneBatch(row)
	return row, nil
}

func (r *fakeBatchRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Batch, error) {
	b, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return cloneBatch(b), nil
}

func (r *fakeBatchRepo) GetByNumber(dbc dbctx.Context, batchNumber string) (*types.Batch, error) {
	for _, b := range r.rows {
		if b.BatchNumber == batchNumber {
			return cloneBatch(b), nil
		}
	}
	return nil, nil
}

func (r *fakeBatchRepo) ListCompleted(dbc dbctx.Context, filter repos.BatchFilter) ([]*types.Batch, error) {
	var out []*types.Batch
	for _, b := range r.rows {
		if b.Status != types.BatchCompleted || b.CompletedAt == nil {
			continue
		}
		if filter.Year != nil && b.CompletedAt.Year() != *filter.Year {
			continue
		}
		if filter.Pipeline != "" && b.Pipeline != filter.Pipeline {
			continue
		}
		if filter.From != nil && b.CompletedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && b.CompletedAt.After(*filter.To) {
			continue
		}
		out = append(out, cloneBatch(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	return out, nil
}

func (r *fakeBatchRepo) ListActive(dbc dbctx.Context, pipeline string) ([]*types.Batch, error) {
	var out []*types.Batch
	for _, b := range r.rows {
		if b.Status == types.BatchCompleted {
			continue
		}
		if pipeline != "" && b.Pipeline != pipeline {
			continue
		}
		out = append(out, cloneBatch(b))
	}
	return out, nil
}

func (r *fakeBatchRepo) UpdateWithVersion(dbc dbctx.Context, row *types.Batch) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	stored, ok := r.rows[row.ID]
	if !ok {
		return types.ErrNotFound
	}
	if stored.Version != row.Version {
		return types.ErrVersionConflict
	}
	row.Version++
	r.rows[row.ID] = cloneBatch(row)
	return nil
}

type fakeFlowRepo struct {
	rows map[uuid.UUID]*types.Flow
}

func newFakeFlowRepo() *fakeFlowRepo {
	return &fakeFlowRepo{rows: map[uuid.UUID]*types.Flow{}}
}

func (r *fakeFlowRepo) Create(dbc dbctx.Context, row *types.Flow) (*types.Flow, error) {
	r.rows[row.ID] = row
	return row, nil
}

func (r *fakeFlowRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Flow, error) {
	return r.rows[id], nil
}

func (r *fakeFlowRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Flow, error) {
	var out []*types.Flow
	for _, id := range ids {
		if f, ok := r.rows[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFlowRepo) GetActiveByPipeline(dbc dbctx.Context, pipeline string) (*types.Flow, error) {
	for _, f := range r.rows {
		if f.Pipeline == pipeline && f.Status == types.FlowActive {
			return f, nil
		}
	}
	return nil, nil
}

func (r *fakeFlowRepo) ListByPipeline(dbc dbctx.Context, pipeline string) ([]*types.Flow, error) {
	var out []*types.Flow
	for _, f := range r.rows {
		if pipeline == "" || f.Pipeline == pipeline {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFlowRepo) Update(dbc dbctx.Context, row *types.Flow) error {
	r.rows[row.ID] = row
	return nil
}

func (r *fakeFlowRepo) ReplaceStructure(dbc dbctx.Context, flowID uuid.UUID, nodes []types.FlowNode, edges []types.FlowEdge) error {
	f, ok := r.rows[flowID]
	if !ok {
		return types.ErrNotFound
	}
	f.Nodes = nodes
	f.Edges = edges
	return nil
}

func (r *fakeFlowRepo) Activate(dbc dbctx.Context, id uuid.UUID) (*types.Flow, error) {
	target, ok := r.rows[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	for _, f := range r.rows {
		if f.Pipeline == target.Pipeline && f.Status == types.FlowActive && f.ID != id {
			f.Status = types.FlowArchived
		}
	}
	target.Status = types.FlowActive
	return target, nil
}

func (r *fakeFlowRepo) Archive(dbc dbctx.Context, id uuid.UUID) error {
	f, ok := r.rows[id]
	if !ok {
		return types.ErrNotFound
	}
	f.Status = types.FlowArchived
	return nil
}

type fakeTemplateRepo struct {
	rows map[uuid.UUID]*types.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{rows: map[uuid.UUID]*types.Template{}}
}

func (r *fakeTemplateRepo) Create(dbc dbctx.Context, rows []*types.Template) ([]*types.Template, error) {
	for _, t := range rows {
		r.rows[t.ID] = t
	}
	return rows, nil
}

func (r *fakeTemplateRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Template, error) {
	return r.rows[id], nil
}

func (r *fakeTemplateRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Template, error) {
	var out []*types.Template
	for _, id := range ids {
		if t, ok := r.rows[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTemplateRepo) List(dbc dbctx.Context, kind types.TemplateKind) ([]*types.Template, error) {
	var out []*types.Template
	for _, t := range r.rows {
		if kind == "" || t.Kind == kind {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTemplateRepo) Update(dbc dbctx.Context, row *types.Template) error {
	r.rows[row.ID] = row
	return nil
}

func (r *fakeTemplateRepo) SoftDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	delete(r.rows, id)
	return nil
}

type fakeUserRepo struct {
	rows map[uuid.UUID]*types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: map[uuid.UUID]*types.User{}}
}

func (r *fakeUserRepo) Create(dbc dbctx.Context, rows []*types.User) ([]*types.User, error) {
	for _, u := range rows {
		r.rows[u.ID] = u
	}
	return rows, nil
}

func (r *fakeUserRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	return r.rows[id], nil
}

func (r *fakeUserRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error) {
	var out []*types.User
	for _, id := range ids {
		if u, ok := r.rows[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	for _, u := range r.rows {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}
