package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/meridianrefining/refinery-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string, role types.Role) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  "pw",
		FirstName: "A",
		LastName:  "B",
		Role:      role,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedTemplate(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, category types.TemplateCategory) *types.Template {
	tb.Helper()
	tpl := &types.Template{
		ID:       uuid.New(),
		Kind:     types.TemplateStation,
		Category: category,
		Name:     name,
	}
	if err := tx.WithContext(ctx).Create(tpl).Error; err != nil {
		tb.Fatalf("seed template: %v", err)
	}
	return tpl
}

// SeedLinearFlow creates a draft flow whose nodes form a line in the given
// order, each node bound to a fresh station template of the same name.
func SeedLinearFlow(tb testing.TB, ctx context.Context, tx *gorm.DB, pipeline string, stations ...string) *types.Flow {
	tb.Helper()
	flow := &types.Flow{
		ID:       uuid.New(),
		Name:     fmt.Sprintf("%s flow", pipeline),
		Pipeline: pipeline,
		Version:  "v1",
		Status:   types.FlowDraft,
	}
	if err := tx.WithContext(ctx).Create(flow).Error; err != nil {
		tb.Fatalf("seed flow: %v", err)
	}
	var prev *types.FlowNode
	for i, name := range stations {
		tpl := SeedTemplate(tb, ctx, tx, name, types.CategoryGeneric)
		node := &types.FlowNode{
			ID:         uuid.New(),
			FlowID:     flow.ID,
			Type:       types.NodeStation,
			TemplateID: tpl.ID,
			Name:       name,
			Index:      i,
		}
		if err := tx.WithContext(ctx).Create(node).Error; err != nil {
			tb.Fatalf("seed flow node: %v", err)
		}
		flow.Nodes = append(flow.Nodes, *node)
		if prev != nil {
			edge := &types.FlowEdge{
				ID:           uuid.New(),
				FlowID:       flow.ID,
				SourceNodeID: prev.ID,
				TargetNodeID: node.ID,
				Index:        i - 1,
			}
			if err := tx.WithContext(ctx).Create(edge).Error; err != nil {
				tb.Fatalf("seed flow edge: %v", err)
			}
			flow.Edges = append(flow.Edges, *edge)
		}
		prev = node
	}
	return flow
}
