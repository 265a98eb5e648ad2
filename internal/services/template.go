package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/meridianrefining/refinery-backend/internal/data/repos"
	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

type TemplateInput struct {
	Kind       types.TemplateKind     `json:"kind" binding:"required"`
	Category   types.TemplateCategory `json:"category,omitempty"`
	Name       string                 `json:"name" binding:"required"`
	SOPSteps   datatypes.JSON         `json:"sop_steps,omitempty"`
	ToleranceG *float64               `json:"tolerance_g,omitempty"`
}

type TemplateService interface {
	Create(dbc dbctx.Context, input TemplateInput) (*types.Template, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Template, error)
	List(dbc dbctx.Context, kind types.TemplateKind) ([]*types.Template, error)
	Update(dbc dbctx.Context, id uuid.UUID, input TemplateInput) (*types.Template, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type templateService struct {
	db        *gorm.DB
	log       *logger.Logger
	templates repos.TemplateRepo
}

func NewTemplateService(db *gorm.DB, baseLog *logger.Logger, templates repos.TemplateRepo) TemplateService {
	return &templateService{db: db, log: baseLog.With("service", "TemplateService"), templates: templates}
}

func validateTemplateInput(input TemplateInput) (types.TemplateCategory, error) {
	switch input.Kind {
	case types.TemplateStation, types.TemplateCheck:
	default:
		return "", fmt.Errorf("unknown template kind %q", input.Kind)
	}
	category := input.Category
	switch category {
	case types.CategoryReceiving, types.CategoryAssay, types.CategoryMelt,
		types.CategoryCasting, types.CategoryExport, types.CategoryGeneric:
	case "":
		category = types.CategoryGeneric
	default:
		return "", fmt.Errorf("unknown template category %q", category)
	}
	if input.ToleranceG != nil && *input.ToleranceG < 0 {
		return "", fmt.Errorf("tolerance must be non-negative")
	}
	return category, nil
}

func (s *templateService) Create(dbc dbctx.Context, input TemplateInput) (*types.Template, error) {
	category, err := validateTemplateInput(input)
	if err != nil {
		return nil, err
	}
	tpl := &types.Template{
		ID:         uuid.New(),
		Kind:       input.Kind,
		Category:   category,
		Name:       input.Name,
		SOPSteps:   input.SOPSteps,
		ToleranceG: input.ToleranceG,
	}
	if _, err := s.templates.Create(dbc, []*types.Template{tpl}); err != nil {
		return nil, err
	}
	s.log.Info("Template created", "template_id", tpl.ID, "kind", tpl.Kind, "category", tpl.Category)
	return tpl, nil
}

func (s *templateService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Template, error) {
	tpl, err := s.templates.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, types.ErrNotFound
	}
	return tpl, nil
}

func (s *templateService) List(dbc dbctx.Context, kind types.TemplateKind) ([]*types.Template, error) {
	return s.templates.List(dbc, kind)
}

func (s *templateService) Update(dbc dbctx.Context, id uuid.UUID, input TemplateInput) (*types.Template, error) {
	category, err := validateTemplateInput(input)
	if err != nil {
		return nil, err
	}
	tpl, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	tpl.Kind = input.Kind
	tpl.Category = category
	tpl.Name = input.Name
	tpl.SOPSteps = input.SOPSteps
	tpl.ToleranceG = input.ToleranceG
	if err := s.templates.Update(dbc, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *templateService) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if _, err := s.Get(dbc, id); err != nil {
		return err
	}
	return s.templates.SoftDeleteByID(dbc, id)
}
