package app

import (
	"gorm.io/gorm"

	"github.com/meridianrefining/refinery-backend/internal/data/repos"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

type Repos struct {
	User      repos.UserRepo
	UserToken repos.UserTokenRepo
	Template  repos.TemplateRepo
	Flow      repos.FlowRepo
	Batch     repos.BatchRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:      repos.NewUserRepo(db, log),
		UserToken: repos.NewUserTokenRepo(db, log),
		Template:  repos.NewTemplateRepo(db, log),
		Flow:      repos.NewFlowRepo(db, log),
		Batch:     repos.NewBatchRepo(db, log),
	}
}
