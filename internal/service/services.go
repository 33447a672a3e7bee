package service

import (
	"github.com/dom/cardclash/internal/config"
	"github.com/dom/cardclash/internal/repository"
	"github.com/dom/cardclash/internal/resolution"
	"go.uber.org/zap"
)

type Services struct {
	Auth         *AuthService
	Collection   *CollectionService
	Battle       *BattleService
	Selection    *SelectionService
	Orchestrator *Orchestrator
}

func NewServices(repos *repository.Repositories, cfg *config.Config, notifier Notifier, policy resolution.Policy, logger *zap.Logger) *Services {
	return &Services{
		Auth:         NewAuthService(repos.User, repos.Session, cfg),
		Collection:   NewCollectionService(repos.Card, cfg.PackSize, nil, logger.Named("collection")),
		Battle:       NewBattleService(repos, notifier, logger.Named("battle")),
		Selection:    NewSelectionService(repos, notifier, cfg.RevealCountdown, logger.Named("selection")),
		Orchestrator: NewOrchestrator(repos, policy, notifier, logger.Named("orchestrator")),
	}
}
