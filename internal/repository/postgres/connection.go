package postgres

import (
	"fmt"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table the store migrates.
var Models = []any{
	&domain.User{},
	&domain.UserSession{},
	&domain.Card{},
	&domain.BattleInstance{},
	&domain.CardSelection{},
	&domain.BattleResult{},
}

func NewConnection(databaseURL string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:      NewUserRepository(db),
		Session:   NewSessionRepository(db),
		Card:      NewCardRepository(db),
		Battle:    NewBattleRepository(db),
		Selection: NewSelectionRepository(db),
		Result:    NewResultRepository(db),
	}
}
