package database

import (
	"fmt"
	"log/slog"

	"github.com/yukikurage/pinboard-api/internal/models"
	"gorm.io/gorm"
)

// requiredIndexes are the indexes the authorization and registration paths
// depend on. AutoMigrate creates them for new tables; tables created by an
// older schema are patched here.
var requiredIndexes = []struct {
	model any
	name  string
}{
	{&models.User{}, "Email"},
	{&models.Task{}, "idx_tasks_owner"},
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB, log *slog.Logger) error {
	log.Info("running database migrations")
	if err := db.AutoMigrate(&models.User{}, &models.Task{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := ensureIndexes(db, log); err != nil {
		return err
	}

	log.Info("database migrations completed")
	return nil
}

func ensureIndexes(db *gorm.DB, log *slog.Logger) error {
	migrator := db.Migrator()
	for _, idx := range requiredIndexes {
		if migrator.HasIndex(idx.model, idx.name) {
			continue
		}

		if err := migrator.CreateIndex(idx.model, idx.name); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
		log.Info("created index", "index", idx.name)
	}
	return nil
}
