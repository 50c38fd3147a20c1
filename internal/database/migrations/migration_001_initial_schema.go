package migrations

import (
	"github.com/truongvando/ezstream-sub000/internal/models"
	"gorm.io/gorm"
)

// migration001InitialSchema creates the core tables: streams, playlist items,
// worker nodes, and subscription limits.
func migration001InitialSchema() Migration {
	return Migration{
		Version:     "001",
		Description: "Initial schema",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Stream{},
				&models.PlaylistItem{},
				&models.WorkerNode{},
				&models.SubscriptionLimit{},
			)
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.PlaylistItem{},
				&models.Stream{},
				&models.WorkerNode{},
				&models.SubscriptionLimit{},
			)
		},
	}
}
