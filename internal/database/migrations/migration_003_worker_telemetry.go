package migrations

import (
	"github.com/truongvando/ezstream-sub000/internal/models"
	"gorm.io/gorm"
)

// migration003WorkerTelemetry adds cpu/memory/version columns reported by
// worker heartbeats.
func migration003WorkerTelemetry() Migration {
	return Migration{
		Version:     "003",
		Description: "Add heartbeat telemetry columns to worker nodes",
		Up: func(tx *gorm.DB) error {
			for _, col := range []string{"cpu_percent", "memory_percent", "version"} {
				if !tx.Migrator().HasColumn(&models.WorkerNode{}, col) {
					if err := tx.Migrator().AddColumn(&models.WorkerNode{}, col); err != nil {
						return err
					}
				}
			}
			return nil
		},
		Down: func(tx *gorm.DB) error {
			for _, col := range []string{"cpu_percent", "memory_percent", "version"} {
				if tx.Migrator().HasColumn(&models.WorkerNode{}, col) {
					if err := tx.Migrator().DropColumn(&models.WorkerNode{}, col); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}
