package migrations

import (
	"github.com/truongvando/ezstream-sub000/internal/models"
	"gorm.io/gorm"
)

// migration002RecurringSchedules adds the recurrence_cron column so streams
// can restart on a cron expression instead of a one-shot scheduled_at.
func migration002RecurringSchedules() Migration {
	return Migration{
		Version:     "002",
		Description: "Add recurring schedule support to streams",
		Up: func(tx *gorm.DB) error {
			if !tx.Migrator().HasColumn(&models.Stream{}, "recurrence_cron") {
				if err := tx.Migrator().AddColumn(&models.Stream{}, "recurrence_cron"); err != nil {
					return err
				}
			}
			return nil
		},
		Down: func(tx *gorm.DB) error {
			if tx.Migrator().HasColumn(&models.Stream{}, "recurrence_cron") {
				return tx.Migrator().DropColumn(&models.Stream{}, "recurrence_cron")
			}
			return nil
		},
	}
}
