package migrations

import (
	"github.com/truongvando/ezstream-sub000/internal/models"
	"gorm.io/gorm"
)

// migration004AdminUnlimited adds the quota bypass flag for administrative
// accounts.
func migration004AdminUnlimited() Migration {
	return Migration{
		Version:     "004",
		Description: "Add unlimited quota bypass flag to subscription limits",
		Up: func(tx *gorm.DB) error {
			if !tx.Migrator().HasColumn(&models.SubscriptionLimit{}, "unlimited") {
				return tx.Migrator().AddColumn(&models.SubscriptionLimit{}, "unlimited")
			}
			return nil
		},
		Down: func(tx *gorm.DB) error {
			if tx.Migrator().HasColumn(&models.SubscriptionLimit{}, "unlimited") {
				return tx.Migrator().DropColumn(&models.SubscriptionLimit{}, "unlimited")
			}
			return nil
		},
	}
}
