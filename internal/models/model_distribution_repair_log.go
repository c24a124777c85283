package models

import (
	"time"

	"gorm.io/datatypes"
)

// DistributionRepairLog records every sanctioned delete-and-recreate of
// distribution rows. Repairs are the only corrective path; TokenAmount
// is never mutated in place.
type DistributionRepairLog struct {
	ID               string                                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID           string                                    `gorm:"column:user_id;type:varchar(64);index:idx_repair_log_user_id" json:"user_id"`
	SubscriptionID   string                                    `gorm:"column:subscription_id;type:uuid" json:"subscription_id"`
	DistributionDate string                                    `gorm:"column:distribution_date;type:varchar(10);not null" json:"distribution_date"`
	OperatorID       string                                    `gorm:"column:operator_id;type:varchar(64);not null" json:"operator_id"`
	Removed          datatypes.JSONType[[]*TokenDistribution]  `gorm:"column:removed;type:jsonb" json:"removed"`
	Recreated        datatypes.JSONType[[]*TokenDistribution]  `gorm:"column:recreated;type:jsonb" json:"recreated"`
	Extra            datatypes.JSONMap                         `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	// CreatedAt is managed by GORM and records the creation time.
	CreatedAt time.Time `json:"created_at"`
}

func (DistributionRepairLog) TableName() string {
	return "distribution_repair_log"
}
