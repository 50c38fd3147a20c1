package models

// SubscriptionLimit holds the per-owner entitlement used by quota checks.
type SubscriptionLimit struct {
	BaseModel

	OwnerID ULID   `gorm:"type:varchar(26);uniqueIndex;not null" json:"owner_id"`
	Plan    string `gorm:"default:free" json:"plan"`

	// Unlimited exempts the owner from the concurrent-stream quota check
	// entirely. Reserved for administrative accounts.
	Unlimited bool `gorm:"default:false" json:"unlimited"`

	// MaxConcurrentStreams is the number of streams the owner may have in
	// an active state at once.
	MaxConcurrentStreams int `gorm:"default:1" json:"max_concurrent_streams"`

	// MaxResolution is the highest output resolution the plan allows,
	// forwarded to workers as part of the encoding profile.
	MaxResolution string `gorm:"default:1080p" json:"max_resolution"`

	// MaxStorageBytes caps the owner's asset store, zero means unlimited.
	MaxStorageBytes int64 `json:"max_storage_bytes,omitempty"`
}

// TableName returns the database table name.
func (SubscriptionLimit) TableName() string {
	return "subscription_limits"
}

// Validate checks field constraints.
func (s *SubscriptionLimit) Validate() error {
	if s.OwnerID.IsZero() {
		return NewValidationError("owner_id", "is required")
	}
	if s.MaxConcurrentStreams < 0 {
		return NewValidationError("max_concurrent_streams", "must not be negative")
	}
	return nil
}
