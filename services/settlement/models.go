package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// JobStatus tracks a settlement job through dispatch.
type JobStatus string

const (
	StatusPending JobStatus = "PENDING"
	StatusSettled JobStatus = "SETTLED"
	StatusFailed  JobStatus = "FAILED"
)

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (JobStatus, error) {
	switch JobStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusSettled:
		return StatusSettled, nil
	case StatusFailed:
		return StatusFailed, nil
	}
	return "", fmt.Errorf("settlement: unknown status %q", s)
}

// Job is one reward claimed on this chain that must be paid on another.
type Job struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventKey      string    `gorm:"size:66;uniqueIndex"`
	EventType     string    `gorm:"size:96;index"`
	EventSeq      uint64
	Account       string `gorm:"size:42;index"`
	ChainID       uint64 `gorm:"index"`
	RewardID      uint64
	RewardType    string `gorm:"size:16"`
	RewardAddress string `gorm:"size:42"`
	Amount        string `gorm:"size:80"`
	TokenID       uint64
	Reference     string    `gorm:"size:128"`
	Status        JobStatus `gorm:"size:16;index"`
	Attempts      int
	LastError     string    `gorm:"size:512"`
	NextAttemptAt time.Time `gorm:"index"`
	ExternalRef   string    `gorm:"size:128"`
	SettledAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BeforeCreate assigns an id when the caller did not.
func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
	return nil
}

// AutoMigrate performs all schema migrations for the service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Job{})
}

// Open connects to the job store. Supported drivers are postgres and sqlite.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("settlement: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("settlement: open %s: %w", driver, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("settlement: migrate: %w", err)
	}
	return db, nil
}
