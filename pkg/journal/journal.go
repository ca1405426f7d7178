// Package journal records submitted transactions in a local database so the
// same signed envelope is not blindly sent twice.
package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Status is the lifecycle state of a submission.
type Status string

const (
	// StatusPending is recorded before the envelope is handed to the node.
	StatusPending Status = "pending"
	// StatusAccepted means the node queued the transaction.
	StatusAccepted Status = "accepted"
	// StatusRejected means the node answered with an error.
	StatusRejected Status = "rejected"
	// StatusUnknown means the exchange failed and the node may or may not
	// have received the envelope.
	StatusUnknown Status = "unknown"
)

var (
	// ErrAlreadySubmitted is returned by Reserve for an envelope that is
	// pending, accepted or in an unknown state.
	ErrAlreadySubmitted = errors.New("transaction already submitted")
	// ErrNotFound is returned for a hash that was never recorded.
	ErrNotFound = errors.New("submission not found")
)

// Submission is one signed envelope and what happened to it.
type Submission struct {
	Hash      string    `gorm:"column:hash;primaryKey"`
	Envelope  string    `gorm:"column:envelope;type:text;not null"`
	Status    Status    `gorm:"column:status;type:varchar(16);not null;index"`
	NodeHash  string    `gorm:"column:node_hash"`
	LastError string    `gorm:"column:last_error;type:text"`
	Attempts  int       `gorm:"column:attempts;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for the Submission model
func (Submission) TableName() string {
	return "submissions"
}

// Journal stores submissions in a gorm database.
type Journal struct {
	db *gorm.DB
}

// Open opens the sqlite database at path and migrates it. An empty path
// opens a private in-memory database.
func Open(path string) (*Journal, error) {
	dsn := "file::memory:"
	if path != "" {
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %q: %w", path, err)
	}
	if path == "" {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			closeDB(db)
			return nil, fmt.Errorf("open journal: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	j, err := New(db)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	return j, nil
}

// closeDB releases the connection pool behind db.
func closeDB(db *gorm.DB) error {
	if sqlDB, err := db.DB(); err == nil {
		return sqlDB.Close()
	}
	pool := db.ConnPool
	if db.Statement != nil && db.Statement.ConnPool != nil {
		pool = db.Statement.ConnPool
	}
	if c, ok := pool.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// New wraps an open database and migrates the submissions table.
func New(db *gorm.DB) (*Journal, error) {
	if err := db.AutoMigrate(&Submission{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return closeDB(j.db)
}

// Reserve records hash as pending before it is sent. A rejected submission
// may be reserved again. Any other existing submission yields
// ErrAlreadySubmitted unless force is set.
func (j *Journal) Reserve(ctx context.Context, hash, envelope string, force bool) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Submission
		err := tx.Where("hash = ?", hash).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&Submission{
				Hash:     hash,
				Envelope: envelope,
				Status:   StatusPending,
				Attempts: 1,
			}).Error
		case err != nil:
			return err
		}

		if existing.Status != StatusRejected && !force {
			return fmt.Errorf("%w: %s is %s", ErrAlreadySubmitted, hash, existing.Status)
		}
		return tx.Model(&existing).Updates(map[string]any{
			"envelope":   envelope,
			"status":     StatusPending,
			"last_error": "",
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
	})
}

// MarkAccepted records that the node queued the transaction under nodeHash.
func (j *Journal) MarkAccepted(ctx context.Context, hash, nodeHash string) error {
	return j.update(ctx, hash, map[string]any{
		"status":     StatusAccepted,
		"node_hash":  nodeHash,
		"last_error": "",
	})
}

// MarkRejected records the node's refusal.
func (j *Journal) MarkRejected(ctx context.Context, hash string, cause error) error {
	return j.update(ctx, hash, map[string]any{
		"status":     StatusRejected,
		"last_error": errorText(cause),
	})
}

// MarkUnknown records that the outcome of the exchange is unknown.
func (j *Journal) MarkUnknown(ctx context.Context, hash string, cause error) error {
	return j.update(ctx, hash, map[string]any{
		"status":     StatusUnknown,
		"last_error": errorText(cause),
	})
}

// Get returns the submission recorded for hash.
func (j *Journal) Get(ctx context.Context, hash string) (*Submission, error) {
	var s Submission
	err := j.db.WithContext(ctx).Where("hash = ?", hash).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns submissions in the given states, oldest first. No states
// means all submissions.
func (j *Journal) List(ctx context.Context, states ...Status) ([]Submission, error) {
	q := j.db.WithContext(ctx).Order("created_at ASC")
	if len(states) > 0 {
		q = q.Where("status IN ?", states)
	}

	var out []Submission
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (j *Journal) update(ctx context.Context, hash string, fields map[string]any) error {
	res := j.db.WithContext(ctx).Model(&Submission{}).Where("hash = ?", hash).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
