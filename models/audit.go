package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"doc-analysis-platform/internal/telemetry"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditEvent represents an immutable audit log entry. Events are chained
// per user: each one carries the hash of that user's previous event.
type AuditEvent struct {
	ID           string                 `bson:"_id,omitempty" json:"id"`
	Timestamp    time.Time              `bson:"timestamp" json:"timestamp"`
	UserID       int64                  `bson:"user_id" json:"user_id"`
	Action       string                 `bson:"action" json:"action"`     // CREATE, READ, DELETE
	Resource     string                 `bson:"resource" json:"resource"` // auth, file, analysis, history
	ResourceID   string                 `bson:"resource_id" json:"resource_id"`
	IPAddress    string                 `bson:"ip_address" json:"ip_address"`
	UserAgent    string                 `bson:"user_agent" json:"user_agent"`
	RequestID    string                 `bson:"request_id" json:"request_id"`
	Status       int                    `bson:"status" json:"status"`
	Success      bool                   `bson:"success" json:"success"`
	ErrorMessage string                 `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Changes      map[string]interface{} `bson:"changes,omitempty" json:"changes,omitempty"`
	PreviousHash string                 `bson:"previous_hash" json:"previous_hash"`
	CurrentHash  string                 `bson:"current_hash" json:"current_hash"`
}

// ComputeHash computes the hash of this audit event
func (e *AuditEvent) ComputeHash() string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s|%d|%t|%s",
		e.Timestamp.Format(time.RFC3339Nano),
		e.UserID,
		e.Action,
		e.Resource,
		e.ResourceID,
		e.Status,
		e.Success,
		e.PreviousHash,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// VerifyEvents checks that events, oldest first, form an unbroken chain.
// It returns the index of the first bad event, or -1.
func VerifyEvents(events []AuditEvent) int {
	previousHash := ""
	for i := range events {
		if i > 0 && events[i].PreviousHash != previousHash {
			return i
		}
		if events[i].CurrentHash != events[i].ComputeHash() {
			return i
		}
		previousHash = events[i].CurrentHash
	}
	return -1
}

type auditCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// AuditLogger handles immutable audit logging
type AuditLogger struct {
	col        auditCollection
	logger     *slog.Logger
	now        func() time.Time
	lastHashMu sync.Mutex
	lastHashes map[int64]string
}

// NewAuditLogger creates the audit collection's indexes and returns a
// logger writing to it.
func NewAuditLogger(ctx context.Context, db *mongo.Database, logger *slog.Logger) *AuditLogger {
	col := db.Collection("audit_logs")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "resource", Value: 1}, {Key: "resource_id", Value: 1}}},
		{Keys: bson.D{{Key: "request_id", Value: 1}}},
	}
	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Warn("failed to create audit indexes", "error", err)
	}

	return newAuditLogger(col, logger)
}

func newAuditLogger(col auditCollection, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		col:        col,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		lastHashes: make(map[int64]string),
	}
}

// Log stores one event, linking it to the user's previous event.
func (al *AuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	al.lastHashMu.Lock()
	defer al.lastHashMu.Unlock()

	event.PreviousHash = al.lastHashes[event.UserID]
	event.Timestamp = al.now()
	event.ID = strconv.FormatInt(event.Timestamp.UnixNano(), 10) + "_" + strconv.FormatInt(event.UserID, 10)
	event.CurrentHash = event.ComputeHash()

	// insert-only, never update
	if _, err := al.col.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	al.lastHashes[event.UserID] = event.CurrentHash
	telemetry.AuditEventsLogged.WithLabelValues(event.Action, event.Resource).Inc()
	al.logger.Debug("audit event logged", "action", event.Action, "resource", event.Resource, "resource_id", event.ResourceID)
	return nil
}

// LogAsync logs an audit event asynchronously
func (al *AuditLogger) LogAsync(event *AuditEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := al.Log(ctx, event); err != nil {
			al.logger.Error("async audit logging failed", "error", err)
		}
	}()
}

// VerifyChain loads a user's events oldest first and verifies the chain.
func (al *AuditLogger) VerifyChain(ctx context.Context, userID int64) (bool, int, error) {
	cursor, err := al.col.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return false, 0, err
	}
	defer cursor.Close(ctx)

	var events []AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return false, 0, err
	}

	if bad := VerifyEvents(events); bad >= 0 {
		al.logger.Warn("audit chain broken", "user_id", userID, "event_id", events[bad].ID)
		return false, len(events), nil
	}
	return true, len(events), nil
}
