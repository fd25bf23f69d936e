package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
)

// RequestMeta carries caller metadata recorded on audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuditWriter appends immutable audit entries. Implementations join the
// transaction carried by the context, if any.
type AuditWriter interface {
	Save(ctx context.Context, entry *models.AuditLogDB) error
}

// AuditReader lists audit entries.
type AuditReader interface {
	ListByActor(ctx context.Context, actor uuid.UUID, limit int) ([]models.AuditLogDB, error)
}

// DefaultActivityLimit bounds activity listings when the caller passes no limit.
const DefaultActivityLimit = 50

// AuditService records and lists audit log entries.
type AuditService struct {
	writer AuditWriter
	reader AuditReader
}

func NewAuditService(writer AuditWriter, reader AuditReader) *AuditService {
	return &AuditService{writer: writer, reader: reader}
}

// Record appends one audit entry. When called inside a unit of work the
// entry commits or rolls back with it.
func (s *AuditService) Record(ctx context.Context, actor uuid.UUID, action, target, detail string, meta RequestMeta) error {
	entry := &models.AuditLogDB{
		AuditID:   uuid.New(),
		Actor:     uuid.NullUUID{UUID: actor, Valid: actor != uuid.Nil},
		Action:    action,
		Target:    target,
		Detail:    detail,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}

	if err := s.writer.Save(ctx, entry); err != nil {
		logger.Log.Errorw("failed to record audit entry", "action", action, "target", target, "error", err)
		return err
	}
	return nil
}

// Activity returns the most recent audit entries for an actor.
func (s *AuditService) Activity(ctx context.Context, actor uuid.UUID, limit int) ([]models.AuditLogDB, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	entries, err := s.reader.ListByActor(ctx, actor, limit)
	if err != nil {
		logger.Log.Errorw("failed to list audit activity", "actor", actor, "error", err)
		return nil, err
	}
	return entries, nil
}
