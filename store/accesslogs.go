package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type AccessLogInterface interface {
	Create(ctx context.Context, requestID uuid.UUID, scriptID int64, ip, userAgent *string) (*AccessLog, error)
	List(ctx context.Context, requestID uuid.UUID, filter AccessLogFilter) ([]AccessLog, error)
	Count(ctx context.Context, requestID uuid.UUID) (int64, error)
	CountByScript(ctx context.Context, requestID uuid.UUID, scriptID int64) (int64, error)
}

var _ AccessLogInterface = (*AccessLogStore)(nil)

type AccessLogStore struct {
	db  *gorm.DB
	log *zerolog.Logger
}

func NewAccessLogStore(db *gorm.DB, log *zerolog.Logger) AccessLogInterface {
	return &AccessLogStore{
		db:  db,
		log: log,
	}
}

// Create appends an access log row. The script id is not checked against
// the scripts table.
func (a *AccessLogStore) Create(ctx context.Context, requestID uuid.UUID, scriptID int64, ip, userAgent *string) (*AccessLog, error) {
	log := a.log.With().
		Str(MethodStrHelper, "accesslog.Create").
		Str(RequestID, requestID.String()).
		Logger()

	log.Info().Msgf("Got a request to log access to script %d", scriptID)

	entry := AccessLog{
		ScriptID:  scriptID,
		IP:        ip,
		UserAgent: userAgent,
	}

	if err := a.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Err(err).Msg("Failed to create access log")
		return nil, err
	}

	return &entry, nil
}

func (a *AccessLogStore) List(ctx context.Context, requestID uuid.UUID, filter AccessLogFilter) ([]AccessLog, error) {
	log := a.log.With().
		Str(MethodStrHelper, "accesslog.List").
		Str(RequestID, requestID.String()).
		Logger()

	log.Info().Msg("Got a request to list access logs")

	entries := []AccessLog{}

	q := a.db.WithContext(ctx).
		Model(&AccessLog{}).
		Order("timestamp DESC").
		Order("id DESC")

	if filter.ScriptID != nil {
		q = q.Where("script_id = ?", *filter.ScriptID)
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	if err := q.Find(&entries).Error; err != nil {
		log.Err(err).Msg("Failed to list access logs")
		return nil, err
	}

	return entries, nil
}

func (a *AccessLogStore) Count(ctx context.Context, requestID uuid.UUID) (int64, error) {
	return a.count(ctx, requestID, nil)
}

func (a *AccessLogStore) CountByScript(ctx context.Context, requestID uuid.UUID, scriptID int64) (int64, error) {
	return a.count(ctx, requestID, &scriptID)
}

func (a *AccessLogStore) count(ctx context.Context, requestID uuid.UUID, scriptID *int64) (int64, error) {
	log := a.log.With().
		Str(MethodStrHelper, "accesslog.Count").
		Str(RequestID, requestID.String()).
		Logger()

	var total int64

	q := a.db.WithContext(ctx).Model(&AccessLog{})
	if scriptID != nil {
		q = q.Where("script_id = ?", *scriptID)
	}

	if err := q.Count(&total).Error; err != nil {
		log.Err(err).Msg("Failed to count access logs")
		return 0, err
	}

	return total, nil
}
