package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type ScriptInterface interface {
	Create(ctx context.Context, requestID uuid.UUID, name, content string) (*Script, error)
	List(ctx context.Context, requestID uuid.UUID, filter ScriptFilter) ([]Script, error)
	Get(ctx context.Context, requestID uuid.UUID, id int64) (*Script, error)
	Update(ctx context.Context, requestID uuid.UUID, id int64, patch ScriptPatch) (*Script, error)
	Delete(ctx context.Context, requestID uuid.UUID, id int64) (bool, error)
	Count(ctx context.Context, requestID uuid.UUID) (int64, error)
}

// Compile-time check
var _ ScriptInterface = (*ScriptStore)(nil)

type ScriptStore struct {
	db  *gorm.DB
	log *zerolog.Logger
}

func NewScriptStore(db *gorm.DB, log *zerolog.Logger) ScriptInterface {
	return &ScriptStore{
		db:  db,
		log: log,
	}
}

func (s *ScriptStore) Create(ctx context.Context, requestID uuid.UUID, name, content string) (*Script, error) {
	log := s.log.With().
		Str(MethodStrHelper, "script.Create").
		Str(RequestID, requestID.String()).
		Logger()

	log.Info().Msg("Got a request to create script")

	if strings.TrimSpace(name) == "" {
		return nil, required("name")
	}

	if strings.TrimSpace(content) == "" {
		return nil, required("content")
	}

	script := Script{Name: name, Content: content}

	if err := s.db.WithContext(ctx).Create(&script).Error; err != nil {
		log.Err(err).Msg("Failed to create script")
		return nil, err
	}

	return &script, nil
}

// List returns scripts newest first. The id tie-break keeps the order
// total when two rows share a creation timestamp.
func (s *ScriptStore) List(ctx context.Context, requestID uuid.UUID, filter ScriptFilter) ([]Script, error) {
	log := s.log.With().
		Str(MethodStrHelper, "script.List").
		Str(RequestID, requestID.String()).
		Logger()

	log.Info().Msg("Got a request to list scripts")

	scripts := []Script{}

	q := s.db.WithContext(ctx).
		Model(&Script{}).
		Order("created_at DESC").
		Order("id DESC")

	if search := strings.TrimSpace(filter.Search); search != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(search))+"%")
	}

	if err := q.Find(&scripts).Error; err != nil {
		log.Err(err).Msg("Failed to list scripts")
		return nil, err
	}

	return scripts, nil
}

func (s *ScriptStore) Get(ctx context.Context, requestID uuid.UUID, id int64) (*Script, error) {
	log := s.log.With().
		Str(MethodStrHelper, "script.Get").
		Str(RequestID, requestID.String()).
		Logger()

	log.Info().Msgf("Got a request to get script %d", id)

	return findScript(s.db.WithContext(ctx), id)
}

func (s *ScriptStore) Update(ctx context.Context, requestID uuid.UUID, id int64, patch ScriptPatch) (*Script, error) {
	log := s.log.With().
		Str(MethodStrHelper, "script.Update").
		Str(RequestID, requestID.String()).
		Logger()

	log.Info().Msgf("Got a request to update script %d", id)

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, required("name")
	}

	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		return nil, required("content")
	}

	var updated *Script

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := findScript(tx, id)
		if err != nil || current == nil {
			return err
		}

		changes := map[string]interface{}{}
		if patch.Name != nil {
			changes["name"] = *patch.Name
		}
		if patch.Content != nil {
			changes["content"] = *patch.Content
		}

		if len(changes) > 0 {
			if err = tx.Model(&Script{}).Where("id = ?", id).Updates(changes).Error; err != nil {
				return err
			}
		}

		updated, err = findScript(tx, id)
		return err
	})
	if err != nil {
		log.Err(err).Msg("Failed to update script")
		return nil, err
	}

	return updated, nil
}

// Delete removes the script's access logs and then the script itself in
// one transaction.
func (s *ScriptStore) Delete(ctx context.Context, requestID uuid.UUID, id int64) (bool, error) {
	log := s.log.With().
		Str(MethodStrHelper, "script.Delete").
		Str(RequestID, requestID.String()).
		Logger()

	log.Info().Msgf("Got request to delete script with ID %v", id)

	var removed bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("script_id = ?", id).Delete(&AccessLog{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&Script{})
		if res.Error != nil {
			return res.Error
		}

		removed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		log.Err(err).Msg("Failed to delete script")
		return false, err
	}

	return removed, nil
}

func (s *ScriptStore) Count(ctx context.Context, requestID uuid.UUID) (int64, error) {
	log := s.log.With().
		Str(MethodStrHelper, "script.Count").
		Str(RequestID, requestID.String()).
		Logger()

	var total int64

	if err := s.db.WithContext(ctx).Model(&Script{}).Count(&total).Error; err != nil {
		log.Err(err).Msg("Failed to count scripts")
		return 0, err
	}

	return total, nil
}

func findScript(db *gorm.DB, id int64) (*Script, error) {
	var script Script

	if err := db.Where("id = ?", id).First(&script).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &script, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
