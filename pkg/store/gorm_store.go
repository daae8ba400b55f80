package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/olash/SignalReach-sub000/pkg/domain"
)

const (
	migrateLockID   int64 = 51624017
	insertBatchSize       = 200
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewGormStoreFromDB wraps an already opened connection without migrating.
func NewGormStoreFromDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func migrate(tx *gorm.DB) error {
	if err := tx.AutoMigrate(&WorkspaceModel{}, &SignalModel{}, &DeletedSignalKeyModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := tx.Exec(`
		DO $$
		BEGIN
			DELETE FROM signals s
			WHERE NOT EXISTS (SELECT 1 FROM workspaces w WHERE w.id = s.workspace_id);
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'signals'
				AND constraint_name = 'signals_workspace_id_fkey'
			) THEN
				ALTER TABLE signals
				ADD CONSTRAINT signals_workspace_id_fkey
				FOREIGN KEY (workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE;
			END IF;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("ensure signal foreign key: %w", err)
	}
	// Legacy rows were written with the old status labels.
	if err := tx.Exec(`
		UPDATE signals SET status = CASE status
			WHEN 'drafted' THEN 'action_required'
			WHEN 'dismissed' THEN 'discarded'
			WHEN 'replied' THEN 'engaged'
			ELSE status END
		WHERE status IN ('drafted', 'dismissed', 'replied');
	`).Error; err != nil {
		return fmt.Errorf("normalize signal statuses: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateWorkspace inserts a new workspace.
func (s *GormStore) CreateWorkspace(w domain.Workspace) error {
	model := workspaceToModel(w)
	return s.db.Create(&model).Error
}

// UpdateWorkspace overwrites name, keywords and frequency.
func (s *GormStore) UpdateWorkspace(w domain.Workspace) error {
	res := s.db.Model(&WorkspaceModel{}).Where("id = ?", w.ID).Updates(map[string]any{
		"name":       w.Name,
		"keywords":   w.Keywords,
		"frequency":  string(w.Frequency),
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetWorkspace(id string) (domain.Workspace, bool, error) {
	var model WorkspaceModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Workspace{}, false, nil
		}
		return domain.Workspace{}, false, err
	}
	return workspaceFromModel(model), true, nil
}

// ListWorkspacesByOwner returns the owner's workspaces in creation order.
func (s *GormStore) ListWorkspacesByOwner(ownerID string) ([]domain.Workspace, error) {
	return s.listWorkspaces("owner_id = ?", ownerID)
}

// ListKeywordWorkspaces returns every workspace with a non-null keyword list.
func (s *GormStore) ListKeywordWorkspaces() ([]domain.Workspace, error) {
	return s.listWorkspaces("keywords IS NOT NULL")
}

func (s *GormStore) listWorkspaces(query string, args ...any) ([]domain.Workspace, error) {
	var models []WorkspaceModel
	if err := s.db.Where(query, args...).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Workspace, 0, len(models))
	for _, m := range models {
		res = append(res, workspaceFromModel(m))
	}
	return res, nil
}

func (s *GormStore) MarkWorkspaceScraped(id string, at time.Time) error {
	return s.db.Model(&WorkspaceModel{}).Where("id = ?", id).Update("last_scraped_at", at.UTC()).Error
}

// InsertSignals batch-inserts signals and returns how many rows were written.
// Rows whose dedup key already exists, or belonged to a deleted signal, are
// skipped.
func (s *GormStore) InsertSignals(signals []domain.Signal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}
	removed, err := s.removedKeys(signals)
	if err != nil {
		return 0, fmt.Errorf("load deleted signal keys: %w", err)
	}
	models := make([]SignalModel, 0, len(signals))
	for _, sig := range prepareSignals(signals) {
		if _, gone := removed[sig.DedupKey]; gone {
			continue
		}
		models = append(models, signalToModel(sig))
	}
	if len(models) == 0 {
		return 0, nil
	}
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).CreateInBatches(&models, insertBatchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// ListSignals returns a workspace's signals, newest first.
func (s *GormStore) ListSignals(workspaceID string, filter domain.SignalFilter) ([]domain.Signal, error) {
	tx := s.db.Where("workspace_id = ?", workspaceID)
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		tx = tx.Where("(content ILIKE ? OR author ILIKE ?)", pattern, pattern)
	}
	var models []SignalModel
	if err := tx.Order("created_at DESC").Limit(signalLimit(filter.Limit)).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Signal, 0, len(models))
	for _, m := range models {
		res = append(res, signalFromModel(m))
	}
	return res, nil
}

func (s *GormStore) GetSignal(id string) (domain.Signal, bool, error) {
	var model SignalModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Signal{}, false, nil
		}
		return domain.Signal{}, false, err
	}
	return signalFromModel(model), true, nil
}

// UpdateSignal applies a partial update as a single statement.
func (s *GormStore) UpdateSignal(id string, update domain.SignalUpdate) error {
	values := map[string]any{"updated_at": time.Now().UTC()}
	if update.Status != nil {
		values["status"] = string(*update.Status)
	}
	if update.ReplyText != nil {
		values["reply_text"] = *update.ReplyText
	}
	res := s.db.Model(&SignalModel{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) removedKeys(signals []domain.Signal) (map[string]struct{}, error) {
	keys := make([]string, 0, len(signals))
	for _, sig := range signals {
		if sig.DedupKey != "" {
			keys = append(keys, sig.DedupKey)
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}
	var found []string
	if err := s.db.Model(&DeletedSignalKeyModel{}).Where("dedup_key IN ?", keys).Pluck("dedup_key", &found).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(found))
	for _, k := range found {
		out[k] = struct{}{}
	}
	return out, nil
}

// DeleteSignal removes the row and records its dedup key in the same
// transaction.
func (s *GormStore) DeleteSignal(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model SignalModel
		if err := tx.Select("id", "workspace_id", "dedup_key").First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if model.DedupKey != nil && *model.DedupKey != "" {
			tomb := DeletedSignalKeyModel{
				DedupKey:    *model.DedupKey,
				WorkspaceID: model.WorkspaceID,
				RemovedAt:   time.Now().UTC(),
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tomb).Error; err != nil {
				return fmt.Errorf("record deleted signal key: %w", err)
			}
		}
		res := tx.Delete(&SignalModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// prepareSignals fills ids and timestamps left empty by callers.
func prepareSignals(signals []domain.Signal) []domain.Signal {
	now := time.Now().UTC()
	out := make([]domain.Signal, len(signals))
	for i, sig := range signals {
		if sig.ID == "" {
			sig.ID = uuid.NewString()
		}
		if sig.Status == "" {
			sig.Status = domain.StatusNew
		}
		if sig.CreatedAt.IsZero() {
			sig.CreatedAt = now
		}
		if sig.UpdatedAt.IsZero() {
			sig.UpdatedAt = sig.CreatedAt
		}
		out[i] = sig
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func workspaceToModel(w domain.Workspace) WorkspaceModel {
	return WorkspaceModel{
		ID:            w.ID,
		OwnerID:       w.OwnerID,
		Name:          w.Name,
		Keywords:      w.Keywords,
		Frequency:     string(w.Frequency),
		LastScrapedAt: w.LastScrapedAt,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

func workspaceFromModel(m WorkspaceModel) domain.Workspace {
	return domain.Workspace{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		Name:          m.Name,
		Keywords:      m.Keywords,
		Frequency:     domain.ScrapeFrequency(m.Frequency),
		LastScrapedAt: m.LastScrapedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func signalToModel(sig domain.Signal) SignalModel {
	model := SignalModel{
		ID:          sig.ID,
		WorkspaceID: sig.WorkspaceID,
		Platform:    string(sig.Platform),
		Author:      sig.Author,
		Content:     sig.Content,
		URL:         sig.URL,
		Status:      string(sig.Status),
		ReplyText:   sig.ReplyText,
		CreatedAt:   sig.CreatedAt,
		UpdatedAt:   sig.UpdatedAt,
	}
	if sig.DedupKey != "" {
		key := sig.DedupKey
		model.DedupKey = &key
	}
	if len(sig.Metadata) > 0 {
		if data, err := json.Marshal(sig.Metadata); err == nil {
			model.Metadata = datatypes.JSON(data)
		}
	}
	return model
}

func signalFromModel(m SignalModel) domain.Signal {
	sig := domain.Signal{
		ID:          m.ID,
		WorkspaceID: m.WorkspaceID,
		Platform:    domain.Platform(m.Platform),
		Author:      m.Author,
		Content:     m.Content,
		URL:         m.URL,
		Status:      domain.SignalStatus(m.Status),
		ReplyText:   m.ReplyText,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.DedupKey != nil {
		sig.DedupKey = *m.DedupKey
	}
	if len(m.Metadata) > 0 {
		var meta map[string]string
		if err := json.Unmarshal(m.Metadata, &meta); err == nil {
			sig.Metadata = meta
		}
	}
	return sig
}
