package store

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/olash/SignalReach-sub000/pkg/domain"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return NewGormStoreFromDB(db), mock
}

var workspaceColumns = []string{"id", "owner_id", "name", "keywords", "frequency", "last_scraped_at", "created_at", "updated_at"}

func TestGormStoreListKeywordWorkspaces(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(workspaceColumns).
		AddRow("ws-1", "user-1", "Acme", "crm, sales", "daily", nil, now, now).
		AddRow("ws-2", "user-2", "Beta", " ", "6h", now, now, now)
	mock.ExpectQuery(`SELECT \* FROM "workspaces" WHERE keywords IS NOT NULL ORDER BY created_at ASC`).WillReturnRows(rows)

	got, err := s.ListKeywordWorkspaces()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 workspaces, got %d", len(got))
	}
	if got[0].KeywordString() != "crm, sales" || got[0].Frequency != domain.FrequencyDaily {
		t.Fatalf("unexpected first workspace: %+v", got[0])
	}
	if got[1].KeywordString() != "" || got[1].LastScrapedAt == nil {
		t.Fatalf("unexpected second workspace: %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGormStoreGetSignalNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "signals" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, ok, err := s.GetSignal("missing")
	if err != nil || ok {
		t.Fatalf("expected not found without error, got ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGormStoreDeleteSignalRecordsDedupKey(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id","workspace_id","dedup_key" FROM "signals" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "dedup_key"}).AddRow("sig-1", "ws-1", "key-1"))
	mock.ExpectExec(`INSERT INTO "deleted_signal_keys" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "signals" WHERE id = \$1`).
		WithArgs("sig-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.DeleteSignal("sig-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGormStoreDeleteMissingSignal(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id","workspace_id","dedup_key" FROM "signals" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "dedup_key"}))
	mock.ExpectRollback()

	if err := s.DeleteSignal("sig-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertSignalsSkipsDeletedKeys(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT "dedup_key" FROM "deleted_signal_keys" WHERE dedup_key IN`).
		WillReturnRows(sqlmock.NewRows([]string{"dedup_key"}).AddRow("key-gone"))
	mock.ExpectExec(`INSERT INTO "signals" .* ON CONFLICT \("dedup_key"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.InsertSignals([]domain.Signal{
		{WorkspaceID: "ws-1", Platform: domain.PlatformReddit, Author: "a", Content: "kept", DedupKey: "key-new"},
		{WorkspaceID: "ws-1", Platform: domain.PlatformReddit, Author: "b", Content: "deleted before", DedupKey: "key-gone"},
	})
	if err != nil || n != 1 {
		t.Fatalf("expected 1 insert, got %d %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertSignalsAllDeletedSkipsInsert(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT "dedup_key" FROM "deleted_signal_keys" WHERE dedup_key IN`).
		WillReturnRows(sqlmock.NewRows([]string{"dedup_key"}).AddRow("key-gone"))

	n, err := s.InsertSignals([]domain.Signal{{WorkspaceID: "ws-1", Content: "x", DedupKey: "key-gone"}})
	if err != nil || n != 0 {
		t.Fatalf("expected no insert, got %d %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGormStoreUpdateSignalMissingRow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE "signals" SET .*"status"=.* WHERE id = `).
		WillReturnResult(sqlmock.NewResult(0, 0))

	status := domain.StatusWon
	if err := s.UpdateSignal("sig-9", domain.SignalUpdate{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertSignalsEmptyBatchSkipsDatabase(t *testing.T) {
	s, mock := newMockStore(t)
	n, err := s.InsertSignals(nil)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got %d %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}
