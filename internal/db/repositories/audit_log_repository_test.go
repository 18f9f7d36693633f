package repositories

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/matter-platform/search-core/internal/db/models"
)

func sqlmockResult(rows int64) driver.Result {
	return sqlmock.NewResult(0, rows)
}

func testAuditEntry() *models.AuditLogEntry {
	user := "user-1"
	return &models.AuditLogEntry{
		ID:              uuid.New(),
		EventType:       "SEARCH_UPDATED",
		TableName:       "searches",
		RecordID:        uuid.NewString(),
		NewSnapshot:     models.JSONMap{"status": "submitted"},
		ActingUserID:    &user,
		OccurredAt:      time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		RetentionPolicy: "standard",
	}
}

// ---- Insert -----------------------------------------------------------------

func TestAuditLogRepository_Insert(t *testing.T) {
	conn, mock := newMock(t)
	e := testAuditEntry()
	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(e.ID, "SEARCH_UPDATED", "searches", e.RecordID, nil, sqlmock.AnyArg(),
			"user-1", nil, nil, nil, e.OccurredAt, "standard").
		WillReturnResult(sqlmockResult(1))

	if err := NewAuditLogRepository(conn).Insert(context.Background(), e); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	expectationsMet(t, mock)
}

func TestAuditLogRepository_Insert_MissingPartition(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(&pq.Error{
		Code:    "23514",
		Message: `no partition of relation "audit_log" found for row`,
	})

	err := NewAuditLogRepository(conn).Insert(context.Background(), testAuditEntry())
	if !errors.Is(err, ErrNoPartition) {
		t.Fatalf("err = %v, want ErrNoPartition", err)
	}
}

func TestAuditLogRepository_Insert_OtherError(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(errDB)

	err := NewAuditLogRepository(conn).Insert(context.Background(), testAuditEntry())
	if errors.Is(err, ErrNoPartition) || !errors.Is(err, errDB) {
		t.Fatalf("err = %v, want wrapped errDB only", err)
	}
}

// ---- History ----------------------------------------------------------------

func TestAuditLogRepository_History(t *testing.T) {
	conn, mock := newMock(t)
	cols := []string{"id", "event_type", "table_name", "record_id", "old_snapshot", "new_snapshot",
		"acting_user_id", "origin_address", "client_id", "session_timestamp", "occurred_at", "retention_policy"}
	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM audit_log").
		WithArgs("searches", "rec-1", 100).
		WillReturnRows(mock.NewRows(cols).
			AddRow(uuid.New(), "SEARCH_UPDATED", "searches", "rec-1", []byte(`{"status":"draft"}`), []byte(`{"status":"submitted"}`),
				"user-1", "10.0.0.1", "web", now, now, "standard"))

	entries, err := NewAuditLogRepository(conn).History(context.Background(), "searches", "rec-1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].OldSnapshot["status"] != "draft" || *entries[0].ClientID != "web" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

// ---- Partitions -------------------------------------------------------------

func TestAuditLogRepository_EnsurePartition_Creates(t *testing.T) {
	conn, mock := newMock(t)
	from := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass($1) IS NOT NULL")).
		WithArgs("audit_log_y2026m11").
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(
		`CREATE TABLE IF NOT EXISTS "audit_log_y2026m11" PARTITION OF audit_log FOR VALUES FROM ('2026-11-01 00:00:00+00') TO ('2026-12-01 00:00:00+00')`,
	)).WillReturnResult(sqlmockResult(0))

	created, err := NewAuditLogRepository(conn).EnsurePartition(context.Background(), "audit_log_y2026m11", from, to)
	if err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}
	if !created {
		t.Error("expected created = true")
	}
	expectationsMet(t, mock)
}

func TestAuditLogRepository_EnsurePartition_Exists(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery("to_regclass").WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

	created, err := NewAuditLogRepository(conn).EnsurePartition(context.Background(), "audit_log_y2026m10", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("EnsurePartition: %v", err)
	}
	if created {
		t.Error("expected created = false")
	}
	expectationsMet(t, mock)
}

func TestAuditLogRepository_EnsurePartition_ConcurrentCreate(t *testing.T) {
	tests := []struct {
		name string
		code pq.ErrorCode
	}{
		{"duplicate table", "42P07"},
		{"catalog unique violation", "23505"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock := newMock(t)
			mock.ExpectQuery("to_regclass").WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnError(&pq.Error{Code: tt.code})

			created, err := NewAuditLogRepository(conn).EnsurePartition(context.Background(), "audit_log_y2026m11", time.Now(), time.Now())
			if err != nil {
				t.Fatalf("EnsurePartition: %v", err)
			}
			if created {
				t.Error("expected created = false when another maintainer won")
			}
			expectationsMet(t, mock)
		})
	}
}

func TestAuditLogRepository_EnsurePartition_CreateFails(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery("to_regclass").WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnError(&pq.Error{Code: "42501", Message: "permission denied"})

	if _, err := NewAuditLogRepository(conn).EnsurePartition(context.Background(), "audit_log_y2026m11", time.Now(), time.Now()); err == nil {
		t.Fatal("expected error")
	}
}

func TestAuditLogRepository_PurgePartition_LockFails(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectBegin()
	for range cutoffs() {
		mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmockResult(0))
	}
	mock.ExpectExec("LOCK TABLE").WillReturnError(errDB)
	mock.ExpectRollback()

	_, err := NewAuditLogRepository(conn).PurgePartition(context.Background(), "audit_log_y2020m01", cutoffs(), true)
	if !errors.Is(err, errDB) {
		t.Fatalf("err = %v, want wrapped errDB", err)
	}
	expectationsMet(t, mock)
}

func TestAuditLogRepository_EnsurePartition_RejectsBadName(t *testing.T) {
	conn, _ := newMock(t)
	_, err := NewAuditLogRepository(conn).EnsurePartition(context.Background(), "audit_log; DROP TABLE searches", time.Now(), time.Now())
	if err == nil {
		t.Fatal("expected error for invalid partition name")
	}
}

func TestAuditLogRepository_ListPartitions(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery("FROM pg_inherits").
		WillReturnRows(mock.NewRows([]string{"relname"}).AddRow("audit_log_y2024m01").AddRow("audit_log_y2024m02"))

	names, err := NewAuditLogRepository(conn).ListPartitions(context.Background())
	if err != nil {
		t.Fatalf("ListPartitions: %v", err)
	}
	if len(names) != 2 || names[0] != "audit_log_y2024m01" {
		t.Errorf("names = %v", names)
	}
}

func cutoffs() []RetentionCutoff {
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	return []RetentionCutoff{
		{Policy: "standard", Before: now.AddDate(0, 0, -730)},
		{Policy: "sensitive", Before: now.AddDate(0, 0, -1825)},
		{Policy: "extended", Before: now.AddDate(0, 0, -3650)},
	}
}

func TestAuditLogRepository_PurgePartition_DropsEmpty(t *testing.T) {
	conn, mock := newMock(t)
	c := cutoffs()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "audit_log_y2020m01"`)).WithArgs("standard", c[0].Before).WillReturnResult(sqlmockResult(7))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "audit_log_y2020m01"`)).WithArgs("sensitive", c[1].Before).WillReturnResult(sqlmockResult(0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "audit_log_y2020m01"`)).WithArgs("extended", c[2].Before).WillReturnResult(sqlmockResult(0))
	mock.ExpectExec(regexp.QuoteMeta(`LOCK TABLE "audit_log_y2020m01" IN ACCESS EXCLUSIVE MODE`)).WillReturnResult(sqlmockResult(0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM "audit_log_y2020m01")`)).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE "audit_log_y2020m01"`)).WillReturnResult(sqlmockResult(0))
	mock.ExpectCommit()

	res, err := NewAuditLogRepository(conn).PurgePartition(context.Background(), "audit_log_y2020m01", c, true)
	if err != nil {
		t.Fatalf("PurgePartition: %v", err)
	}
	if res.Deleted["standard"] != 7 || !res.Dropped {
		t.Errorf("unexpected result: %+v", res)
	}
	expectationsMet(t, mock)
}

func TestAuditLogRepository_PurgePartition_KeepsNonEmpty(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectBegin()
	for i := 0; i < 3; i++ {
		mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmockResult(1))
	}
	mock.ExpectExec("LOCK TABLE").WillReturnResult(sqlmockResult(0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	res, err := NewAuditLogRepository(conn).PurgePartition(context.Background(), "audit_log_y2020m01", cutoffs(), true)
	if err != nil {
		t.Fatalf("PurgePartition: %v", err)
	}
	if res.Dropped {
		t.Error("non-empty partition must not be dropped")
	}
	expectationsMet(t, mock)
}

func TestAuditLogRepository_PurgePartition_NotDroppable(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectBegin()
	for i := 0; i < 3; i++ {
		mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmockResult(0))
	}
	mock.ExpectCommit()

	res, err := NewAuditLogRepository(conn).PurgePartition(context.Background(), "audit_log_y2025m01", cutoffs(), false)
	if err != nil {
		t.Fatalf("PurgePartition: %v", err)
	}
	if res.Dropped {
		t.Error("partition must not be dropped")
	}
	expectationsMet(t, mock)
}

func TestAuditLogRepository_PurgePartition_RollsBack(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmockResult(3))
	mock.ExpectExec("DELETE FROM").WillReturnError(errDB)
	mock.ExpectRollback()

	_, err := NewAuditLogRepository(conn).PurgePartition(context.Background(), "audit_log_y2020m01", cutoffs(), true)
	if !errors.Is(err, errDB) {
		t.Fatalf("err = %v, want wrapped errDB", err)
	}
	expectationsMet(t, mock)
}
