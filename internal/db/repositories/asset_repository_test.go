package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/matter-platform/search-core/internal/db/models"
)

var (
	assetCols       = []string{"id", "search_id", "name", "type", "properties", "created_at", "updated_at"}
	requirementCols = []string{"id", "asset_id", "parameter", "value", "unit", "created_at", "updated_at"}
)

func TestAssetRepository_Create(t *testing.T) {
	conn, mock := newMock(t)
	searchID := uuid.New()
	mock.ExpectExec("INSERT INTO assets").
		WithArgs(sqlmock.AnyArg(), searchID, "Port of Rotterdam", "facility", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	a := &models.Asset{SearchID: searchID, Name: "Port of Rotterdam", Type: "facility"}
	if err := NewAssetRepository(conn).Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	expectationsMet(t, mock)
}

func TestAssetRepository_Update(t *testing.T) {
	conn, mock := newMock(t)
	a := &models.Asset{ID: uuid.New(), SearchID: uuid.New(), Name: "renamed", Type: "facility"}
	now := time.Now()
	mock.ExpectQuery("UPDATE assets").
		WithArgs(a.ID, "renamed", "facility", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(mock.NewRows(assetCols).AddRow(a.ID, a.SearchID, "renamed", "facility", []byte(`{}`), now, now))

	if err := NewAssetRepository(conn).Update(context.Background(), a); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !a.UpdatedAt.Equal(now) {
		t.Error("expected row to be refreshed from RETURNING")
	}
}

func TestAssetRepository_Update_NotFound(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery("UPDATE assets").WillReturnRows(mock.NewRows(assetCols))

	err := NewAssetRepository(conn).Update(context.Background(), &models.Asset{ID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAssetRepository_ListBySearch(t *testing.T) {
	conn, mock := newMock(t)
	searchID := uuid.New()
	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM assets WHERE search_id").
		WithArgs(searchID).
		WillReturnRows(mock.NewRows(assetCols).
			AddRow(uuid.New(), searchID, "a", "vessel", []byte(`{"imo":"9321483"}`), now, now))

	assets, err := NewAssetRepository(conn).ListBySearch(context.Background(), searchID)
	if err != nil {
		t.Fatalf("ListBySearch: %v", err)
	}
	if len(assets) != 1 || assets[0].Properties["imo"] != "9321483" {
		t.Errorf("unexpected assets: %+v", assets)
	}
}

func TestAssetRepository_CreateRequirement(t *testing.T) {
	conn, mock := newMock(t)
	assetID := uuid.New()
	mock.ExpectExec("INSERT INTO requirements").
		WithArgs(sqlmock.AnyArg(), assetID, "resolution", 0.5, "m", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := &models.Requirement{AssetID: assetID, Parameter: "resolution", Value: 0.5, Unit: "m"}
	if err := NewAssetRepository(conn).CreateRequirement(context.Background(), req); err != nil {
		t.Fatalf("CreateRequirement: %v", err)
	}
	expectationsMet(t, mock)
}

func TestAssetRepository_UpdateRequirement_NotFound(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery("UPDATE requirements").WillReturnRows(mock.NewRows(requirementCols))

	err := NewAssetRepository(conn).UpdateRequirement(context.Background(), &models.Requirement{ID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAssetRepository_GetRequirement(t *testing.T) {
	conn, mock := newMock(t)
	id, assetID := uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM requirements WHERE id").
		WithArgs(id).
		WillReturnRows(mock.NewRows(requirementCols).AddRow(id, assetID, "revisit", 24.0, "h", now, now))

	req, err := NewAssetRepository(conn).GetRequirement(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRequirement: %v", err)
	}
	if req.Value != 24 || req.Unit != "h" {
		t.Errorf("unexpected requirement: %+v", req)
	}
}
