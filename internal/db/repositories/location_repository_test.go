package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/matter-platform/search-core/internal/db"
	"github.com/matter-platform/search-core/internal/db/models"
)

var locationCols = []string{"id", "search_id", "coordinates", "srid", "type", "area_km2", "metadata", "created_at"}

func testLocation(searchID uuid.UUID) *models.Location {
	return &models.Location{
		SearchID:    searchID,
		Coordinates: models.GeoJSON(`{"type":"Point","coordinates":[13.4,52.5]}`),
		SRID:        4326,
		Type:        "point",
	}
}

func TestLocationRepository_Create(t *testing.T) {
	conn, mock := newMock(t)
	searchID := uuid.New()
	mock.ExpectExec("INSERT INTO locations").
		WithArgs(sqlmock.AnyArg(), searchID, sqlmock.AnyArg(), 4326, "point", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	loc := testLocation(searchID)
	if err := NewLocationRepository(conn).Create(context.Background(), loc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if loc.ID == uuid.Nil || loc.CreatedAt.IsZero() {
		t.Error("expected ID and CreatedAt to be set")
	}
	expectationsMet(t, mock)
}

func TestLocationRepository_ListBySearch(t *testing.T) {
	conn, mock := newMock(t)
	searchID := uuid.New()
	area := 12.5
	rows := mock.NewRows(locationCols).
		AddRow(uuid.New(), searchID, []byte(`{"type":"Point","coordinates":[1,2]}`), 4326, "point", nil, []byte(`{}`), time.Now()).
		AddRow(uuid.New(), searchID, []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`), 4326, "area", area, []byte(`{"source":"upload"}`), time.Now())
	mock.ExpectQuery("SELECT .* FROM locations WHERE search_id = \\$1").WithArgs(searchID).WillReturnRows(rows)

	locs, err := NewLocationRepository(conn).ListBySearch(context.Background(), searchID)
	if err != nil {
		t.Fatalf("ListBySearch: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("len = %d, want 2", len(locs))
	}
	if locs[0].AreaKm2 != nil {
		t.Error("point location should have no area")
	}
	if locs[1].AreaKm2 == nil || *locs[1].AreaKm2 != 12.5 {
		t.Errorf("AreaKm2 = %v, want 12.5", locs[1].AreaKm2)
	}
	if locs[1].Metadata["source"] != "upload" {
		t.Errorf("metadata = %v", locs[1].Metadata)
	}
}

func TestLocationRepository_Replace(t *testing.T) {
	conn, mock := newMock(t)
	searchID, oldID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM locations").WithArgs(oldID, searchID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO locations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewLocationRepository(conn)
	replacement := testLocation(searchID)
	err := db.RunInTx(context.Background(), conn, func(ctx context.Context) error {
		return repo.Replace(ctx, oldID, replacement)
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if replacement.ID == oldID {
		t.Error("replacement must get a new ID")
	}
	expectationsMet(t, mock)
}

func TestLocationRepository_Replace_NotFound(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectExec("DELETE FROM locations").WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewLocationRepository(conn).Replace(context.Background(), uuid.New(), testLocation(uuid.New()))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	expectationsMet(t, mock)
}

func TestLocationRepository_GetByID_Error(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery("SELECT .* FROM locations").WillReturnError(errDB)

	if _, err := NewLocationRepository(conn).GetByID(context.Background(), uuid.New()); !errors.Is(err, errDB) {
		t.Fatalf("err = %v, want wrapped errDB", err)
	}
}
