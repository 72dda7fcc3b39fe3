package repository

import (
	"errors"
	"testing"
	"time"

	"storefront-builder/domain/entity"
	domainErrors "storefront-builder/domain/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ========== GORM 网关测试（sqlmock） ==========

func newMockGateway(t *testing.T) (*pageGateway, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewPageGateway(db).(*pageGateway), mock
}

var pageColumns = []string{"id", "site_key", "page_key", "name", "draft", "theme", "published", "published_theme", "is_published", "published_at", "version", "created_at", "updated_at"}

func TestPageGateway_LoadDraft(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		gw, mock := newMockGateway(t)
		mock.ExpectQuery(`SELECT \* FROM "pages" WHERE page_key = \$1`).
			WillReturnRows(sqlmock.NewRows(pageColumns))

		_, err := gw.LoadDraft("acme/home")
		assert.ErrorIs(t, err, domainErrors.ErrPageNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("legacy document upgraded", func(t *testing.T) {
		gw, mock := newMockGateway(t)
		now := time.Now()
		mock.ExpectQuery(`SELECT \* FROM "pages"`).
			WillReturnRows(sqlmock.NewRows(pageColumns).AddRow(
				1, "acme", "acme/home", "Home",
				[]byte(`{"sections":[{"id":"a","type":"hero"}]}`),
				[]byte(`{"accentColor":"#123456"}`),
				nil, nil, false, nil, 3, now, now,
			))

		draft, err := gw.LoadDraft("acme/home")
		require.NoError(t, err)
		require.Len(t, draft.Layout, 1)
		assert.Equal(t, "a", draft.Layout[0].ID)
		assert.NotNil(t, draft.Layout[0].Blocks)
		require.NotNil(t, draft.Theme)
		assert.Equal(t, "#123456", draft.Theme.AccentColor)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unpublished page has no published snapshot", func(t *testing.T) {
		gw, mock := newMockGateway(t)
		now := time.Now()
		mock.ExpectQuery(`SELECT \* FROM "pages"`).
			WillReturnRows(sqlmock.NewRows(pageColumns).AddRow(
				1, "acme", "acme/home", "Home", []byte(`[]`), nil, nil, nil, false, nil, 1, now, now,
			))

		_, err := gw.LoadPublished("acme/home")
		assert.ErrorIs(t, err, domainErrors.ErrPageNotFound)
	})
}

func TestPageGateway_LoadPublishedUsesPublishedTheme(t *testing.T) {
	t.Run("draft theme does not leak", func(t *testing.T) {
		gw, mock := newMockGateway(t)
		now := time.Now()
		mock.ExpectQuery(`SELECT \* FROM "pages"`).
			WillReturnRows(sqlmock.NewRows(pageColumns).AddRow(
				1, "acme", "acme/home", "Home",
				[]byte(`[]`),
				[]byte(`{"accentColor":"#draft-only"}`),
				[]byte(`[{"id":"a","type":"hero","data":{"title":"live"}}]`),
				[]byte(`{"accentColor":"#published"}`),
				true, now, 2, now, now,
			))

		page, err := gw.LoadPublished("acme/home")
		require.NoError(t, err)
		require.Len(t, page.Layout, 1)
		require.NotNil(t, page.Theme)
		assert.Equal(t, "#published", page.Theme.AccentColor)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("published without theme", func(t *testing.T) {
		gw, mock := newMockGateway(t)
		now := time.Now()
		mock.ExpectQuery(`SELECT \* FROM "pages"`).
			WillReturnRows(sqlmock.NewRows(pageColumns).AddRow(
				1, "acme", "acme/home", "Home",
				[]byte(`[]`), []byte(`{"accentColor":"#draft-only"}`), []byte(`[]`), nil,
				true, now, 2, now, now,
			))

		page, err := gw.LoadPublished("acme/home")
		require.NoError(t, err)
		assert.Nil(t, page.Theme)
	})
}

func TestPageGateway_SaveDraftCreatesPage(t *testing.T) {
	gw, mock := newMockGateway(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "pages"`).WillReturnRows(sqlmock.NewRows(pageColumns))
	mock.ExpectQuery(`INSERT INTO "pages"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	require.NoError(t, gw.SaveDraft("acme/about", heroDoc("a", "x"), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPageGateway_SaveDraftUpdatesExisting(t *testing.T) {
	gw, mock := newMockGateway(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "pages"`).
		WillReturnRows(sqlmock.NewRows(pageColumns).AddRow(
			7, "acme", "acme/home", "Home", []byte(`[]`), nil, nil, nil, false, nil, 1, now, now,
		))
	mock.ExpectExec(`UPDATE "pages" SET .*"version"=version \+ \$`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	theme := entity.DefaultTheme()
	require.NoError(t, gw.SaveDraft("acme/home", heroDoc("a", "x"), &theme))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPageGateway_FailuresRollBack(t *testing.T) {
	gw, mock := newMockGateway(t)
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "pages"`).WillReturnError(boom)
	mock.ExpectRollback()

	err := gw.Publish("acme/home", heroDoc("a", "x"), nil)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())

	// 非法 key 不触达数据库
	assert.ErrorIs(t, gw.SaveDraft("acme", nil, nil), domainErrors.ErrInvalidPageKey)
	assert.ErrorIs(t, gw.Publish("/home", nil, nil), domainErrors.ErrInvalidPageKey)
}

func TestPageGateway_PublishUpdatesExisting(t *testing.T) {
	gw, mock := newMockGateway(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "pages"`).
		WillReturnRows(sqlmock.NewRows(pageColumns).AddRow(
			7, "acme", "acme/home", "Home", []byte(`[]`), nil, nil, nil, false, nil, 1, now, now,
		))
	mock.ExpectExec(`UPDATE "pages" SET .*"is_published"=.*"published_theme"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	theme := entity.DefaultTheme()
	require.NoError(t, gw.Publish("acme/home", heroDoc("a", "x"), &theme))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPageGateway_ListPages(t *testing.T) {
	gw, mock := newMockGateway(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM "pages" WHERE site_key = \$1 ORDER BY page_key`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"page_key", "site_key", "name", "is_published", "published_at", "updated_at"}).
			AddRow("acme/about", "acme", "about", false, nil, now).
			AddRow("acme/home", "acme", "Home", true, now, now))

	pages, err := gw.ListPages("acme")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "acme/about", pages[0].Key)
	assert.Nil(t, pages[0].PublishedAt)
	assert.True(t, pages[1].IsPublished)
	assert.NotNil(t, pages[1].PublishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
