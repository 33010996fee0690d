package cursor

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/channelsync-backend/pkg/db/models"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:cursor_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&models.SyncCursor{}))
	return gdb
}

func TestGetMissing(t *testing.T) {
	store := NewStore(newTestDB(t))

	value, found, err := store.Get(context.Background(), uuid.New(), enums.JobShopifyFresh, DefaultName)
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, value)
}

func TestInitializeIfAbsent(t *testing.T) {
	store := NewStore(newTestDB(t))
	integrationID := uuid.New()
	ctx := context.Background()

	changed, err := store.InitializeIfAbsent(ctx, integrationID, enums.JobShopifyFill, DefaultName, "2026-08-20T00:00:00Z")
	require.NoError(t, err)
	require.True(t, changed)

	// A second initialize never overwrites.
	changed, err = store.InitializeIfAbsent(ctx, integrationID, enums.JobShopifyFill, DefaultName, "2026-08-27T00:00:00Z")
	require.NoError(t, err)
	require.False(t, changed)

	value, found, err := store.Get(ctx, integrationID, enums.JobShopifyFill, DefaultName)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2026-08-20T00:00:00Z", value)
}

func TestInitializeIfAbsentScopedByJobType(t *testing.T) {
	store := NewStore(newTestDB(t))
	integrationID := uuid.New()
	ctx := context.Background()

	changed, err := store.InitializeIfAbsent(ctx, integrationID, enums.JobMetaFill, DefaultName, "2026-08-20")
	require.NoError(t, err)
	require.True(t, changed)

	// Same integration, different job type gets its own row.
	changed, err = store.InitializeIfAbsent(ctx, integrationID, enums.JobMetaFresh, DefaultName, "2026-08-25")
	require.NoError(t, err)
	require.True(t, changed)

	value, found, err := store.Get(ctx, integrationID, enums.JobMetaFresh, DefaultName)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2026-08-25", value)
}

func TestAdvanceIfGreater(t *testing.T) {
	store := NewStore(newTestDB(t))
	integrationID := uuid.New()
	ctx := context.Background()

	// Absent cursor: advance inserts.
	changed, err := store.AdvanceIfGreater(ctx, integrationID, enums.JobSquareFresh, DefaultName, "2026-08-25T10:00:00Z")
	require.NoError(t, err)
	require.True(t, changed)

	// Strictly greater value advances.
	changed, err = store.AdvanceIfGreater(ctx, integrationID, enums.JobSquareFresh, DefaultName, "2026-08-26T09:30:00Z")
	require.NoError(t, err)
	require.True(t, changed)

	// Equal value is a no-op.
	changed, err = store.AdvanceIfGreater(ctx, integrationID, enums.JobSquareFresh, DefaultName, "2026-08-26T09:30:00Z")
	require.NoError(t, err)
	require.False(t, changed)

	// Smaller value never regresses the cursor.
	changed, err = store.AdvanceIfGreater(ctx, integrationID, enums.JobSquareFresh, DefaultName, "2026-08-24T23:59:59Z")
	require.NoError(t, err)
	require.False(t, changed)

	value, found, err := store.Get(ctx, integrationID, enums.JobSquareFresh, DefaultName)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2026-08-26T09:30:00Z", value)
}

func TestAdvanceIfGreaterEmptyValue(t *testing.T) {
	store := NewStore(newTestDB(t))

	changed, err := store.AdvanceIfGreater(context.Background(), uuid.New(), enums.JobShopifyFresh, DefaultName, "")
	require.NoError(t, err)
	require.False(t, changed)
}

func TestAdvanceInsideTransaction(t *testing.T) {
	gdb := newTestDB(t)
	integrationID := uuid.New()
	ctx := context.Background()

	err := gdb.Transaction(func(tx *gorm.DB) error {
		store := NewStore(tx)
		changed, err := store.AdvanceIfGreater(ctx, integrationID, enums.JobMetaFresh, DefaultName, "2026-08-27")
		require.NoError(t, err)
		require.True(t, changed)
		return nil
	})
	require.NoError(t, err)

	value, found, err := NewStore(gdb).Get(ctx, integrationID, enums.JobMetaFresh, DefaultName)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2026-08-27", value)
}
