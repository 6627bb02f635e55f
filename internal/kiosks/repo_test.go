package kiosks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"gorm.io/gorm"
)

func seedKiosk(t *testing.T, f fixture, code string) *models.Kiosk {
	t.Helper()
	dto, err := f.svc.Create(context.Background(), CreateKioskInput{StoreID: f.storeID, Code: code, Name: code})
	require.NoError(t, err)
	kiosk, err := f.repo.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	return kiosk
}

func TestAssignAPIKeyIfUnsetOnlyOnce(t *testing.T) {
	f := newFixture(t)
	kiosk := seedKiosk(t, f, "K001")
	ctx := context.Background()

	won, err := f.repo.AssignAPIKeyIfUnset(ctx, kiosk.ID, "first")
	require.NoError(t, err)
	require.True(t, won)

	won, err = f.repo.AssignAPIKeyIfUnset(ctx, kiosk.ID, "second")
	require.NoError(t, err)
	require.False(t, won)

	reloaded, err := f.repo.FindByID(ctx, kiosk.ID)
	require.NoError(t, err)
	require.Equal(t, "first", *reloaded.APIKey)
}

func TestBumpConfigVersionIncrementsByOne(t *testing.T) {
	f := newFixture(t)
	kiosk := seedKiosk(t, f, "K001")
	ctx := context.Background()

	for want := int64(2); want <= 5; want++ {
		var got int64
		err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			got, err = f.repo.BumpConfigVersionWithTx(tx, kiosk.ID, fixedNow())
			return err
		})
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.repo.BumpConfigVersionWithTx(tx, 9999, fixedNow())
		return err
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRecordContactAndListStale(t *testing.T) {
	f := newFixture(t)
	fresh := seedKiosk(t, f, "K001")
	stale := seedKiosk(t, f, "K002")
	never := seedKiosk(t, f, "K003")
	ctx := context.Background()

	now := fixedNow()
	ip := "10.0.0.8"
	require.NoError(t, f.repo.RecordContact(ctx, fresh.ID, DeviceContact{At: now, IP: &ip}))
	require.NoError(t, f.repo.RecordContact(ctx, stale.ID, DeviceContact{At: now.Add(-time.Hour)}))

	kiosks, err := f.repo.ListStale(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	ids := []int64{}
	for _, k := range kiosks {
		ids = append(ids, k.ID)
	}
	require.ElementsMatch(t, []int64{stale.ID, never.ID}, ids)

	reloaded, err := f.repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.8", *reloaded.LastIP)
	require.True(t, reloaded.LastHeartbeatAt.Equal(now))
}
