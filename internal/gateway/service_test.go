package gateway

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	"github.com/vendkiosk/kiosk-backend/internal/kioskconfig"
	"github.com/vendkiosk/kiosk-backend/internal/kiosks"
	"github.com/vendkiosk/kiosk-backend/internal/remotevend"
	"github.com/vendkiosk/kiosk-backend/pkg/db"
	"github.com/vendkiosk/kiosk-backend/pkg/db/dbtest"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/metrics"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type fixture struct {
	client    *db.Client
	clock     *clock
	kioskRepo *kiosks.Repository
	kioskSvc  kiosks.Service
	catalog   catalog.Service
	loader    *kioskconfig.Loader
	svc       Service
	storeID   int64
}

// newFixture builds the stack over a 1x3 grid so slot A, B and C are the
// whole kiosk.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := metrics.NewKioskMetrics(prometheus.NewRegistry())

	kioskRepo := kiosks.NewRepository(client.DB())
	kioskSvc, err := kiosks.NewService(kiosks.ServiceParams{
		Tx: client, Repo: kioskRepo, Logger: logg, Metrics: m,
		GridRows: 1, GridCols: 3, DefaultImage: "default.png", Now: clk.now,
	})
	require.NoError(t, err)

	catalogRepo := catalog.NewRepository(client.DB())
	catalogSvc, err := catalog.NewService(catalog.ServiceParams{
		Tx: client, Repo: catalogRepo, Kiosks: kioskRepo, Logger: logg, Metrics: m, Now: clk.now,
	})
	require.NoError(t, err)

	loader := kioskconfig.NewLoader(catalogRepo)
	keys := []string{"key-one", "key-two", "key-three"}
	svc, err := NewService(ServiceParams{
		Tx:      client,
		Kiosks:  kioskRepo,
		Catalog: catalogRepo,
		Config:  loader,
		Mailbox: remotevend.NewMemoryMailbox(10*time.Minute, clk.now),
		Logger:  logg,
		Metrics: m,
		Now:     clk.now,
		GenerateAPIKey: func() (string, error) {
			key := keys[0]
			keys = keys[1:]
			return key, nil
		},
	})
	require.NoError(t, err)

	store := models.Store{Code: "S001", Name: "Gangnam", Status: "ACTIVE"}
	require.NoError(t, client.DB().Create(&store).Error)

	return &fixture{
		client: client, clock: clk, kioskRepo: kioskRepo, kioskSvc: kioskSvc,
		catalog: catalogSvc, loader: loader, svc: svc, storeID: store.ID,
	}
}

type provisioned struct {
	id      int64
	code    string
	apiKey  string
	a, b, c int64
}

// provision creates a kiosk, handshakes it and binds A (stock 5) and B
// (stock 2); C stays unbound.
func (f *fixture) provision(t *testing.T, code string) provisioned {
	t.Helper()
	ctx := context.Background()
	created, err := f.kioskSvc.Create(ctx, kiosks.CreateKioskInput{StoreID: f.storeID, Code: code, Name: code})
	require.NoError(t, err)

	hs, err := f.svc.Handshake(ctx, HandshakeInput{KioskCode: code})
	require.NoError(t, err)

	slots, err := f.catalog.ListSlots(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	product, err := f.catalog.CreateProduct(ctx, catalog.CreateProductInput{Code: "P-" + code, Name: "Cola", Price: 1500})
	require.NoError(t, err)
	_, err = f.catalog.AssignSlot(ctx, created.ID, slots[0].ID, catalog.AssignSlotInput{ProductID: product.ID, MaxCapacity: 10, CurrentStock: 5, LowStockAlarm: 1})
	require.NoError(t, err)
	_, err = f.catalog.AssignSlot(ctx, created.ID, slots[1].ID, catalog.AssignSlotInput{ProductID: product.ID, MaxCapacity: 10, CurrentStock: 2, LowStockAlarm: 1})
	require.NoError(t, err)

	return provisioned{id: created.ID, code: code, apiKey: hs.APIKey, a: slots[0].ID, b: slots[1].ID, c: slots[2].ID}
}

func (f *fixture) stock(t *testing.T, slotID int64) int {
	t.Helper()
	var binding models.VendingSlotProduct
	require.NoError(t, f.client.DB().Where("slot_id = ?", slotID).First(&binding).Error)
	return binding.CurrentStock
}

func (f *fixture) version(t *testing.T, kioskID int64) int64 {
	t.Helper()
	kiosk, err := f.kioskRepo.FindByID(context.Background(), kioskID)
	require.NoError(t, err)
	return kiosk.ConfigVersion
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestHandshakeIssuesKeyOnceAndReturnsConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	password := "1234"
	created, err := f.kioskSvc.Create(ctx, kiosks.CreateKioskInput{StoreID: f.storeID, Code: "K001", Name: "Lobby", KioskPassword: &password})
	require.NoError(t, err)

	uuid := "device-1"
	first, err := f.svc.Handshake(ctx, HandshakeInput{KioskCode: "K001", DeviceUUID: &uuid, ClientIP: "10.1.1.1"})
	require.NoError(t, err)
	require.True(t, first.OK)
	require.Equal(t, "key-one", first.APIKey)
	require.Equal(t, created.ID, first.KioskID)
	require.Equal(t, f.storeID, first.StoreID)
	require.Equal(t, "1234", *first.KioskPassword)
	require.Equal(t, *created.PairCode4, *first.PairingCode)
	require.Equal(t, int64(1), first.ConfigVersion)
	require.Len(t, first.Config.Slots, 3)
	require.Equal(t, []string{"default.png"}, first.Config.ScreensaverImages)

	second, err := f.svc.Handshake(ctx, HandshakeInput{KioskCode: "K001"})
	require.NoError(t, err)
	require.Equal(t, "key-one", second.APIKey, "api key is stable across handshakes")

	stored, err := f.kioskRepo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "device-1", *stored.DeviceUUID)
	require.Equal(t, "10.1.1.1", *stored.LastIP)
	require.NotNil(t, stored.LastHeartbeatAt)
}

func TestHandshakeRejectsUnknownAndInactiveKiosks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Handshake(ctx, HandshakeInput{KioskCode: "NOPE"})
	requireCode(t, err, pkgerrors.CodeForbidden)

	created, err := f.kioskSvc.Create(ctx, kiosks.CreateKioskInput{StoreID: f.storeID, Code: "K001", Name: "Lobby"})
	require.NoError(t, err)
	inactive := false
	_, err = f.kioskSvc.Update(ctx, created.ID, kiosks.UpdateKioskInput{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.svc.Handshake(ctx, HandshakeInput{KioskCode: "K001"})
	requireCode(t, err, pkgerrors.CodeForbidden)

	stored, err := f.kioskRepo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, stored.APIKey, "rejected handshake must not provision a key")
}

func TestDeviceCallsRequireExactAPIKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")

	calls := map[string]func(key string) error{
		"heartbeat": func(key string) error {
			_, err := f.svc.Heartbeat(ctx, k.id, key, HeartbeatInput{})
			return err
		},
		"inventory": func(key string) error {
			_, err := f.svc.UpdateInventory(ctx, k.id, key, InventoryInput{Mode: enums.InventoryModePartial, Items: []InventoryItem{{SlotID: k.a, CurrentStock: 1}}})
			return err
		},
		"snapshot": func(key string) error {
			_, err := f.svc.InventorySnapshot(ctx, k.id, key)
			return err
		},
		"remote ping": func(key string) error {
			_, err := f.svc.RemotePing(ctx, k.id, key, nil)
			return err
		},
	}
	for _, call := range calls {
		requireCode(t, call(""), pkgerrors.CodeUnauthorized)
		requireCode(t, call(k.apiKey+"x"), pkgerrors.CodeUnauthorized)
		requireCode(t, call(k.apiKey[:len(k.apiKey)-1]), pkgerrors.CodeUnauthorized)
	}
	require.Equal(t, 5, f.stock(t, k.a), "rejected inventory push must not write")

	for name, call := range calls {
		require.NoError(t, call(k.apiKey), name)
	}
	require.Equal(t, 1, f.stock(t, k.a))
}

func TestInactiveKioskIsRejectedBeforeKeyCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")
	inactive := false
	_, err := f.kioskSvc.Update(ctx, k.id, kiosks.UpdateKioskInput{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.svc.Heartbeat(ctx, k.id, k.apiKey, HeartbeatInput{})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.Heartbeat(ctx, k.id, "wrong", HeartbeatInput{})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.Heartbeat(ctx, 9999, k.apiKey, HeartbeatInput{})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestInventoryCredentialsOutrankPayloadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")

	_, err := f.svc.UpdateInventory(ctx, k.id, "wrong-key", InventoryInput{Mode: "bogus"})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	_, err = f.svc.UpdateInventory(ctx, k.id, k.apiKey, InventoryInput{Mode: "bogus"})
	requireCode(t, err, pkgerrors.CodeValidation)

	inactive := false
	_, err = f.kioskSvc.Update(ctx, k.id, kiosks.UpdateKioskInput{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.svc.UpdateInventory(ctx, k.id, "wrong-key", InventoryInput{Mode: "bogus"})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.UpdateInventory(ctx, k.id, k.apiKey, InventoryInput{Mode: "bogus"})
	requireCode(t, err, pkgerrors.CodeForbidden)
	requireCode(t, f.svc.Authenticate(ctx, k.id, k.apiKey), pkgerrors.CodeForbidden)
}

func TestHeartbeatIsIdempotentForConfigVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")
	stored := f.version(t, k.id)
	current := stored
	temp := 4.5

	for i := 0; i < 5; i++ {
		f.clock.t = f.clock.t.Add(10 * time.Second)
		res, err := f.svc.Heartbeat(ctx, k.id, k.apiKey, HeartbeatInput{
			BoardConnected:       true,
			Errors:               []string{"coin_jam"},
			Temperature:          &temp,
			CurrentConfigVersion: &current,
		})
		require.NoError(t, err)
		require.False(t, res.HasConfigUpdate)
		require.Nil(t, res.Config)
		require.Equal(t, stored, res.ConfigVersion)
		require.True(t, res.ServerTime.Equal(f.clock.t))
	}
	require.Equal(t, stored, f.version(t, k.id))

	var logs []models.KioskStatusLog
	require.NoError(t, f.client.DB().Where("kiosk_id = ?", k.id).Find(&logs).Error)
	require.Len(t, logs, 5)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(logs[0].Payload), &payload))
	require.Equal(t, true, payload["board_connected"])
	require.Equal(t, "ONLINE", logs[0].Status)

	kiosk, err := f.kioskRepo.FindByID(ctx, k.id)
	require.NoError(t, err)
	require.True(t, kiosk.LastHeartbeatAt.Equal(f.clock.t))
}

func TestHeartbeatLogsEmptyErrorListWhenOmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")

	_, err := f.svc.Heartbeat(ctx, k.id, k.apiKey, HeartbeatInput{BoardConnected: true})
	require.NoError(t, err)

	var entry models.KioskStatusLog
	require.NoError(t, f.client.DB().Where("kiosk_id = ?", k.id).Order("id DESC").First(&entry).Error)
	require.Contains(t, entry.Payload, `"errors":[]`)
	require.NotContains(t, entry.Payload, `"errors":null`)
}

func TestHeartbeatPushesConfigOnlyWhenDeviceIsBehind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")
	stored := f.version(t, k.id)

	res, err := f.svc.Heartbeat(ctx, k.id, k.apiKey, HeartbeatInput{})
	require.NoError(t, err)
	require.False(t, res.HasConfigUpdate, "absent version never triggers a push")
	require.Nil(t, res.Config)

	ahead := stored + 3
	res, err = f.svc.Heartbeat(ctx, k.id, k.apiKey, HeartbeatInput{CurrentConfigVersion: &ahead})
	require.NoError(t, err)
	require.False(t, res.HasConfigUpdate)

	behind := stored - 1
	res, err = f.svc.Heartbeat(ctx, k.id, k.apiKey, HeartbeatInput{CurrentConfigVersion: &behind})
	require.NoError(t, err)
	require.True(t, res.HasConfigUpdate)
	require.NotNil(t, res.Config)
	require.Equal(t, "Cola", *res.Config.Slots[0].ProductName)
	require.Nil(t, res.Config.Slots[2].ProductID)
}

func TestAdminMutationIsSeenOnNextHeartbeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")
	current := f.version(t, k.id)

	_, err := f.catalog.AddScreensaverURL(ctx, k.id, "promo.png")
	require.NoError(t, err)

	res, err := f.svc.Heartbeat(ctx, k.id, k.apiKey, HeartbeatInput{CurrentConfigVersion: &current})
	require.NoError(t, err)
	require.True(t, res.HasConfigUpdate)
	require.Equal(t, current+1, res.ConfigVersion)
	require.Equal(t, []string{"default.png", "promo.png"}, res.Config.ScreensaverImages)
}

func TestPartialInventoryTouchesOnlySubmittedSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")
	before := f.version(t, k.id)

	res, err := f.svc.UpdateInventory(ctx, k.id, k.apiKey, InventoryInput{
		Mode:  enums.InventoryModePartial,
		Items: []InventoryItem{{SlotID: k.a, CurrentStock: 9}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, 0, res.Skipped)
	require.Equal(t, enums.InventoryModePartial, res.Mode)
	require.Equal(t, 9, f.stock(t, k.a))
	require.Equal(t, 2, f.stock(t, k.b))

	res, err = f.svc.UpdateInventory(ctx, k.id, k.apiKey, InventoryInput{
		Mode:  enums.InventoryModePartial,
		Items: []InventoryItem{{SlotID: k.a, CurrentStock: 9}, {SlotID: k.c, CurrentStock: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, before, f.version(t, k.id), "inventory never bumps config_version")
}

func TestReplaceInventoryZeroesOmittedBoundSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")
	before := f.version(t, k.id)

	res, err := f.svc.UpdateInventory(ctx, k.id, k.apiKey, InventoryInput{
		Mode:  enums.InventoryModeReplace,
		Items: []InventoryItem{{SlotID: k.a, CurrentStock: 9}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Updated)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, 9, f.stock(t, k.a))
	require.Equal(t, 0, f.stock(t, k.b))
	require.Equal(t, before, f.version(t, k.id))
}

func TestInventoryIgnoresForeignSlotsAndClampsNegatives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.provision(t, "K001")
	other := f.provision(t, "K002")

	alarm := -3
	res, err := f.svc.UpdateInventory(ctx, mine.id, mine.apiKey, InventoryInput{
		Mode: enums.InventoryModePartial,
		Items: []InventoryItem{
			{SlotID: mine.a, CurrentStock: -4, LowStockAlarm: &alarm},
			{SlotID: other.a, CurrentStock: 50},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, 0, f.stock(t, mine.a))
	require.Equal(t, 5, f.stock(t, other.a), "foreign slot must not be written")

	var binding models.VendingSlotProduct
	require.NoError(t, f.client.DB().Where("slot_id = ?", mine.a).First(&binding).Error)
	require.Equal(t, 0, binding.LowStockAlarm)

	res, err = f.svc.UpdateInventory(ctx, mine.id, mine.apiKey, InventoryInput{
		Mode:  enums.InventoryModeReplace,
		Items: []InventoryItem{{SlotID: other.b, CurrentStock: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Updated)
	require.Equal(t, 2, res.Skipped)
	require.Equal(t, 2, f.stock(t, other.b))

	_, err = f.svc.UpdateInventory(ctx, mine.id, mine.apiKey, InventoryInput{Mode: "sync"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestInventorySnapshotListsBoundSlots(t *testing.T) {
	f := newFixture(t)
	k := f.provision(t, "K001")

	snap, err := f.svc.InventorySnapshot(context.Background(), k.id, k.apiKey)
	require.NoError(t, err)
	require.Equal(t, k.id, snap.KioskID)
	require.Equal(t, []catalog.BoundSlot{
		{SlotID: k.a, CurrentStock: 5, LowStockAlarm: 1},
		{SlotID: k.b, CurrentStock: 2, LowStockAlarm: 1},
	}, snap.Items)
}

func TestRemoteVendLastWriteWinsAndIsDeliveredOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")

	_, err := f.svc.TriggerRemoteVend(ctx, k.id, k.a)
	require.NoError(t, err)
	queued, err := f.svc.TriggerRemoteVend(ctx, k.id, k.b)
	require.NoError(t, err)
	require.True(t, queued.Queued)

	code := "K001"
	res, err := f.svc.RemotePing(ctx, k.id, k.apiKey, &code)
	require.NoError(t, err)
	require.NotNil(t, res.RemoteVendSlotID)
	require.Equal(t, k.b, *res.RemoteVendSlotID)

	res, err = f.svc.RemotePing(ctx, k.id, k.apiKey, nil)
	require.NoError(t, err)
	require.Nil(t, res.RemoteVendSlotID)
}

func TestRemoteVendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")
	other := f.provision(t, "K002")

	_, err := f.svc.TriggerRemoteVend(ctx, k.id, k.c)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	_, err = f.svc.TriggerRemoteVend(ctx, k.id, other.a)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = f.svc.TriggerRemoteVend(ctx, 9999, k.a)
	requireCode(t, err, pkgerrors.CodeNotFound)

	wrong := "K002"
	_, err = f.svc.RemotePing(ctx, k.id, k.apiKey, &wrong)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestBuildConfigIsStableAcrossCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := f.provision(t, "K001")
	kiosk, err := f.kioskRepo.FindByID(ctx, k.id)
	require.NoError(t, err)

	first, err := f.loader.Load(ctx, kiosk)
	require.NoError(t, err)
	second, err := f.loader.Load(ctx, kiosk)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}
