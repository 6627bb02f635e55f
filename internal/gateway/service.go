// Package gateway implements the device protocol: handshake, heartbeat,
// inventory push and pull, and the remote-vend poll.
package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	"github.com/vendkiosk/kiosk-backend/internal/kiosks"
	"github.com/vendkiosk/kiosk-backend/internal/kioskconfig"
	"github.com/vendkiosk/kiosk-backend/internal/remotevend"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/metrics"
	"github.com/vendkiosk/kiosk-backend/pkg/security"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type kioskStore interface {
	FindByID(ctx context.Context, id int64) (*models.Kiosk, error)
	FindByCode(ctx context.Context, code string) (*models.Kiosk, error)
	LockByIDWithTx(tx *gorm.DB, id int64) (*models.Kiosk, error)
	RecordContact(ctx context.Context, id int64, contact kiosks.DeviceContact) error
	AssignAPIKeyIfUnset(ctx context.Context, id int64, key string) (bool, error)
	AppendStatusLog(ctx context.Context, entry *models.KioskStatusLog) error
}

type configLoader interface {
	Load(ctx context.Context, kiosk *models.Kiosk) (*kioskconfig.KioskConfig, error)
}

// Service is the device-facing protocol plus the admin remote-vend trigger.
type Service interface {
	Handshake(ctx context.Context, input HandshakeInput) (*HandshakeResult, error)
	// Authenticate runs the credential checks every keyed device call starts
	// with. Handlers call it before they look at the request body.
	Authenticate(ctx context.Context, kioskID int64, apiKey string) error
	Heartbeat(ctx context.Context, kioskID int64, apiKey string, input HeartbeatInput) (*HeartbeatResult, error)
	UpdateInventory(ctx context.Context, kioskID int64, apiKey string, input InventoryInput) (*InventoryResult, error)
	InventorySnapshot(ctx context.Context, kioskID int64, apiKey string) (*InventorySnapshot, error)
	RemotePing(ctx context.Context, kioskID int64, apiKey string, kioskCode *string) (*RemotePingResult, error)
	TriggerRemoteVend(ctx context.Context, kioskID, slotID int64) (*RemoteVendResult, error)
}

// ServiceParams wires the gateway.
type ServiceParams struct {
	Tx             txRunner
	Kiosks         kioskStore
	Catalog        *catalog.Repository
	Config         configLoader
	Mailbox        remotevend.Mailbox
	Logger         *logger.Logger
	Metrics        *metrics.KioskMetrics
	Now            func() time.Time
	GenerateAPIKey func() (string, error)
}

type service struct {
	tx        txRunner
	kiosks    kioskStore
	catalog   *catalog.Repository
	config    configLoader
	mailbox   remotevend.Mailbox
	logg      *logger.Logger
	metrics   *metrics.KioskMetrics
	now       func() time.Time
	newAPIKey func() (string, error)
}

// NewService validates dependencies and builds the gateway.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Kiosks == nil:
		return nil, fmt.Errorf("kiosk store required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog repository required")
	case params.Config == nil:
		return nil, fmt.Errorf("config loader required")
	case params.Mailbox == nil:
		return nil, fmt.Errorf("remote vend mailbox required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	s := &service{
		tx:        params.Tx,
		kiosks:    params.Kiosks,
		catalog:   params.Catalog,
		config:    params.Config,
		mailbox:   params.Mailbox,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       params.Now,
		newAPIKey: params.GenerateAPIKey,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newAPIKey == nil {
		s.newAPIKey = security.GenerateAPIKey
	}
	return s, nil
}

var (
	errKioskNotAllowed = pkgerrors.New(pkgerrors.CodeForbidden, "kiosk is not registered or inactive")
	errBadAPIKey       = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid kiosk api key")
)

// authenticate rejects a missing or inactive kiosk before looking at the key.
func (s *service) authenticate(ctx context.Context, kioskID int64, apiKey string) (*models.Kiosk, error) {
	kiosk, err := s.kiosks.FindByID(ctx, kioskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errKioskNotAllowed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kiosk")
	}
	if !kiosk.IsActive {
		return nil, errKioskNotAllowed
	}
	if apiKey == "" || kiosk.APIKey == nil ||
		subtle.ConstantTimeCompare([]byte(apiKey), []byte(*kiosk.APIKey)) != 1 {
		return nil, errBadAPIKey
	}
	return kiosk, nil
}

func (s *service) Authenticate(ctx context.Context, kioskID int64, apiKey string) error {
	_, err := s.authenticate(ctx, kioskID, apiKey)
	return err
}

func (s *service) Handshake(ctx context.Context, input HandshakeInput) (*HandshakeResult, error) {
	code := strings.TrimSpace(input.KioskCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kiosk_code is required")
	}
	kiosk, err := s.kiosks.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errKioskNotAllowed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kiosk")
	}
	if !kiosk.IsActive {
		return nil, errKioskNotAllowed
	}
	ctx = s.logg.WithKioskID(ctx, kiosk.ID)

	if err := s.kiosks.RecordContact(ctx, kiosk.ID, kiosks.DeviceContact{
		DeviceUUID: input.DeviceUUID,
		AppVersion: input.AppVersion,
		IP:         optional(input.ClientIP),
		At:         s.now().UTC(),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record handshake")
	}

	issued := false
	if kiosk.APIKey == nil {
		key, err := s.newAPIKey()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate api key")
		}
		if issued, err = s.kiosks.AssignAPIKeyIfUnset(ctx, kiosk.ID, key); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign api key")
		}
	}
	// Re-read so a concurrent first handshake converges on the stored key.
	kiosk, err = s.kiosks.FindByID(ctx, kiosk.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload kiosk")
	}
	if kiosk.APIKey == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "api key missing after handshake")
	}

	cfg, err := s.config.Load(ctx, kiosk)
	if err != nil {
		return nil, err
	}
	s.metrics.IncConfigPush(metrics.PushReasonHandshake)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"config_version": kiosk.ConfigVersion,
		"api_key_issued": issued,
	}), "kiosk.handshake")

	return &HandshakeResult{
		OK:            true,
		KioskID:       kiosk.ID,
		StoreID:       kiosk.StoreID,
		APIKey:        *kiosk.APIKey,
		KioskPassword: kiosk.KioskPassword,
		PairingCode:   kiosk.PairCode4,
		ConfigVersion: kiosk.ConfigVersion,
		Config:        cfg,
	}, nil
}

func (s *service) Heartbeat(ctx context.Context, kioskID int64, apiKey string, input HeartbeatInput) (*HeartbeatResult, error) {
	kiosk, err := s.authenticate(ctx, kioskID, apiKey)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithKioskID(ctx, kiosk.ID)
	now := s.now().UTC()

	if err := s.kiosks.RecordContact(ctx, kiosk.ID, kiosks.DeviceContact{
		DeviceUUID: input.DeviceUUID,
		AppVersion: input.AppVersion,
		IP:         optional(input.ClientIP),
		At:         now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record heartbeat")
	}

	if input.Errors == nil {
		input.Errors = []string{}
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode heartbeat payload")
	}
	if err := s.kiosks.AppendStatusLog(ctx, &models.KioskStatusLog{
		KioskID:   kiosk.ID,
		Status:    string(enums.KioskLogStatusOnline),
		Payload:   string(payload),
		CreatedAt: now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status log")
	}

	result := &HeartbeatResult{
		OK:            true,
		ServerTime:    now,
		ConfigVersion: kiosk.ConfigVersion,
	}
	if input.CurrentConfigVersion != nil && *input.CurrentConfigVersion < kiosk.ConfigVersion {
		cfg, err := s.config.Load(ctx, kiosk)
		if err != nil {
			return nil, err
		}
		result.HasConfigUpdate = true
		result.Config = cfg
		s.metrics.IncConfigPush(metrics.PushReasonHeartbeat)
	}

	s.metrics.IncHeartbeat()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"config_version":    kiosk.ConfigVersion,
		"has_config_update": result.HasConfigUpdate,
		"board_connected":   input.BoardConnected,
	}), "kiosk.heartbeat")
	return result, nil
}

// UpdateInventory reconciles reported stock. The kiosk row is locked for the
// duration so the slot set read here matches what gets written, and admin
// layout changes (which take the same lock) cannot interleave.
func (s *service) UpdateInventory(ctx context.Context, kioskID int64, apiKey string, input InventoryInput) (*InventoryResult, error) {
	kiosk, err := s.authenticate(ctx, kioskID, apiKey)
	if err != nil {
		return nil, err
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mode must be partial or replace")
	}
	ctx = s.logg.WithKioskID(ctx, kiosk.ID)

	items, order := dedupeItems(input.Items)
	now := s.now().UTC()
	result := &InventoryResult{OK: true, Mode: input.Mode}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.kiosks.LockByIDWithTx(tx, kiosk.ID); err != nil {
			return err
		}
		repo := s.catalog.WithTx(tx)
		bound, err := repo.ListBoundSlots(ctx, kiosk.ID)
		if err != nil {
			return err
		}
		isBound := make(map[int64]bool, len(bound))
		for _, b := range bound {
			isBound[b.SlotID] = true
		}

		write := func(slotID int64, stock int, alarm *int) error {
			if alarm != nil {
				clamped := max(*alarm, 0)
				alarm = &clamped
			}
			return repo.UpdateStock(ctx, slotID, max(stock, 0), alarm, now)
		}

		if input.Mode == enums.InventoryModePartial {
			for _, slotID := range order {
				if !isBound[slotID] {
					result.Skipped++
					continue
				}
				item := items[slotID]
				if err := write(slotID, item.CurrentStock, item.LowStockAlarm); err != nil {
					return err
				}
				result.Updated++
			}
			return nil
		}

		owned, err := repo.ListSlotIDs(ctx, kiosk.ID)
		if err != nil {
			return err
		}
		isOwned := make(map[int64]bool, len(owned))
		for _, slotID := range owned {
			isOwned[slotID] = true
			if !isBound[slotID] {
				result.Skipped++
				continue
			}
			item, reported := items[slotID]
			if !reported {
				item = InventoryItem{SlotID: slotID}
			}
			if err := write(slotID, item.CurrentStock, item.LowStockAlarm); err != nil {
				return err
			}
			result.Updated++
		}
		for _, slotID := range order {
			if !isOwned[slotID] {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory")
	}

	s.metrics.AddInventory(input.Mode.String(), result.Updated, result.Skipped)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"mode":    input.Mode,
		"updated": result.Updated,
		"skipped": result.Skipped,
	}), "kiosk.inventory.updated")
	return result, nil
}

// dedupeItems keeps the last report per slot, in first-seen order.
func dedupeItems(in []InventoryItem) (map[int64]InventoryItem, []int64) {
	items := make(map[int64]InventoryItem, len(in))
	order := make([]int64, 0, len(in))
	for _, item := range in {
		if _, seen := items[item.SlotID]; !seen {
			order = append(order, item.SlotID)
		}
		items[item.SlotID] = item
	}
	return items, order
}

func (s *service) InventorySnapshot(ctx context.Context, kioskID int64, apiKey string) (*InventorySnapshot, error) {
	kiosk, err := s.authenticate(ctx, kioskID, apiKey)
	if err != nil {
		return nil, err
	}
	items, err := s.catalog.ListBoundSlots(ctx, kiosk.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	if items == nil {
		items = []catalog.BoundSlot{}
	}
	return &InventorySnapshot{OK: true, KioskID: kiosk.ID, Items: items}, nil
}

func (s *service) RemotePing(ctx context.Context, kioskID int64, apiKey string, kioskCode *string) (*RemotePingResult, error) {
	kiosk, err := s.authenticate(ctx, kioskID, apiKey)
	if err != nil {
		return nil, err
	}
	if kioskCode != nil && *kioskCode != "" && *kioskCode != kiosk.Code {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "kiosk code does not match")
	}
	slotID, err := s.mailbox.Take(ctx, kiosk.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read remote vend mailbox")
	}
	if slotID != nil {
		s.metrics.IncRemoteVend(metrics.RemoteVendDelivered)
		s.logg.Info(s.logg.WithField(s.logg.WithKioskID(ctx, kiosk.ID), "slot_id", *slotID), "kiosk.remote_vend.delivered")
	}
	return &RemotePingResult{OK: true, RemoteVendSlotID: slotID, ServerTime: s.now().UTC()}, nil
}

// TriggerRemoteVend queues a dispense request for the device's next ping. An
// undelivered earlier request for the same kiosk is replaced.
func (s *service) TriggerRemoteVend(ctx context.Context, kioskID, slotID int64) (*RemoteVendResult, error) {
	if _, err := s.kiosks.FindByID(ctx, kioskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "kiosk not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kiosk")
	}
	row, err := s.catalog.FindSlotRow(ctx, kioskID, slotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "slot not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load slot")
	}
	if !row.Bound() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "slot has no product bound")
	}
	if err := s.mailbox.Put(ctx, kioskID, slotID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue remote vend")
	}
	s.metrics.IncRemoteVend(metrics.RemoteVendQueued)
	s.logg.Info(s.logg.WithField(s.logg.WithKioskID(ctx, kioskID), "slot_id", slotID), "kiosk.remote_vend.queued")
	return &RemoteVendResult{KioskID: kioskID, SlotID: slotID, Queued: true}, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
