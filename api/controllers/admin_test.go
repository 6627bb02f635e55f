package controllers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	"github.com/vendkiosk/kiosk-backend/internal/kiosks"
	"github.com/vendkiosk/kiosk-backend/internal/stores"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/pagination"
)

type stubKiosks struct {
	err     error
	create  kiosks.CreateKioskInput
	update  kiosks.UpdateKioskInput
	storeID *int64
	page    pagination.Params
}

func (s *stubKiosks) dto(id int64) *kiosks.KioskDTO {
	return &kiosks.KioskDTO{ID: id, StoreID: 1, Code: "K001", Name: "Lobby", IsActive: true, ConfigVersion: 1}
}

func (s *stubKiosks) Create(_ context.Context, input kiosks.CreateKioskInput) (*kiosks.KioskDTO, error) {
	s.create = input
	if s.err != nil {
		return nil, s.err
	}
	return s.dto(7), nil
}

func (s *stubKiosks) Get(_ context.Context, id int64) (*kiosks.KioskDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.dto(id), nil
}

func (s *stubKiosks) List(_ context.Context, storeID *int64) ([]kiosks.KioskDTO, error) {
	s.storeID = storeID
	if s.err != nil {
		return nil, s.err
	}
	return []kiosks.KioskDTO{*s.dto(7)}, nil
}

func (s *stubKiosks) Update(_ context.Context, id int64, input kiosks.UpdateKioskInput) (*kiosks.KioskDTO, error) {
	s.update = input
	if s.err != nil {
		return nil, s.err
	}
	return s.dto(id), nil
}

func (s *stubKiosks) RotateAPIKey(_ context.Context, id int64) (*kiosks.KioskDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	dto := s.dto(id)
	key := "rotated"
	dto.APIKey = &key
	return dto, nil
}

func (s *stubKiosks) ListStatusLogs(_ context.Context, id int64, page pagination.Params) (*kiosks.StatusLogPage, error) {
	s.page = page
	if s.err != nil {
		return nil, s.err
	}
	next := "next-token"
	return &kiosks.StatusLogPage{
		Items:      []kiosks.StatusLogDTO{{ID: 9, Status: "ONLINE", Payload: []byte(`{"errors":[]}`), CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}},
		NextCursor: &next,
	}, nil
}

type stubCatalog struct {
	catalog.Service

	err       error
	assign    catalog.AssignSlotInput
	delta     int
	update    catalog.UpdateProductInput
	upload    []byte
	uploadCT  string
	uploadFN  string
	deletedID int64
}

func (s *stubCatalog) CreateProduct(_ context.Context, input catalog.CreateProductInput) (*catalog.ProductDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.ProductDTO{ID: 3, Code: input.Code, Name: input.Name, Price: input.Price, IsActive: true}, nil
}

func (s *stubCatalog) UpdateProduct(_ context.Context, id int64, input catalog.UpdateProductInput) (*catalog.ProductDTO, error) {
	s.update = input
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.ProductDTO{ID: id}, nil
}

func (s *stubCatalog) ListSlots(context.Context, int64) ([]catalog.SlotDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []catalog.SlotDTO{{ID: 11, Row: 1, Col: 1, BoardCode: "A1"}}, nil
}

func (s *stubCatalog) AssignSlot(_ context.Context, _, slotID int64, input catalog.AssignSlotInput) (*catalog.SlotDTO, error) {
	s.assign = input
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.SlotDTO{ID: slotID, MaxCapacity: input.MaxCapacity}, nil
}

func (s *stubCatalog) AdjustStock(_ context.Context, _, slotID int64, delta int) (*catalog.SlotDTO, error) {
	s.delta = delta
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.SlotDTO{ID: slotID}, nil
}

func (s *stubCatalog) UpdateKioskProduct(_ context.Context, kioskID, id int64, input catalog.UpdateProductInput) (*catalog.KioskProductDTO, error) {
	s.update = input
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.KioskProductDTO{ID: id, KioskID: kioskID}, nil
}

func (s *stubCatalog) ListScreensaver(context.Context, int64) ([]catalog.ScreenImageDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []catalog.ScreenImageDTO{{ID: 1, ImageURL: "/static/screensaver/default.png", SortOrder: 1, IsActive: true}}, nil
}

func (s *stubCatalog) UploadScreensaver(_ context.Context, _ int64, filename, contentType string, body io.Reader) (*catalog.ScreenImageDTO, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	s.upload, s.uploadCT, s.uploadFN = data, contentType, filename
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.ScreenImageDTO{ID: 2, ImageURL: "https://cdn.example.com/kiosk/K001/screensaver/a.png", SortOrder: 2, IsActive: true, CreatedAt: time.Now()}, nil
}

func (s *stubCatalog) DeleteScreensaver(_ context.Context, _, imageID int64) error {
	s.deletedID = imageID
	return s.err
}

type stubStores struct {
	err    error
	create stores.CreateStoreInput
}

func (s *stubStores) Create(_ context.Context, input stores.CreateStoreInput) (*stores.StoreDTO, error) {
	s.create = input
	if s.err != nil {
		return nil, s.err
	}
	return &stores.StoreDTO{ID: 1, Code: input.Code, Name: input.Name, Status: "ACTIVE"}, nil
}

func (s *stubStores) GetByID(_ context.Context, id int64) (*stores.StoreDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &stores.StoreDTO{ID: id}, nil
}

func (s *stubStores) List(context.Context) ([]stores.StoreDTO, error) {
	return []stores.StoreDTO{}, s.err
}

func TestAdminCreateStoreConflict(t *testing.T) {
	svc := &stubStores{err: pkgerrors.New(pkgerrors.CodeConflict, "store code already exists")}
	rec := httptest.NewRecorder()
	AdminCreateStore(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/stores", `{"code":"S1","name":"Gangnam"}`, nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "S1", svc.create.Code)
	require.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, decodeBody(t, rec)))
}

func TestAdminCreateStoreEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminCreateStore(&stubStores{}, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/stores", `{"code":"S1","name":"Gangnam"}`, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	require.Equal(t, "S1", data["code"])
}

func TestAdminCreateKioskValidates(t *testing.T) {
	svc := &stubKiosks{}
	rec := httptest.NewRecorder()
	AdminCreateKiosk(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/kiosks", `{"code":"K001"}`, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, svc.create.Code)
}

func TestAdminCreateKiosk(t *testing.T) {
	svc := &stubKiosks{}
	rec := httptest.NewRecorder()
	body := `{"store_id":1,"code":"K001","name":"Lobby","kiosk_password":"1234","generate_api_key":true}`
	AdminCreateKiosk(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/kiosks", body, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, svc.create.GenerateAPIKey)
	require.Equal(t, "1234", *svc.create.KioskPassword)
}

func TestAdminListKiosksStoreFilter(t *testing.T) {
	svc := &stubKiosks{}
	rec := httptest.NewRecorder()
	AdminListKiosks(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/kiosks?store_id=4", "", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(4), *svc.storeID)
}

func TestAdminGetKioskIncludesSlotsAndScreensaver(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminGetKiosk(&stubKiosks{}, &stubCatalog{}, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/kiosks/7", "", map[string]string{"kioskId": "7"}))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	require.Equal(t, "K001", data["code"])
	require.Len(t, data["slots"], 1)
	require.Len(t, data["screensaver"], 1)
}

func TestAdminGetKioskNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	svc := &stubKiosks{err: pkgerrors.New(pkgerrors.CodeNotFound, "kiosk not found")}
	AdminGetKiosk(svc, &stubCatalog{}, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/kiosks/9", "", map[string]string{"kioskId": "9"}))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUpdateKioskPartialFields(t *testing.T) {
	svc := &stubKiosks{}
	rec := httptest.NewRecorder()
	AdminUpdateKiosk(svc, nil).ServeHTTP(rec, newRequest(http.MethodPatch, "/kiosks/7", `{"is_active":false}`, map[string]string{"kioskId": "7"}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, svc.update.Name)
	require.NotNil(t, svc.update.IsActive)
	require.False(t, *svc.update.IsActive)
}

func TestAdminRotateKioskAPIKey(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminRotateKioskAPIKey(&stubKiosks{}, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/kiosks/7/api-key/rotate", "", map[string]string{"kioskId": "7"}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "rotated", decodeBody(t, rec)["data"].(map[string]any)["api_key"])
}

func TestAdminAssignSlot(t *testing.T) {
	svc := &stubCatalog{}
	rec := httptest.NewRecorder()
	body := `{"product_id":3,"max_capacity":10,"current_stock":4,"low_stock_alarm":2}`
	AdminAssignSlot(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/kiosks/7/slots/11/assign", body, map[string]string{"kioskId": "7", "slotId": "11"}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, catalog.AssignSlotInput{ProductID: 3, MaxCapacity: 10, CurrentStock: 4, LowStockAlarm: 2}, svc.assign)
}

func TestAdminAssignSlotRejectsNegativeCapacity(t *testing.T) {
	svc := &stubCatalog{}
	rec := httptest.NewRecorder()
	AdminAssignSlot(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/kiosks/7/slots/11/assign", `{"product_id":3,"max_capacity":-1}`, map[string]string{"kioskId": "7", "slotId": "11"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, svc.assign.ProductID)
}

func TestAdminAssignSlotForeignSlot(t *testing.T) {
	svc := &stubCatalog{err: pkgerrors.New(pkgerrors.CodeNotFound, "slot not found")}
	rec := httptest.NewRecorder()
	AdminAssignSlot(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/kiosks/7/slots/999/assign", `{"product_id":3}`, map[string]string{"kioskId": "7", "slotId": "999"}))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAdjustStockNegativeDelta(t *testing.T) {
	svc := &stubCatalog{}
	rec := httptest.NewRecorder()
	AdminAdjustStock(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/kiosks/7/slots/11/stock", `{"delta":-3}`, map[string]string{"kioskId": "7", "slotId": "11"}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, -3, svc.delta)
}

func TestAdminRemoteVend(t *testing.T) {
	svc := &stubGateway{}
	rec := httptest.NewRecorder()
	AdminRemoteVend(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/kiosks/7/remote-vend", `{"slot_id":11}`, map[string]string{"kioskId": "7"}))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, int64(7), svc.kioskID)
	require.Equal(t, int64(11), svc.slotID)
	require.Equal(t, true, decodeBody(t, rec)["data"].(map[string]any)["queued"])
}

func TestAdminRemoteVendUnboundSlot(t *testing.T) {
	svc := &stubGateway{err: pkgerrors.New(pkgerrors.CodeStateConflict, "slot has no product bound")}
	rec := httptest.NewRecorder()
	AdminRemoteVend(svc, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/kiosks/7/remote-vend", `{"slot_id":12}`, map[string]string{"kioskId": "7"}))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdminUpdateProductAndKioskProduct(t *testing.T) {
	svc := &stubCatalog{}
	rec := httptest.NewRecorder()
	AdminUpdateProduct(svc, nil).ServeHTTP(rec, newRequest(http.MethodPatch, "/products/3", `{"price":2500}`, map[string]string{"productId": "3"}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(2500), *svc.update.Price)
	require.Nil(t, svc.update.Name)

	rec = httptest.NewRecorder()
	AdminUpdateKioskProduct(svc, nil).ServeHTTP(rec, newRequest(http.MethodPatch, "/kiosks/7/products/5", `{"name":"Cola 500ml"}`, map[string]string{"kioskId": "7", "kioskProductId": "5"}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Cola 500ml", *svc.update.Name)
	require.Nil(t, svc.update.Price)
}

func TestAdminCreateProductRejectsNegativePrice(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminCreateProduct(&stubCatalog{}, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/products", `{"code":"P1","name":"Cola","price":-1}`, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUploadScreensaver(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "promo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	svc := &stubCatalog{}
	req := newRequest(http.MethodPost, "/kiosks/7/screensaver", "", map[string]string{"kioskId": "7"})
	req.Body = io.NopCloser(bytes.NewReader(buf.Bytes()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	AdminUploadScreensaver(svc, 1<<20, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "promo.png", svc.uploadFN)
	require.Equal(t, []byte("png-bytes"), svc.upload)
}

func TestAdminUploadScreensaverTooLarge(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "big.png")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 4096))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	svc := &stubCatalog{}
	req := newRequest(http.MethodPost, "/kiosks/7/screensaver", "", map[string]string{"kioskId": "7"})
	req.Body = io.NopCloser(bytes.NewReader(buf.Bytes()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	AdminUploadScreensaver(svc, 512, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, svc.upload)
}

func TestAdminUploadScreensaverMissingFile(t *testing.T) {
	req := newRequest(http.MethodPost, "/kiosks/7/screensaver", "", map[string]string{"kioskId": "7"})
	req.Body = io.NopCloser(strings.NewReader(""))
	rec := httptest.NewRecorder()

	AdminUploadScreensaver(&stubCatalog{}, 1<<20, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminDeleteScreensaver(t *testing.T) {
	svc := &stubCatalog{}
	rec := httptest.NewRecorder()
	AdminDeleteScreensaver(svc, nil).ServeHTTP(rec, newRequest(http.MethodDelete, "/kiosks/7/screensaver/4", "", map[string]string{"kioskId": "7", "imageId": "4"}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(4), svc.deletedID)
}

func TestAdminAddScreensaverURLValidates(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminAddScreensaverURL(&stubCatalog{}, nil).ServeHTTP(rec, newRequest(http.MethodPost, "/kiosks/7/screensaver/url", `{"image_url":"not a url"}`, map[string]string{"kioskId": "7"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminListKioskLogs(t *testing.T) {
	svc := &stubKiosks{}
	rec := httptest.NewRecorder()
	AdminListKioskLogs(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/kiosks/7/logs?limit=20&cursor=abc", "", map[string]string{"kioskId": "7"}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, pagination.Params{Limit: 20, Cursor: "abc"}, svc.page)
	data := decodeBody(t, rec)["data"].(map[string]any)
	require.Equal(t, "next-token", data["next_cursor"])
	items := data["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, map[string]any{"errors": []any{}}, items[0].(map[string]any)["payload"])
}

func TestAdminListKioskLogsValidatesQuery(t *testing.T) {
	svc := &stubKiosks{}
	rec := httptest.NewRecorder()
	AdminListKioskLogs(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/kiosks/7/logs?limit=5000", "", map[string]string{"kioskId": "7"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, svc.page.Limit)

	rec = httptest.NewRecorder()
	svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "kiosk not found")
	AdminListKioskLogs(svc, nil).ServeHTTP(rec, newRequest(http.MethodGet, "/kiosks/9/logs", "", map[string]string{"kioskId": "9"}))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, pagination.DefaultLimit, svc.page.Limit)
}
