package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/catalog"
	"github.com/talkincode/shopsync/internal/domain"
)

type memStore struct {
	mu       sync.Mutex
	products []domain.Product
	saveErr  error
	saves    int
}

func (m *memStore) Load(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Product{}, m.products...), nil
}

func (m *memStore) Save(ctx context.Context, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.products = append([]domain.Product{}, products...)
	return nil
}

type fakeClient struct {
	mu sync.Mutex

	nextID    int64
	createErr error
	updateErr error
	batchErr  error
	remote    []domain.RemoteProduct
	// skus the batch endpoint accepts; nil accepts all
	batchAccept map[string]int64

	created      []domain.ProductFields
	updated      map[int64]domain.ProductFields
	deleted      []int64
	deletedMedia []int64
	uploads      []string
	wipes        int
}

func newFakeClient() *fakeClient {
	return &fakeClient{nextID: 100, updated: map[int64]domain.ProductFields{}}
}

func (f *fakeClient) FetchAllProducts(ctx context.Context) ([]domain.RemoteProduct, error) {
	return f.remote, nil
}

func (f *fakeClient) CreateProduct(ctx context.Context, fields domain.ProductFields) (*domain.RemoteProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, fields)
	f.nextID++
	rp := &domain.RemoteProduct{ID: f.nextID, SKU: fields.SKU, Name: fields.Name}
	if fields.ImagePath != "" {
		rp.Images = []domain.RemoteImage{{ID: 900 + f.nextID}}
	}
	return rp, nil
}

func (f *fakeClient) UpdateProduct(ctx context.Context, remoteID int64, fields domain.ProductFields) (*domain.RemoteProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updated[remoteID] = fields
	rp := &domain.RemoteProduct{ID: remoteID, SKU: fields.SKU}
	if fields.ImagePath != "" {
		rp.Images = []domain.RemoteImage{{ID: 7000 + remoteID}}
	}
	return rp, nil
}

func (f *fakeClient) DeleteProduct(ctx context.Context, remoteID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, remoteID)
	return nil
}

func (f *fakeClient) BatchCreate(ctx context.Context, items []domain.ProductFields) ([]domain.RemoteProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	var result []domain.RemoteProduct
	for _, it := range items {
		if f.batchAccept == nil {
			f.nextID++
			result = append(result, domain.RemoteProduct{ID: f.nextID, SKU: it.SKU})
			continue
		}
		if id, ok := f.batchAccept[it.SKU]; ok {
			result = append(result, domain.RemoteProduct{ID: id, SKU: it.SKU})
		}
	}
	return result, nil
}

func (f *fakeClient) BatchDelete(ctx context.Context, remoteIDs []int64) error {
	return nil
}

func (f *fakeClient) DeleteAllProducts(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wipes++
	n := len(f.remote)
	f.remote = nil
	return n, nil
}

func (f *fakeClient) UploadMedia(ctx context.Context, path string) (*domain.MediaAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filepath.Base(path))
	f.nextID++
	return &domain.MediaAsset{ID: f.nextID, SourceURL: "https://shop.example/" + filepath.Base(path)}, nil
}

func (f *fakeClient) DeleteMedia(ctx context.Context, assetID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedMedia = append(f.deletedMedia, assetID)
	return nil
}

type seqSKU struct{ n int }

func (g *seqSKU) NextSKU() string {
	g.n++
	return fmt.Sprintf("sku-%d", g.n)
}

func newTestService(t *testing.T, policy string) (*Service, *memStore, *fakeClient) {
	t.Helper()
	cfg := *config.DefaultAppConfig
	cfg.Storage.ImageDir = t.TempDir()
	cfg.Sync.CreatePolicy = policy
	store := &memStore{}
	client := newFakeClient()
	return NewService(&cfg, store, client, &seqSKU{}, nil), store, client
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
	return path
}

func TestCreateWithoutImage(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)

	out := svc.Create(context.Background(), ProductInput{Name: "Mug", Price: "12.5", Stock: "7"})
	require.True(t, out.OK(), out.Message())

	require.Len(t, store.products, 1)
	p := store.products[0]
	assert.NotEmpty(t, p.SKU)
	assert.Equal(t, int64(101), p.RemoteID)
	assert.Equal(t, "12.50", p.Price)
	assert.Equal(t, 7, p.StockQuantity)
	assert.True(t, p.ManageStock)
	assert.Zero(t, p.MediaID)

	require.Len(t, client.created, 1)
	assert.Empty(t, client.created[0].ImagePath)
	assert.Equal(t, p.SKU, client.created[0].SKU)
}

func TestCreateParsesStockAsDecimal(t *testing.T) {
	tests := []struct {
		stock string
		want  int
	}{
		{"010", 10},
		{"08", 8},
		{" 3 ", 3},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.stock, func(t *testing.T) {
			svc, store, client := newTestService(t, config.CreatePolicyStrict)
			out := svc.Create(context.Background(), ProductInput{Name: "Mug", Price: "1", Stock: tt.stock})
			require.True(t, out.OK(), out.Message())
			assert.Equal(t, tt.want, store.products[0].StockQuantity)
			assert.Equal(t, tt.want, client.created[0].StockQuantity)
		})
	}
}

func TestCreateRejectsBadStock(t *testing.T) {
	for _, stock := range []string{"0x10", "-1", "1.5", "ten"} {
		svc, store, client := newTestService(t, config.CreatePolicyStrict)
		out := svc.Create(context.Background(), ProductInput{Name: "Mug", Price: "1", Stock: stock})
		assert.Error(t, out.LocalErr, stock)
		assert.Empty(t, store.products, stock)
		assert.Empty(t, client.created, stock)
	}
}

func TestCreateWithImageKeepsMediaID(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	writeImage(t, svc.ImageDir(), "1714-mug.png")

	out := svc.Create(context.Background(), ProductInput{Name: "Mug", Price: "3", ImageName: "1714-mug.png"})
	require.True(t, out.OK())

	require.Len(t, store.products, 1)
	assert.Equal(t, filepath.Join(svc.ImageDir(), "1714-mug.png"), client.created[0].ImagePath)
	assert.Equal(t, int64(900+101), store.products[0].MediaID)
}

func TestCreateStrictPolicyDropsRecordOnRemoteFailure(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	client.createErr = errors.New("remote down")
	img := writeImage(t, svc.ImageDir(), "1714-cap.png")

	out := svc.Create(context.Background(), ProductInput{Name: "Cap", Price: "9", ImageName: "1714-cap.png"})
	assert.False(t, out.OK())
	assert.NoError(t, out.LocalErr)
	assert.EqualError(t, out.RemoteErr, "remote down")
	assert.Empty(t, store.products)
	assert.Zero(t, store.saves)
	assert.NoFileExists(t, img)
}

func TestCreateLocalFirstPolicyKeepsRecord(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyLocalFirst)
	client.createErr = errors.New("remote down")

	out := svc.Create(context.Background(), ProductInput{Name: "Cap", Price: "9"})
	assert.Error(t, out.RemoteErr)
	require.Len(t, store.products, 1)
	assert.False(t, store.products[0].Synced())
	assert.NotEmpty(t, store.products[0].SKU)
	assert.Contains(t, out.Message(), "remote sync failed")
}

func TestCreateRejectsBadPrice(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)

	out := svc.Create(context.Background(), ProductInput{Name: "Cap", Price: "cheap"})
	assert.Error(t, out.LocalErr)
	assert.Empty(t, store.products)
	assert.Empty(t, client.created)
}

func TestUpdateMergesNonEmptyFields(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	store.products = []domain.Product{
		{SKU: "1001", Name: "Mug", Price: "12.50", StockQuantity: 7, RemoteID: 31, ManageStock: true},
	}

	out := svc.Update(context.Background(), 31, ProductInput{SKU: "hijack", Name: "Mug XL", Price: "", Stock: "2"})
	require.True(t, out.OK(), out.Message())

	p := store.products[0]
	assert.Equal(t, "Mug XL", p.Name)
	assert.Equal(t, "12.50", p.Price)
	assert.Equal(t, 2, p.StockQuantity)
	assert.Equal(t, "1001", p.SKU)

	sent := client.updated[31]
	assert.Equal(t, "12.50", sent.RegularPrice)
	assert.Equal(t, "1001", sent.SKU)
	assert.Empty(t, sent.ImagePath)
}

func TestUpdateWithNewImageReplacesMedia(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	old := writeImage(t, svc.ImageDir(), "1-old.png")
	writeImage(t, svc.ImageDir(), "2-new.png")
	store.products = []domain.Product{
		{SKU: "1001", Name: "Mug", RemoteID: 31, ImageName: "1-old.png", MediaID: 55},
	}

	out := svc.Update(context.Background(), 31, ProductInput{ImageName: "2-new.png"})
	require.True(t, out.OK(), out.Message())

	assert.NoFileExists(t, old)
	assert.Equal(t, "2-new.png", store.products[0].ImageName)
	assert.Equal(t, int64(7031), store.products[0].MediaID)
	assert.Equal(t, []int64{55}, client.deletedMedia)
}

func TestUpdateRemoteFailureKeepsLocalChange(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	client.updateErr = errors.New("timeout")
	store.products = []domain.Product{{SKU: "1001", Name: "Mug", RemoteID: 31}}

	out := svc.Update(context.Background(), 31, ProductInput{Name: "Cup"})
	assert.NoError(t, out.LocalErr)
	assert.Error(t, out.RemoteErr)
	assert.Equal(t, "Cup", store.products[0].Name)
}

func TestUpdateUnknownID(t *testing.T) {
	svc, _, client := newTestService(t, config.CreatePolicyStrict)

	out := svc.Update(context.Background(), 404, ProductInput{Name: "x"})
	assert.True(t, errors.Is(out.LocalErr, ErrProductNotFound))
	assert.Empty(t, client.updated)
}

func TestDeleteRemovesRecordAndImage(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	img := writeImage(t, svc.ImageDir(), "1714-mug.png")
	store.products = []domain.Product{
		{SKU: "1001", Name: "Mug", RemoteID: 31, ImageName: "1714-mug.png", MediaID: 77},
		{SKU: "1002", Name: "Cap", RemoteID: 32},
	}

	out := svc.Delete(context.Background(), 31)
	require.True(t, out.OK(), out.Message())

	require.Len(t, store.products, 1)
	assert.Equal(t, "1002", store.products[0].SKU)
	assert.NoFileExists(t, img)
	assert.Equal(t, []int64{31}, client.deleted)
	assert.Equal(t, []int64{77}, client.deletedMedia)

	again := svc.Delete(context.Background(), 31)
	assert.True(t, errors.Is(again.LocalErr, ErrProductNotFound))
	assert.Equal(t, []int64{31}, client.deleted)
	assert.Len(t, store.products, 1)
}

func TestDiscardUnsyncedRecord(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyLocalFirst)
	img := writeImage(t, svc.ImageDir(), "1714-mug.png")
	store.products = []domain.Product{
		{SKU: "1001", Name: "Mug", ImageName: "1714-mug.png"},
		{SKU: "1002", Name: "Cap", RemoteID: 32},
	}

	out := svc.Discard(context.Background(), "1001")
	require.True(t, out.OK(), out.Message())
	require.Len(t, store.products, 1)
	assert.Equal(t, "1002", store.products[0].SKU)
	assert.NoFileExists(t, img)
	assert.Empty(t, client.deleted)
	assert.Empty(t, client.deletedMedia)

	synced := svc.Discard(context.Background(), "1002")
	assert.True(t, errors.Is(synced.LocalErr, ErrProductSynced))
	assert.Len(t, store.products, 1)

	missing := svc.Discard(context.Background(), "1001")
	assert.True(t, errors.Is(missing.LocalErr, ErrProductNotFound))
}

func TestBulkUploadStampsMatchedSKUs(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	writeImage(t, svc.ImageDir(), "a.png")
	store.products = []domain.Product{
		{SKU: "a", Name: "A", ImageName: "a.png"},
		{SKU: "b", Name: "B"},
		{SKU: "c", Name: "C", RemoteID: 5},
		{SKU: "d", Name: "D", ImageName: "gone.png"},
	}
	client.batchAccept = map[string]int64{"a": 201, "b": 202}

	out := svc.BulkUpload(context.Background())
	require.True(t, out.OK(), out.Message())
	assert.Equal(t, 2, out.Count)

	byKey := map[string]domain.Product{}
	for _, p := range store.products {
		byKey[p.SKU] = p
	}
	assert.Equal(t, int64(201), byKey["a"].RemoteID)
	assert.Equal(t, int64(202), byKey["b"].RemoteID)
	assert.Equal(t, int64(5), byKey["c"].RemoteID)
	assert.Zero(t, byKey["d"].RemoteID)
	assert.NotZero(t, byKey["a"].MediaID)
	assert.Equal(t, []string{"a.png"}, client.uploads)
	assert.Empty(t, client.deletedMedia)
}

func TestBulkUploadDeletesMediaOfRejectedRecords(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	writeImage(t, svc.ImageDir(), "c.png")
	store.products = []domain.Product{
		{SKU: "c", Name: "C", RemoteID: 5, MediaID: 55, ImageName: "c.png"},
	}
	client.batchAccept = map[string]int64{}

	out := svc.BulkUpload(context.Background())
	require.True(t, out.OK(), out.Message())
	assert.Zero(t, out.Count)

	assert.Equal(t, []string{"c.png"}, client.uploads)
	assert.Equal(t, []int64{101}, client.deletedMedia)
	assert.Equal(t, int64(55), store.products[0].MediaID)
	assert.Zero(t, store.saves)
}

func TestBulkUploadBatchFailure(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	writeImage(t, svc.ImageDir(), "a.png")
	store.products = []domain.Product{{SKU: "a", Name: "A", ImageName: "a.png"}}
	client.batchErr = errors.New("batch rejected")

	out := svc.BulkUpload(context.Background())
	assert.Error(t, out.RemoteErr)
	assert.Zero(t, store.saves)
	assert.False(t, store.products[0].Synced())
	assert.Equal(t, []int64{101}, client.deletedMedia)
}

func TestWipeRemoteLeavesLocalCatalog(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	store.products = []domain.Product{{SKU: "a", RemoteID: 1}}
	client.remote = []domain.RemoteProduct{{ID: 1}, {ID: 2}}

	out := svc.WipeRemote(context.Background())
	require.True(t, out.OK())
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, 1, client.wipes)
	assert.Zero(t, store.saves)
	assert.Len(t, store.products, 1)
}

func TestAuditReportsDivergence(t *testing.T) {
	svc, store, client := newTestService(t, config.CreatePolicyStrict)
	store.products = []domain.Product{
		{SKU: "a", RemoteID: 1},
		{SKU: "b", RemoteID: 2},
		{SKU: "c"},
	}
	client.remote = []domain.RemoteProduct{{ID: 1}, {ID: 3}}

	report, err := svc.Audit(context.Background())
	require.NoError(t, err)
	assert.False(t, report.InSync())
	assert.Equal(t, []string{"c"}, report.Unsynced)
	assert.Equal(t, []int64{2}, report.MissingRemote)
	assert.Equal(t, []int64{3}, report.UnknownRemote)
}

func TestWorkflowsPublishSyncEvents(t *testing.T) {
	cfg := *config.DefaultAppConfig
	cfg.Storage.ImageDir = t.TempDir()
	bus := EventBus.New()
	store := &memStore{}
	svc := NewService(&cfg, store, newFakeClient(), &seqSKU{}, bus)

	var events []domain.SyncEvent
	require.NoError(t, bus.Subscribe(domain.SyncEventTopic, func(ev domain.SyncEvent) {
		events = append(events, ev)
	}))

	svc.Create(context.Background(), ProductInput{Name: "Mug", Price: "1"})
	svc.Delete(context.Background(), 999)

	require.Len(t, events, 2)
	assert.Equal(t, domain.ActionCreate, events[0].Action)
	assert.Equal(t, "sku-1", events[0].SKU)
	assert.False(t, events[0].Failed())
	assert.Equal(t, domain.ActionDelete, events[1].Action)
	assert.True(t, events[1].Failed())
}

func TestSnowflakeSKUIsUnique(t *testing.T) {
	g, err := NewSnowflakeSKU(1)
	require.NoError(t, err)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		sku := g.NextSKU()
		assert.False(t, seen[sku])
		seen[sku] = true
	}
	_, err = NewSnowflakeSKU(5000)
	assert.Error(t, err)
}

func TestNormalizePrice(t *testing.T) {
	p, err := normalizePrice("9")
	require.NoError(t, err)
	assert.Equal(t, "9.00", p)

	p, err = normalizePrice(" 12.345 ")
	require.NoError(t, err)
	assert.Equal(t, "12.35", p)

	_, err = normalizePrice("-1")
	assert.Error(t, err)
}

var _ catalog.Store = (*memStore)(nil)
