package catalogsync

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/catalog"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/remote"
	"go.uber.org/zap"
)

// ErrProductNotFound is reported when no local record carries the remote id
var ErrProductNotFound = errors.New("product not found")

// ErrProductSynced is reported by Discard for a record that has a remote id
var ErrProductSynced = errors.New("product is synced, delete it instead")

// ProductInput carries submitted form values. Empty strings mean "not submitted".
type ProductInput struct {
	SKU       string // never applied; the sku is fixed at creation
	Name      string
	Price     string
	Stock     string
	ImageName string // file already saved in the image directory
}

// Service runs the sync workflows between the local catalog and the remote
// catalog. It holds no state between calls besides its dependencies.
type Service struct {
	store         catalog.Store
	client        remote.CatalogClient
	skus          SKUGenerator
	bus           EventBus.Bus
	imageDir      string
	createPolicy  string
	uploadWorkers int
}

// NewService wires a workflow service. bus may be nil.
func NewService(
	cfg *config.AppConfig,
	store catalog.Store,
	client remote.CatalogClient,
	skus SKUGenerator,
	bus EventBus.Bus,
) *Service {
	workers := cfg.Sync.UploadWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		store:         store,
		client:        client,
		skus:          skus,
		bus:           bus,
		imageDir:      cfg.ImageDirPath(),
		createPolicy:  cfg.Sync.CreatePolicy,
		uploadWorkers: workers,
	}
}

// ImageDir returns the directory product images are stored in
func (s *Service) ImageDir() string {
	return s.imageDir
}

// List returns the local catalog
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.store.Load(ctx)
}

// Create builds a record with a fresh sku, creates it remotely and persists it.
// With the strict policy a failed remote create leaves the catalog untouched and
// removes the uploaded file; with local-first the record is kept without a remote id.
func (s *Service) Create(ctx context.Context, in ProductInput) Outcome {
	out := Outcome{Action: domain.ActionCreate}
	defer s.publish(&out)

	price, err := normalizePrice(in.Price)
	if err != nil {
		out.LocalErr = err
		return out
	}
	stock, err := domain.ParseStock(in.Stock)
	if err != nil {
		out.LocalErr = err
		return out
	}

	products, err := s.store.Load(ctx)
	if err != nil {
		out.LocalErr = err
		s.removeImage(in.ImageName)
		return out
	}

	product := domain.Product{
		SKU:           s.skus.NextSKU(),
		Name:          strings.TrimSpace(in.Name),
		Price:         price,
		StockQuantity: stock,
		ImageName:     in.ImageName,
	}
	out.Product = &product

	fields := product.Fields()
	fields.ImagePath = product.ImagePath(s.imageDir)
	rp, err := s.client.CreateProduct(ctx, fields)
	if err != nil {
		out.RemoteErr = err
		zap.L().Error("remote create failed",
			zap.String("namespace", "catalogsync"),
			zap.String("sku", product.SKU),
			zap.String("policy", s.createPolicy),
			zap.Error(err),
		)
		if s.createPolicy != config.CreatePolicyLocalFirst {
			s.removeImage(in.ImageName)
			return out
		}
	} else {
		product.RemoteID = rp.ID
		product.ManageStock = true
		if ids := rp.ImageIDs(); len(ids) > 0 {
			product.MediaID = ids[0]
		}
	}

	products = append(products, product)
	if err := s.store.Save(ctx, products); err != nil {
		out.LocalErr = err
		return out
	}
	zap.L().Info("product created",
		zap.String("namespace", "catalogsync"),
		zap.String("sku", product.SKU),
		zap.Int64("remote_id", product.RemoteID),
	)
	return out
}

// Update merges the submitted non-empty fields into the record, saves the
// catalog and then pushes the merged record to the remote catalog.
func (s *Service) Update(ctx context.Context, remoteID int64, in ProductInput) Outcome {
	out := Outcome{Action: domain.ActionUpdate}
	defer s.publish(&out)

	products, err := s.store.Load(ctx)
	if err != nil {
		out.LocalErr = err
		s.removeImage(in.ImageName)
		return out
	}
	idx := catalog.FindByRemoteID(products, remoteID)
	if idx < 0 {
		out.LocalErr = errors.Wrapf(ErrProductNotFound, "remote id %d", remoteID)
		s.removeImage(in.ImageName)
		return out
	}
	p := &products[idx]

	if name := strings.TrimSpace(in.Name); name != "" {
		p.Name = name
	}
	if in.Price != "" {
		price, err := normalizePrice(in.Price)
		if err != nil {
			out.LocalErr = err
			s.removeImage(in.ImageName)
			return out
		}
		p.Price = price
	}
	if in.Stock != "" {
		stock, err := domain.ParseStock(in.Stock)
		if err != nil {
			out.LocalErr = err
			s.removeImage(in.ImageName)
			return out
		}
		p.StockQuantity = stock
	}
	var oldImage string
	if in.ImageName != "" {
		oldImage = p.ImageName
		p.ImageName = in.ImageName
	}
	out.Product = p

	if err := s.store.Save(ctx, products); err != nil {
		out.LocalErr = err
		return out
	}
	if oldImage != "" && oldImage != in.ImageName {
		s.removeImage(oldImage)
	}

	fields := p.Fields()
	if in.ImageName != "" {
		fields.ImagePath = p.ImagePath(s.imageDir)
	}
	rp, err := s.client.UpdateProduct(ctx, remoteID, fields)
	if err != nil {
		out.RemoteErr = err
		zap.L().Error("remote update failed",
			zap.String("namespace", "catalogsync"),
			zap.Int64("remote_id", remoteID),
			zap.Error(err),
		)
		return out
	}

	if ids := rp.ImageIDs(); in.ImageName != "" && len(ids) > 0 && ids[0] != p.MediaID {
		if p.MediaID > 0 {
			s.deleteMedia(ctx, p.MediaID)
		}
		p.MediaID = ids[0]
		if err := s.store.Save(ctx, products); err != nil {
			zap.L().Warn("save media id failed",
				zap.String("namespace", "catalogsync"),
				zap.Int64("remote_id", remoteID),
				zap.Error(err),
			)
		}
	}
	return out
}

// Delete removes the record and its image file, then deletes the remote
// product and its media asset. A missing record reports ErrProductNotFound.
func (s *Service) Delete(ctx context.Context, remoteID int64) Outcome {
	out := Outcome{Action: domain.ActionDelete}
	defer s.publish(&out)

	products, err := s.store.Load(ctx)
	if err != nil {
		out.LocalErr = err
		return out
	}
	idx := catalog.FindByRemoteID(products, remoteID)
	if idx < 0 {
		out.LocalErr = errors.Wrapf(ErrProductNotFound, "remote id %d", remoteID)
		return out
	}
	removed := products[idx]
	out.Product = &removed
	products = append(products[:idx], products[idx+1:]...)

	s.removeImage(removed.ImageName)
	if err := s.store.Save(ctx, products); err != nil {
		out.LocalErr = err
		return out
	}

	if err := s.client.DeleteProduct(ctx, remoteID); err != nil {
		out.RemoteErr = err
		zap.L().Error("remote delete failed",
			zap.String("namespace", "catalogsync"),
			zap.Int64("remote_id", remoteID),
			zap.Error(err),
		)
	}
	if removed.MediaID > 0 {
		s.deleteMedia(ctx, removed.MediaID)
	}
	return out
}

// Discard removes a record that never reached the remote catalog, along
// with its image file. Nothing remote is called.
func (s *Service) Discard(ctx context.Context, sku string) Outcome {
	out := Outcome{Action: domain.ActionDiscard}
	defer s.publish(&out)

	products, err := s.store.Load(ctx)
	if err != nil {
		out.LocalErr = err
		return out
	}
	idx := -1
	for i := range products {
		if products[i].SKU == sku {
			idx = i
			break
		}
	}
	if idx < 0 {
		out.LocalErr = errors.Wrapf(ErrProductNotFound, "sku %s", sku)
		return out
	}
	removed := products[idx]
	out.Product = &removed
	if removed.Synced() {
		out.LocalErr = errors.WithStack(ErrProductSynced)
		return out
	}
	products = append(products[:idx], products[idx+1:]...)
	if err := s.store.Save(ctx, products); err != nil {
		out.LocalErr = err
		return out
	}
	s.removeImage(removed.ImageName)
	return out
}

// WipeRemote deletes the entire remote catalog. The local catalog is not touched.
func (s *Service) WipeRemote(ctx context.Context) Outcome {
	out := Outcome{Action: domain.ActionWipeRemote}
	defer s.publish(&out)

	n, err := s.client.DeleteAllProducts(ctx)
	out.Count = n
	if err != nil {
		out.RemoteErr = err
		zap.L().Error("remote wipe failed", zap.String("namespace", "catalogsync"), zap.Error(err))
	}
	return out
}

// FetchRemote returns the full remote catalog
func (s *Service) FetchRemote(ctx context.Context) ([]domain.RemoteProduct, error) {
	return s.client.FetchAllProducts(ctx)
}

func (s *Service) removeImage(name string) {
	path := domain.Product{ImageName: name}.ImagePath(s.imageDir)
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("remove image failed",
			zap.String("namespace", "catalogsync"),
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

func (s *Service) deleteMedia(ctx context.Context, mediaID int64) {
	if err := s.client.DeleteMedia(ctx, mediaID); err != nil {
		zap.L().Warn("delete media failed",
			zap.String("namespace", "catalogsync"),
			zap.Int64("media_id", mediaID),
			zap.Error(err),
		)
	}
}

func (s *Service) publish(out *Outcome) {
	if s.bus == nil {
		return
	}
	ev := domain.SyncEvent{
		Action:     out.Action,
		Count:      out.Count,
		ExecutedAt: time.Now(),
	}
	if out.Product != nil {
		ev.SKU = out.Product.SKU
		ev.RemoteID = out.Product.RemoteID
	}
	if out.LocalErr != nil {
		ev.LocalError = out.LocalErr.Error()
	}
	if out.RemoteErr != nil {
		ev.RemoteError = out.RemoteErr.Error()
	}
	s.bus.Publish(domain.SyncEventTopic, ev)
}

// normalizePrice validates a decimal price and renders it with two places
func normalizePrice(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return "", errors.Wrapf(err, "invalid price %q", v)
	}
	if d.IsNegative() {
		return "", errors.Errorf("invalid price %q", v)
	}
	return d.StringFixed(2), nil
}
