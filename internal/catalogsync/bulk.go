package catalogsync

import (
	"context"
	"os"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/internal/domain"
	"go.uber.org/zap"
)

// BulkUpload sends the whole local catalog in batch creates. Records whose sku
// comes back with a remote id are stamped; every other record keeps what it had.
func (s *Service) BulkUpload(ctx context.Context) Outcome {
	out := Outcome{Action: domain.ActionBulkUpload}
	defer s.publish(&out)

	products, err := s.store.Load(ctx)
	if err != nil {
		out.LocalErr = err
		return out
	}
	if len(products) == 0 {
		zap.L().Info("bulk upload skipped, catalog is empty", zap.String("namespace", "catalogsync"))
		return out
	}

	assets, err := s.uploadImages(ctx, products)
	if err != nil {
		s.discardAssets(ctx, assets, nil)
		out.RemoteErr = err
		return out
	}

	items := make([]domain.ProductFields, len(products))
	for i, p := range products {
		items[i] = p.Fields()
		if a := assets[i]; a != nil {
			items[i].Images = []domain.RemoteImage{{ID: a.ID, Src: a.SourceURL}}
		}
	}

	created, err := s.client.BatchCreate(ctx, items)
	if err != nil {
		out.RemoteErr = err
		zap.L().Error("batch create failed",
			zap.String("namespace", "catalogsync"),
			zap.Int("created", len(created)),
			zap.Error(err),
		)
	}

	bySKU := make(map[string]domain.RemoteProduct, len(created))
	for _, rp := range created {
		if rp.SKU != "" && rp.ID > 0 {
			bySKU[rp.SKU] = rp
		}
	}
	stamped := make([]bool, len(products))
	for i := range products {
		rp, ok := bySKU[products[i].SKU]
		if !ok {
			continue
		}
		products[i].RemoteID = rp.ID
		products[i].ManageStock = true
		if a := assets[i]; a != nil {
			products[i].MediaID = a.ID
		}
		stamped[i] = true
		out.Count++
	}
	// assets uploaded for rejected records are attached to nothing
	s.discardAssets(ctx, assets, stamped)

	if out.Count == 0 {
		return out
	}
	if err := s.store.Save(ctx, products); err != nil {
		out.LocalErr = err
		return out
	}
	zap.L().Info("bulk upload finished",
		zap.String("namespace", "catalogsync"),
		zap.Int("total", len(products)),
		zap.Int("stamped", out.Count),
	)
	return out
}

// discardAssets deletes uploaded assets whose record was not stamped
func (s *Service) discardAssets(ctx context.Context, assets []*domain.MediaAsset, stamped []bool) {
	for i, a := range assets {
		if a == nil || (stamped != nil && stamped[i]) {
			continue
		}
		s.deleteMedia(ctx, a.ID)
	}
}

// uploadImages uploads every existing product image through a bounded pool.
// The result is indexed like products; failed or missing images stay nil.
// On a submit error the assets uploaded so far are still returned.
func (s *Service) uploadImages(ctx context.Context, products []domain.Product) ([]*domain.MediaAsset, error) {
	assets := make([]*domain.MediaAsset, len(products))

	pool, err := ants.NewPool(s.uploadWorkers)
	if err != nil {
		return nil, errors.Wrap(err, "create upload pool")
	}
	defer pool.Release()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := range products {
		path := products[i].ImagePath(s.imageDir)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			zap.L().Warn("image file missing, uploading without image",
				zap.String("namespace", "catalogsync"),
				zap.String("sku", products[i].SKU),
				zap.String("path", path),
			)
			continue
		}
		i := i
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			asset, err := s.client.UploadMedia(ctx, path)
			if err != nil {
				zap.L().Warn("image upload failed",
					zap.String("namespace", "catalogsync"),
					zap.String("sku", products[i].SKU),
					zap.Error(err),
				)
				return
			}
			mu.Lock()
			assets[i] = asset
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return assets, errors.Wrap(err, "submit image upload")
		}
	}
	wg.Wait()
	return assets, nil
}
