package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/guonaihong/gout"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WooClient implements CatalogClient for a WooCommerce store with the
// WordPress media library behind it.
type WooClient struct {
	catalog      config.CatalogConfig
	media        config.MediaConfig
	mediaWorkers int
	hc           *http.Client
}

// pageHeader carries the pagination headers of a product list response
type pageHeader struct {
	Total      int `header:"X-WP-Total"`
	TotalPages int `header:"X-WP-TotalPages"`
}

// NewWooClient creates a client from the catalog and media sections of the
// application config. No request is made until the first call.
func NewWooClient(cfg *config.AppConfig) *WooClient {
	workers := cfg.Sync.MediaWorkers
	if workers <= 0 {
		workers = 1
	}
	return &WooClient{
		catalog:      cfg.Catalog,
		media:        cfg.Media,
		mediaWorkers: workers,
		hc:           newHTTPClient(cfg.Catalog),
	}
}

func (c *WooClient) productsURL(suffix string) string {
	version := c.catalog.Version
	if version == "" {
		version = "wc/v3"
	}
	u := fmt.Sprintf("%s/wp-json/%s/products", c.catalog.URL, strings.Trim(version, "/"))
	if suffix != "" {
		u += "/" + suffix
	}
	return u
}

func (c *WooClient) mediaURL(suffix string) string {
	u := c.catalog.URL + "/wp-json/wp/v2/media"
	if suffix != "" {
		u += "/" + suffix
	}
	return u
}

// auth merges the consumer credentials into a query map
func (c *WooClient) auth(q gout.H) gout.H {
	if q == nil {
		q = gout.H{}
	}
	q["consumer_key"] = c.catalog.ConsumerKey
	q["consumer_secret"] = c.catalog.ConsumerSecret
	return q
}

func (c *WooClient) pageSize() int {
	if c.catalog.PageSize <= 0 || c.catalog.PageSize > 100 {
		return 100
	}
	return c.catalog.PageSize
}

func (c *WooClient) batchSize() int {
	if c.catalog.BatchSize <= 0 || c.catalog.BatchSize > 100 {
		return 100
	}
	return c.catalog.BatchSize
}

// FetchAllProducts requests pages 1..N, where N comes from the
// X-WP-TotalPages header of each response.
func (c *WooClient) FetchAllProducts(ctx context.Context) ([]domain.RemoteProduct, error) {
	all := make([]domain.RemoteProduct, 0)
	for page := 1; ; page++ {
		var (
			body string
			hdr  pageHeader
			code int
		)
		err := gout.New(c.hc).
			GET(c.productsURL("")).
			WithContext(ctx).
			SetQuery(c.auth(gout.H{"per_page": c.pageSize(), "page": page})).
			BindBody(&body).
			BindHeader(&hdr).
			Code(&code).
			Do()
		if err != nil {
			return nil, errors.Wrapf(err, "fetch products page %d", page)
		}
		if err := checkStatus("fetch products", code, body); err != nil {
			return nil, err
		}
		items, err := decodeRemoteProducts(body)
		if err != nil {
			return nil, errors.Wrapf(err, "decode products page %d", page)
		}
		all = append(all, items...)

		zap.L().Debug("fetched product page",
			zap.String("namespace", "remote"),
			zap.Int("page", page),
			zap.Int("total_pages", hdr.TotalPages),
			zap.Int("count", len(items)),
		)
		if page >= hdr.TotalPages {
			break
		}
	}
	return all, nil
}

// attachImage uploads fields.ImagePath and sets it as the only image
func (c *WooClient) attachImage(ctx context.Context, fields *domain.ProductFields) error {
	if fields.ImagePath == "" {
		return nil
	}
	asset, err := c.UploadMedia(ctx, fields.ImagePath)
	if err != nil {
		return err
	}
	fields.Images = []domain.RemoteImage{{ID: asset.ID, Src: asset.SourceURL}}
	return nil
}

func (c *WooClient) CreateProduct(ctx context.Context, fields domain.ProductFields) (*domain.RemoteProduct, error) {
	if err := c.attachImage(ctx, &fields); err != nil {
		return nil, err
	}
	var (
		body string
		code int
	)
	err := gout.New(c.hc).
		POST(c.productsURL("")).
		WithContext(ctx).
		SetQuery(c.auth(nil)).
		SetJSON(fields).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	if err := checkStatus("create product", code, body); err != nil {
		return nil, err
	}
	rp, err := decodeRemoteProduct(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode created product")
	}
	zap.L().Info("remote product created",
		zap.String("namespace", "remote"),
		zap.Int64("remote_id", rp.ID),
		zap.String("sku", rp.SKU),
	)
	return rp, nil
}

func (c *WooClient) UpdateProduct(ctx context.Context, remoteID int64, fields domain.ProductFields) (*domain.RemoteProduct, error) {
	if remoteID <= 0 {
		return nil, errors.New("remote id is required")
	}
	if err := c.attachImage(ctx, &fields); err != nil {
		return nil, err
	}
	var (
		body string
		code int
	)
	err := gout.New(c.hc).
		PUT(c.productsURL(fmt.Sprint(remoteID))).
		WithContext(ctx).
		SetQuery(c.auth(nil)).
		SetJSON(fields).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return nil, errors.Wrapf(err, "update product %d", remoteID)
	}
	if err := checkStatus("update product", code, body); err != nil {
		return nil, err
	}
	return decodeRemoteProduct(body)
}

func (c *WooClient) DeleteProduct(ctx context.Context, remoteID int64) error {
	if remoteID <= 0 {
		return errors.New("remote id is required")
	}
	var (
		body string
		code int
	)
	err := gout.New(c.hc).
		DELETE(c.productsURL(fmt.Sprint(remoteID))).
		WithContext(ctx).
		SetQuery(c.auth(gout.H{"force": true})).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return errors.Wrapf(err, "delete product %d", remoteID)
	}
	return checkStatus("delete product", code, body)
}

// BatchCreate posts items in chunks of the configured batch size. Products
// created by earlier chunks are returned along with the error of a failed one.
func (c *WooClient) BatchCreate(ctx context.Context, items []domain.ProductFields) ([]domain.RemoteProduct, error) {
	created := make([]domain.RemoteProduct, 0, len(items))
	for start := 0; start < len(items); start += c.batchSize() {
		end := start + c.batchSize()
		if end > len(items) {
			end = len(items)
		}
		var rsp batchResponse
		if err := c.batch(ctx, gout.H{"create": items[start:end]}, &rsp); err != nil {
			return created, err
		}
		products, err := rsp.products(rsp.Create)
		if err != nil {
			return created, err
		}
		created = append(created, products...)
	}
	return created, nil
}

func (c *WooClient) BatchDelete(ctx context.Context, remoteIDs []int64) error {
	for start := 0; start < len(remoteIDs); start += c.batchSize() {
		end := start + c.batchSize()
		if end > len(remoteIDs) {
			end = len(remoteIDs)
		}
		var rsp batchResponse
		if err := c.batch(ctx, gout.H{"delete": remoteIDs[start:end]}, &rsp); err != nil {
			return err
		}
	}
	return nil
}

type batchResponse struct {
	Create []map[string]interface{} `json:"create"`
	Delete []map[string]interface{} `json:"delete"`
}

// products decodes a batch section, skipping entries the service rejected
func (r batchResponse) products(section []map[string]interface{}) ([]domain.RemoteProduct, error) {
	result := make([]domain.RemoteProduct, 0, len(section))
	for _, raw := range section {
		if e, ok := raw["error"]; ok && e != nil {
			zap.L().Warn("batch item rejected",
				zap.String("namespace", "remote"),
				zap.Any("error", e),
			)
			continue
		}
		rp, err := decodeRemoteMap(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, *rp)
	}
	return result, nil
}

func (c *WooClient) batch(ctx context.Context, payload gout.H, out *batchResponse) error {
	var (
		body string
		code int
	)
	err := gout.New(c.hc).
		POST(c.productsURL("batch")).
		WithContext(ctx).
		SetQuery(c.auth(nil)).
		SetJSON(payload).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return errors.Wrap(err, "batch products")
	}
	if err := checkStatus("batch products", code, body); err != nil {
		return err
	}
	if err := json.UnmarshalFromString(body, out); err != nil {
		return errors.Wrap(err, "decode batch response")
	}
	return nil
}

// DeleteAllProducts fetches the full remote catalog, deletes every attached
// media asset, then batch-deletes the products. Media failures are logged
// and do not stop the product delete.
func (c *WooClient) DeleteAllProducts(ctx context.Context) (int, error) {
	products, err := c.FetchAllProducts(ctx)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		zap.L().Info("no remote products to delete", zap.String("namespace", "remote"))
		return 0, nil
	}

	ids := make([]int64, 0, len(products))
	var mediaIDs []int64
	for _, p := range products {
		ids = append(ids, p.ID)
		mediaIDs = append(mediaIDs, p.ImageIDs()...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.mediaWorkers)
	for _, mid := range mediaIDs {
		mid := mid
		g.Go(func() error {
			if err := c.DeleteMedia(gctx, mid); err != nil {
				zap.L().Warn("delete media failed",
					zap.String("namespace", "remote"),
					zap.Int64("media_id", mid),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := c.BatchDelete(ctx, ids); err != nil {
		return 0, err
	}
	zap.L().Info("remote catalog wiped",
		zap.String("namespace", "remote"),
		zap.Int("products", len(ids)),
		zap.Int("media", len(mediaIDs)),
	)
	return len(ids), nil
}

// UploadMedia posts the file as multipart field "file" with basic auth
func (c *WooClient) UploadMedia(ctx context.Context, path string) (*domain.MediaAsset, error) {
	var (
		body string
		code int
	)
	err := gout.New(c.hc).
		POST(c.mediaURL("")).
		WithContext(ctx).
		SetBasicAuth(c.media.Username, c.media.Password).
		SetForm(gout.H{"file": gout.FormFile(path)}).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return nil, errors.Wrapf(err, "upload media %s", path)
	}
	if err := checkStatus("upload media", code, body); err != nil {
		return nil, err
	}
	var asset domain.MediaAsset
	if err := json.UnmarshalFromString(body, &asset); err != nil {
		return nil, errors.Wrap(err, "decode media response")
	}
	if asset.ID <= 0 {
		return nil, errors.Errorf("upload media %s: response carries no id", path)
	}
	zap.L().Debug("media uploaded",
		zap.String("namespace", "remote"),
		zap.Int64("media_id", asset.ID),
		zap.String("source_url", asset.SourceURL),
	)
	return &asset, nil
}

func (c *WooClient) DeleteMedia(ctx context.Context, assetID int64) error {
	var (
		body string
		code int
	)
	err := gout.New(c.hc).
		DELETE(c.mediaURL(fmt.Sprint(assetID))).
		WithContext(ctx).
		SetBasicAuth(c.media.Username, c.media.Password).
		SetQuery(gout.H{"force": true}).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return errors.Wrapf(err, "delete media %d", assetID)
	}
	return checkStatus("delete media", code, body)
}

func decodeRemoteProducts(body string) ([]domain.RemoteProduct, error) {
	var raws []map[string]interface{}
	if err := json.UnmarshalFromString(body, &raws); err != nil {
		return nil, err
	}
	result := make([]domain.RemoteProduct, 0, len(raws))
	for _, raw := range raws {
		rp, err := decodeRemoteMap(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, *rp)
	}
	return result, nil
}

func decodeRemoteProduct(body string) (*domain.RemoteProduct, error) {
	var raw map[string]interface{}
	if err := json.UnmarshalFromString(body, &raw); err != nil {
		return nil, err
	}
	return decodeRemoteMap(raw)
}

// decodeRemoteMap maps a loosely typed remote document onto RemoteProduct.
// The service sends stock_quantity as null and prices as strings.
func decodeRemoteMap(raw map[string]interface{}) (*domain.RemoteProduct, error) {
	var rp domain.RemoteProduct
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &rp,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "decode remote product")
	}
	rp.Raw = raw
	return &rp, nil
}
