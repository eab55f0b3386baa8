package domain

import (
	"path/filepath"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Product is a local catalog record. The remote id keeps the `id` key so
// catalog files written by earlier deployments load unchanged.
type Product struct {
	SKU           string `json:"sku" csv:"sku"`
	Name          string `json:"name" csv:"name"`
	Price         string `json:"price" csv:"price"`                   // decimal as string
	StockQuantity int    `json:"stock_quantity" csv:"stock_quantity"` // units on hand
	ImageName     string `json:"image_name,omitempty" csv:"image_name"`
	RemoteID      int64  `json:"id,omitempty" csv:"remote_id"`
	ManageStock   bool   `json:"manage_stock" csv:"manage_stock"`
	MediaID       int64  `json:"media_id,omitempty" csv:"media_id"`
}

// UnmarshalJSON accepts the legacy `stock` key alongside `stock_quantity`,
// and numeric fields written as strings by form posts.
func (p *Product) UnmarshalJSON(data []byte) error {
	type Alias Product
	aux := struct {
		*Alias
		Price         interface{} `json:"price"`
		StockQuantity interface{} `json:"stock_quantity"`
		Stock         interface{} `json:"stock"`
	}{Alias: (*Alias)(p)}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Price = cast.ToString(aux.Price)
	stock := aux.StockQuantity
	if stock == nil || stock == "" {
		stock = aux.Stock
	}
	p.StockQuantity = stockValue(stock)
	return nil
}

// ParseStock reads a stock quantity as a base-10 count. Leading zeros are
// plain digits, so "010" is 10. Empty input is 0.
func ParseStock(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid stock %q", v)
	}
	return n, nil
}

// stockValue is the lenient form used for stored records: unreadable values load as 0
func stockValue(v interface{}) int {
	if s, ok := v.(string); ok {
		n, _ := ParseStock(s)
		return n
	}
	return cast.ToInt(v)
}

// Synced reports whether the remote create has succeeded for this record
func (p Product) Synced() bool {
	return p.RemoteID > 0
}

// ImagePath returns the absolute path of the product image inside dir, or "" when none.
func (p Product) ImagePath(dir string) string {
	if p.ImageName == "" {
		return ""
	}
	return filepath.Join(dir, filepath.Base(p.ImageName))
}

// Fields builds the remote payload for this record.
func (p Product) Fields() ProductFields {
	return ProductFields{
		Name:          p.Name,
		RegularPrice:  p.Price,
		StockQuantity: p.StockQuantity,
		ManageStock:   true,
		SKU:           p.SKU,
	}
}

// ProductFields is the create/update payload sent to the catalog service.
// ImagePath is resolved by the client: the file is uploaded to the media
// service and attached as the sole image.
type ProductFields struct {
	Name          string        `json:"name,omitempty"`
	RegularPrice  string        `json:"regular_price,omitempty"`
	StockQuantity int           `json:"stock_quantity"`
	ManageStock   bool          `json:"manage_stock"`
	SKU           string        `json:"sku,omitempty"`
	Images        []RemoteImage `json:"images,omitempty"`
	ImagePath     string        `json:"-"`
}

// RemoteImage is an image reference on a remote product
type RemoteImage struct {
	ID  int64  `json:"id,omitempty"`
	Src string `json:"src,omitempty"`
}

// RemoteProduct is the subset of the catalog service product we act on.
// Raw keeps the full remote document for passthrough.
type RemoteProduct struct {
	ID            int64                  `json:"id"`
	Name          string                 `json:"name"`
	SKU           string                 `json:"sku"`
	RegularPrice  string                 `json:"regular_price"`
	StockQuantity int                    `json:"stock_quantity"`
	ManageStock   bool                   `json:"manage_stock"`
	Images        []RemoteImage          `json:"images"`
	Raw           map[string]interface{} `json:"-"`
}

// ImageIDs returns the media ids attached to the remote product
func (r RemoteProduct) ImageIDs() []int64 {
	ids := make([]int64, 0, len(r.Images))
	for _, img := range r.Images {
		if img.ID > 0 {
			ids = append(ids, img.ID)
		}
	}
	return ids
}

// MediaAsset is a file hosted by the media service
type MediaAsset struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}
