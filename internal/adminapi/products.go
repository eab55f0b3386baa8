package adminapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopsync/internal/catalogsync"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/webserver"
	"go.uber.org/zap"
)

type productForm struct {
	Name          string `form:"name" validate:"required,max=200"`
	Price         string `form:"price" validate:"omitempty,numeric"`
	StockQuantity string `form:"stock_quantity" validate:"omitempty,numeric"`
	Stock         string `form:"stock" validate:"omitempty,numeric"`
}

type productUpdateForm struct {
	SKU           string `form:"sku"` // accepted, never applied
	Name          string `form:"name" validate:"omitempty,max=200"`
	Price         string `form:"price" validate:"omitempty,numeric"`
	StockQuantity string `form:"stock_quantity" validate:"omitempty,numeric"`
	Stock         string `form:"stock" validate:"omitempty,numeric"`
}

// stockValue prefers stock_quantity and falls back to the legacy stock field
func stockValue(stockQuantity, stock string) string {
	if s := strings.TrimSpace(stockQuantity); s != "" {
		return s
	}
	return strings.TrimSpace(stock)
}

type indexPage struct {
	Products []domain.Product
	Flashes  []webserver.Flash
}

func registerProductRoutes(srv *webserver.AdminServer) {
	srv.GET("/", listProducts)
	srv.POST("/new", createProduct)
	srv.POST("/edit/:id", updateProduct)
	srv.POST("/delete/:id", deleteProduct)
	srv.POST("/discard/:sku", discardProduct)
	srv.GET("/export.csv", exportProducts)
}

func listProducts(c echo.Context) error {
	page := indexPage{Flashes: webserver.Flashes(c)}
	products, err := GetSyncService(c).List(c.Request().Context())
	if err != nil {
		zap.L().Error("load catalog failed", zap.String("namespace", "adminapi"), zap.Error(err))
		page.Flashes = append(page.Flashes, webserver.Flash{Level: webserver.FlashError, Message: "Failed to load catalog: " + err.Error()})
		page.Products = []domain.Product{}
		return c.Render(http.StatusInternalServerError, "index.html", page)
	}
	page.Products = products
	return c.Render(http.StatusOK, "index.html", page)
}

func createProduct(c echo.Context) error {
	var form productForm
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	form.Name = strings.TrimSpace(form.Name)
	if err := c.Validate(&form); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid product", err.Error())
	}

	svc := GetSyncService(c)
	imageName, err := webserver.SaveUpload(c, "image", svc.ImageDir())
	if errors.Is(err, webserver.ErrNotImage) {
		return fail(c, http.StatusBadRequest, "INVALID_IMAGE", err.Error(), nil)
	}
	if err != nil {
		return redirectHome(c, webserver.FlashError, "Image upload failed: "+err.Error())
	}

	out := svc.Create(c.Request().Context(), catalogsync.ProductInput{
		Name:      form.Name,
		Price:     form.Price,
		Stock:     stockValue(form.StockQuantity, form.Stock),
		ImageName: imageName,
	})
	if !out.OK() {
		return redirectHome(c, webserver.FlashError, out.Message())
	}
	return redirectHome(c, webserver.FlashSuccess, out.Message())
}

func updateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var form productUpdateForm
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if err := c.Validate(&form); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid product", err.Error())
	}

	svc := GetSyncService(c)
	imageName, err := webserver.SaveUpload(c, "image", svc.ImageDir())
	if errors.Is(err, webserver.ErrNotImage) {
		return fail(c, http.StatusBadRequest, "INVALID_IMAGE", err.Error(), nil)
	}
	if err != nil {
		return redirectHome(c, webserver.FlashError, "Image upload failed: "+err.Error())
	}

	out := svc.Update(c.Request().Context(), id, catalogsync.ProductInput{
		SKU:       form.SKU,
		Name:      form.Name,
		Price:     form.Price,
		Stock:     stockValue(form.StockQuantity, form.Stock),
		ImageName: imageName,
	})
	if errors.Is(out.LocalErr, catalogsync.ErrProductNotFound) {
		return fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	}
	if !out.OK() {
		return redirectHome(c, webserver.FlashError, out.Message())
	}
	return redirectHome(c, webserver.FlashSuccess, out.Message())
}

func deleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}

	out := GetSyncService(c).Delete(c.Request().Context(), id)
	if errors.Is(out.LocalErr, catalogsync.ErrProductNotFound) {
		return fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	}
	if !out.OK() {
		return redirectHome(c, webserver.FlashError, out.Message())
	}
	return redirectHome(c, webserver.FlashSuccess, out.Message())
}

// discardProduct drops a local record that has no remote id yet
func discardProduct(c echo.Context) error {
	sku := strings.TrimSpace(c.Param("sku"))
	if sku == "" {
		return fail(c, http.StatusBadRequest, "INVALID_SKU", "Invalid product SKU", nil)
	}

	out := GetSyncService(c).Discard(c.Request().Context(), sku)
	switch {
	case errors.Is(out.LocalErr, catalogsync.ErrProductNotFound):
		return fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	case errors.Is(out.LocalErr, catalogsync.ErrProductSynced):
		return fail(c, http.StatusConflict, "PRODUCT_SYNCED", "Product is synced, use delete", nil)
	case !out.OK():
		return redirectHome(c, webserver.FlashError, out.Message())
	}
	return redirectHome(c, webserver.FlashSuccess, out.Message())
}

func exportProducts(c echo.Context) error {
	products, err := GetSyncService(c).List(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to load catalog", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="products.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	return gocsv.Marshal(&products, c.Response())
}
