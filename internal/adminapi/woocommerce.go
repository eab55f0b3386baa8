package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopsync/internal/webserver"
)

func registerWooCommerceRoutes(srv *webserver.AdminServer) {
	srv.POST("/woocommerce/delete-all", deleteAllRemote)
	srv.POST("/woocommerce/add-all", uploadAllRemote)
	srv.GET("/woocommerce/get-all", listRemote)
	srv.GET("/woocommerce/audit", auditRemote)
}

// deleteAllRemote wipes the remote catalog; the local catalog is kept
//
// @Summary delete every remote product and its media
// @Tags WooCommerce
// @Router /woocommerce/delete-all [post]
func deleteAllRemote(c echo.Context) error {
	out := GetSyncService(c).WipeRemote(c.Request().Context())
	if !out.OK() {
		return fail(c, http.StatusInternalServerError, "REMOTE_ERROR", "Failed to delete remote products", out.Err().Error())
	}
	return redirectHome(c, webserver.FlashSuccess, out.Message())
}

// uploadAllRemote batch-creates the local catalog remotely
//
// @Summary upload all local products
// @Tags WooCommerce
// @Router /woocommerce/add-all [post]
func uploadAllRemote(c echo.Context) error {
	out := GetSyncService(c).BulkUpload(c.Request().Context())
	if !out.OK() {
		return fail(c, http.StatusInternalServerError, "REMOTE_ERROR", "Failed to upload products", out.Err().Error())
	}
	return redirectHome(c, webserver.FlashSuccess, out.Message())
}

// listRemote returns the remote products as the service sent them
//
// @Summary list the full remote catalog
// @Tags WooCommerce
// @Success 200 {array} object
// @Router /woocommerce/get-all [get]
func listRemote(c echo.Context) error {
	products, err := GetSyncService(c).FetchRemote(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "REMOTE_ERROR", "Failed to fetch remote products", err.Error())
	}
	docs := make([]map[string]interface{}, 0, len(products))
	for _, p := range products {
		docs = append(docs, p.Raw)
	}
	return c.JSON(http.StatusOK, docs)
}

func auditRemote(c echo.Context) error {
	report, err := GetSyncService(c).Audit(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "REMOTE_ERROR", "Failed to audit catalog", err.Error())
	}
	return ok(c, report)
}
