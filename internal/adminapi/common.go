package adminapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopsync/internal/catalogsync"
	"github.com/talkincode/shopsync/internal/webserver"
)

const syncServiceKey = "catalogsync.service"

// Response is the JSON envelope of the api endpoints
type Response struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Init attaches the sync service to every request and registers all routes
func Init(srv *webserver.AdminServer, svc *catalogsync.Service) {
	srv.Echo().Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(syncServiceKey, svc)
			return next(c)
		}
	})
	registerProductRoutes(srv)
	registerWooCommerceRoutes(srv)
}

// GetSyncService returns the workflow service bound to the request
func GetSyncService(c echo.Context) *catalogsync.Service {
	return c.Get(syncServiceKey).(*catalogsync.Service)
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Code: "OK", Data: data})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, Response{Code: code, Message: message, Details: details})
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.ErrBadRequest
	}
	return id, nil
}

// redirectHome finishes a form post with a flash message
func redirectHome(c echo.Context, level, message string) error {
	webserver.AddFlash(c, level, message)
	return c.Redirect(http.StatusFound, "/")
}
