package webserver

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotImage is returned for uploads whose content type is not image/*
var ErrNotImage = errors.New("only image uploads are allowed")

// SaveUpload stores the multipart file of field in dir as
// "<unix millis>-<base name>" and returns the stored name.
// A request without the file returns "" and no error.
func SaveUpload(c echo.Context, field, dir string) (string, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "read upload")
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return "", ErrNotImage
	}

	base := filepath.Base(fh.Filename)
	if base == "." || base == string(filepath.Separator) {
		return "", errors.New("upload has no file name")
	}
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), base)

	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create image dir")
	}
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", errors.Wrap(err, "create image file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", errors.Wrap(err, "write image file")
	}
	zap.L().Debug("image stored",
		zap.String("namespace", "web"),
		zap.String("name", name),
		zap.Int64("size", fh.Size),
	)
	return name, nil
}
