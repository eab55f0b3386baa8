package app

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// checkDirs creates the workdir layout
func (a *Application) checkDirs() error {
	cfg := a.appConfig
	for _, dir := range []string{cfg.GetDataDir(), cfg.GetLogDir(), cfg.ImageDirPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return nil
}

// checkCatalog writes an empty catalog file on first start so operators
// can see where the data lives
func (a *Application) checkCatalog() error {
	path := a.appConfig.CatalogFilePath()
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return errors.Wrapf(err, "stat %s", path)
	}
	if err := a.store.Save(context.Background(), nil); err != nil {
		return err
	}
	zap.L().Info("initialized empty catalog", zap.String("namespace", "app"), zap.String("path", path))
	return nil
}
