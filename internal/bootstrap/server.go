package bootstrap

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"

	app "github.com/mohammadpnp/site-import/internal/application/siteimport"
	httpecho "github.com/mohammadpnp/site-import/internal/interfaces/http/echo"
)

type HTTPServices struct {
	ListImports  app.ListSiteImports
	StartImport  app.StartSiteImport
	DeleteImport app.DeleteSiteImport
}

func NewHTTPServer(logger *slog.Logger, services HTTPServices) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	server := echo.New()
	server.HideBanner = true
	server.HidePort = true

	server.Use(slogecho.NewWithConfig(logger, slogecho.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	}))
	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("1M"))

	importHandler := httpecho.NewImportHandler(services.ListImports, services.StartImport, services.DeleteImport)
	httpecho.RegisterRoutes(server, importHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return server
}

func (c *Container) HTTPServices() HTTPServices {
	return HTTPServices{
		ListImports:  c.ListImports,
		StartImport:  c.StartImport,
		DeleteImport: c.DeleteImport,
	}
}
