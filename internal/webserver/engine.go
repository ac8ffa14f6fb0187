package webserver

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/mediastore/internal/media"
	middlewarepkg "github.com/mdouchement/mediastore/internal/webserver/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Version string
	Logger  logger.Logger
	Media   *media.Service
	// Kinds maps the upload kinds (route prefixes) to their bucket.
	Kinds map[string]string
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl Controller) *echo.Echo {
	engine := echo.New()
	engine.HideBanner = true
	engine.Use(middleware.Recover())
	engine.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			// Payloads are streamed as is, promhttp compresses by itself.
			return strings.Contains(c.Path(), "/stream/") || c.Path() == "/metrics"
		},
	}))
	engine.Use(middlewarepkg.Logger(ctrl.Logger))
	engine.Use(middlewarepkg.Headers(ctrl.Version))

	engine.HTTPErrorHandler = middlewarepkg.NewHTTPErrorHandler(ctrl.Logger)

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	//
	//
	//

	router := engine.Group("")

	// Generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})
	router.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Index records
	//
	records := records{
		logger: ctrl.Logger,
		media:  ctrl.Media,
	}
	router.GET("/records", records.List)
	router.GET("/records/recent", records.Recent)
	router.DELETE("/records/:id", records.Delete)

	// Buckets & files
	//
	files := files{
		logger: ctrl.Logger,
		media:  ctrl.Media,
		kinds:  ctrl.Kinds,
	}
	router.GET("/buckets", files.Buckets)
	router.POST("/:kind", files.Upload)
	router.POST("/:kind/multiple", files.UploadMany)
	router.GET("/:kind/files", files.List)
	router.GET("/:kind/files/:name", files.Show)
	router.GET("/:kind/stream/:name", files.Stream)
	// Same node as the GET, the router keeps one param name per node.
	router.DELETE("/:kind/files/:name", files.Delete)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
