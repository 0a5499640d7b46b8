package monitoring

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartServer runs the metrics/ops endpoint on its own port, separate
// from the application API.
func StartServer(port string, healthCheck func() error) {
	e := echo.New()
	e.HideBanner = true

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/healthz", func(c echo.Context) error {
		if healthCheck != nil {
			if err := healthCheck(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
		log.Printf("Metrics server stopped: %v", err)
	}
}
