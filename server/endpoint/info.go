package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meshnode/version"
)

// startTime records when the process started for uptime calculation.
var startTime = time.Now()

// InfoResponse is the /info body.
type InfoResponse struct {
	Service   string       `json:"service"`
	Build     version.Info `json:"build"`
	Release   bool         `json:"release"`
	Uptime    string       `json:"uptime"`
	Timestamp string       `json:"timestamp"`
}

// Info reports the service name, build information and uptime.
func Info(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		build := version.Get()
		c.JSON(http.StatusOK, InfoResponse{
			Service:   serviceName,
			Build:     build,
			Release:   build.IsRelease(),
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Timestamp: now(),
		})
	}
}
