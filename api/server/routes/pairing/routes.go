// Package pairing provides the /pairing routes
package pairing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/okinaau/iloader/api/server/routes/devices"
	"github.com/okinaau/iloader/api/types"
	"github.com/okinaau/iloader/internal/commands/loader"
	core "github.com/okinaau/iloader/internal/pairing"
)

// AddRoutes adds the pairing routes to the router
func AddRoutes(rg *gin.RouterGroup, svc *loader.Service) {
	pg := rg.Group("/pairing")

	// swagger:route GET /pairing/apps Pairing getPairingApps
	//
	// Apps
	//
	// List the installed apps on the selected device that accept a pairing file.
	//
	//     Responses:
	//       200: []App
	//       409: genericError
	//       500: genericError
	pg.GET("/apps", func(c *gin.Context) {
		apps, err := svc.ListInstalledPairableApps(c.Request.Context())
		if err != nil {
			abort(c, err)
			return
		}
		if apps == nil {
			apps = []core.App{}
		}
		c.JSON(http.StatusOK, apps)
	})
	pg.POST("/place", func(c *gin.Context) {
		var req types.PlaceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: err.Error()})
			return
		}
		if err := svc.PlacePairingCredential(c.Request.Context(), req.BundleID, req.Path); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	// the daemon has no file chooser, the client sends the destination
	pg.POST("/export", func(c *gin.Context) {
		var req types.ExportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: err.Error()})
			return
		}
		out, err := svc.ExportPairingCredential(c.Request.Context(), core.FixedPath(req.Path))
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, types.ExportResponse{Path: out})
	})
}

func abort(c *gin.Context, err error) {
	status := devices.StatusFor(err)
	switch {
	case errors.Is(err, core.ErrPairingUnavailable):
		status = http.StatusPreconditionFailed
	case errors.Is(err, core.ErrMalformedAppMetadata):
		status = http.StatusBadGateway
	}
	c.AbortWithStatusJSON(status, types.GenericError{Error: err.Error()})
}
