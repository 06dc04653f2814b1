// Package devices provides the /devices routes
package devices

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/okinaau/iloader/api/types"
	"github.com/okinaau/iloader/internal/commands/loader"
	"github.com/okinaau/iloader/internal/device"
)

// AddRoutes adds the device routes to the router
func AddRoutes(rg *gin.RouterGroup, svc *loader.Service) {
	dg := rg.Group("/devices")

	// swagger:route GET /devices Devices getDevices
	//
	// List
	//
	// List the attached devices.
	//
	//     Responses:
	//       200: []DeviceInfo
	//       500: genericError
	//       503: genericError
	dg.GET("", func(c *gin.Context) {
		devices, err := svc.ListDevices(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(StatusFor(err), types.GenericError{Error: err.Error()})
			return
		}
		if devices == nil {
			devices = []device.Info{}
		}
		c.JSON(http.StatusOK, devices)
	})
	dg.GET("/selected", func(c *gin.Context) {
		info, ok := svc.SelectedDevice()
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, types.GenericError{Error: device.ErrNoDeviceSelected.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	})
	dg.PUT("/selected", func(c *gin.Context) {
		var info device.Info
		if err := c.ShouldBindJSON(&info); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: err.Error()})
			return
		}
		if info.UniqueID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: "uniqueId is required"})
			return
		}
		svc.SetSelectedDevice(&info)
		c.JSON(http.StatusOK, info)
	})
	dg.DELETE("/selected", func(c *gin.Context) {
		svc.SetSelectedDevice(nil)
		c.Status(http.StatusNoContent)
	})
}

// StatusFor maps core errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, device.ErrTransportUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, device.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, device.ErrNoDeviceSelected):
		return http.StatusConflict
	case errors.Is(err, loader.ErrCancelled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
