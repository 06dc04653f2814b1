// Package operations provides the routes that start workflows and stream
// their events.
package operations

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/okinaau/iloader/api/types"
	"github.com/okinaau/iloader/internal/commands/loader"
	"github.com/okinaau/iloader/internal/operation"
	"github.com/okinaau/iloader/internal/workflow"
)

// AddRoutes adds the operation routes to the router
func AddRoutes(rg *gin.RouterGroup, svc *loader.Service, store *Store) {
	// swagger:route POST /sideload Operations postSideload
	//
	// Sideload
	//
	// Install an app package on the selected device.
	//
	//     Responses:
	//       202: operationResponse
	//       400: genericError
	rg.POST("/sideload", func(c *gin.Context) {
		var req types.SideloadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: err.Error()})
			return
		}
		r := store.Start(workflow.SideloadOperation, func(ctx context.Context, events chan<- operation.Event) error {
			return svc.RunSideload(ctx, events, req.Path)
		})
		c.JSON(http.StatusAccepted, types.OperationResponse{ID: r.ID, Name: r.Name})
	})
	// swagger:route POST /install Operations postInstall
	//
	// Install
	//
	// Download SideStore, install it and place the pairing file.
	//
	//     Responses:
	//       202: operationResponse
	//       400: genericError
	rg.POST("/install", func(c *gin.Context) {
		var opts workflow.InstallOptions
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&opts); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: err.Error()})
				return
			}
		}
		r := store.Start(workflow.InstallOperation, func(ctx context.Context, events chan<- operation.Event) error {
			return svc.RunInstallAndPair(ctx, events, opts)
		})
		c.JSON(http.StatusAccepted, types.OperationResponse{ID: r.ID, Name: r.Name})
	})

	og := rg.Group("/operations")
	og.GET("/:id", func(c *gin.Context) {
		r, ok := store.Get(c.Param("id"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, types.GenericError{Error: "operation not found"})
			return
		}
		evs, _, done := r.Since(0)
		status := types.OperationStatus{ID: r.ID, Name: r.Name, Done: done, Events: evs}
		if err := r.Err(); err != nil {
			status.Error = err.Error()
		}
		c.JSON(http.StatusOK, status)
	})
	// swagger:route GET /operations/{id}/events Operations getOperationEvents
	//
	// Events
	//
	// Stream the events of an operation as server-sent events. The stream
	// ends with an "end" event once the operation returned.
	og.GET("/:id/events", func(c *gin.Context) {
		r, ok := store.Get(c.Param("id"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, types.GenericError{Error: "operation not found"})
			return
		}
		sent := 0
		c.Stream(func(w io.Writer) bool {
			evs, changed, done := r.Since(sent)
			for _, ev := range evs {
				c.SSEvent(string(ev.Kind), ev)
			}
			sent += len(evs)
			if len(evs) > 0 {
				return true
			}
			if done {
				end := types.GenericError{}
				if err := r.Err(); err != nil {
					end.Error = err.Error()
				}
				c.SSEvent("end", end)
				return false
			}
			select {
			case <-changed:
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	})
}
