// Package routes contains all the routes for the API
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/okinaau/iloader/api/server/routes/daemon"
	"github.com/okinaau/iloader/api/server/routes/devices"
	"github.com/okinaau/iloader/api/server/routes/operations"
	"github.com/okinaau/iloader/api/server/routes/pairing"
	"github.com/okinaau/iloader/internal/commands/loader"
)

// Add adds the command routes to the router
func Add(rg *gin.RouterGroup, svc *loader.Service, store *operations.Store) {
	daemon.AddRoutes(rg)
	devices.AddRoutes(rg, svc)
	operations.AddRoutes(rg, svc, store)
	pairing.AddRoutes(rg, svc)
}
