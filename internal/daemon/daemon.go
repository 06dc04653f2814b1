// Package daemon provides the daemon interface and implementation.
package daemon

import (
	"github.com/gin-gonic/gin"
	"github.com/okinaau/iloader/api/server"
	"github.com/okinaau/iloader/internal/commands/loader"
	"github.com/okinaau/iloader/internal/config"
)

// Daemon is the interface that describes an iloader daemon.
type Daemon interface {
	// Start starts the daemon.
	Start() error
	// Stop stops the daemon.
	Stop() error
}

type daemon struct {
	server *server.Server
}

// NewDaemon creates a new daemon.
func NewDaemon(conf *config.Config, svc *loader.Service) Daemon {
	if conf.Daemon.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return &daemon{
		server: server.NewServer(&server.Config{
			Host:   conf.Daemon.Host,
			Port:   conf.Daemon.Port,
			Socket: conf.Daemon.Socket,
			Debug:  conf.Daemon.Debug,
		}, svc),
	}
}

func (d *daemon) Start() error {
	return d.server.Start()
}

func (d *daemon) Stop() error {
	return d.server.Stop()
}
