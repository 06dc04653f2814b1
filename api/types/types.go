package types

import (
	"github.com/okinaau/iloader/internal/operation"
)

var (
	BuildVersion string
	BuildTime    string
)

// Version is the version struct
type Version struct {
	APIVersion     string `json:"api_version,omitempty"`
	OSType         string `json:"os_type,omitempty"`
	BuilderVersion string `json:"builder_version,omitempty"`
}

// swagger:response genericError
type GenericError struct {
	Error string `json:"error"`
}

// SideloadRequest is the body of POST /sideload
type SideloadRequest struct {
	Path string `json:"path" binding:"required"`
}

// PlaceRequest is the body of POST /pairing/place
type PlaceRequest struct {
	BundleID string `json:"bundleId" binding:"required"`
	Path     string `json:"path" binding:"required"`
}

// ExportRequest is the body of POST /pairing/export
type ExportRequest struct {
	Path string `json:"path"`
}

// ExportResponse returns where the pairing file was written
type ExportResponse struct {
	Path string `json:"path"`
}

// OperationResponse identifies a started operation
type OperationResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OperationStatus is the state of a started operation
type OperationStatus struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Done   bool              `json:"done"`
	Error  string            `json:"error,omitempty"`
	Events []operation.Event `json:"events"`
}
