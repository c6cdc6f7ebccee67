package handler

import (
	"omni-license-server/internal/license"
	"omni-license-server/internal/registry"
	"omni-license-server/internal/service"
	"omni-license-server/internal/token"
)

// Handler bundles the dependencies every route needs. Everything is
// constructed once in main and passed down; the handler layer keeps no
// package-level state of its own.
type Handler struct {
	Registry  *registry.Registry
	Service   *license.Service
	Codec     *token.Codec
	SheetSync *service.SheetSyncService
}

func New(reg *registry.Registry, svc *license.Service, codec *token.Codec, sheetSync *service.SheetSyncService) *Handler {
	return &Handler{
		Registry:  reg,
		Service:   svc,
		Codec:     codec,
		SheetSync: sheetSync,
	}
}
