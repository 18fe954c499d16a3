// ABOUTME: Builds the sync engine from the current config
// ABOUTME: Backend priority when configured: GReader > Miniflux > Snapshot > Local

package main

import (
	"github.com/harper/skein/internal/blob"
	"github.com/harper/skein/internal/config"
	"github.com/harper/skein/internal/remote/greader"
	"github.com/harper/skein/internal/remote/miniflux"
	"github.com/harper/skein/internal/sync"
)

// buildEngine wires coordinators for every configured backend and an
// orchestrator that picks the authoritative one per call.
func buildEngine() (*sync.Orchestrator, error) {
	var greaderCoord, minifluxCoord, snapshotCoord sync.Coordinator

	if cfg.HasGReader() {
		client := greader.NewClient(cfg.GReader.ServerURL, cfg.GReader.Token)
		greaderCoord = sync.NewGReaderCoordinator(store, client, logger)
	}
	if cfg.HasMiniflux() {
		client := miniflux.NewClient(cfg.Miniflux.Endpoint, cfg.Miniflux.APIKey)
		minifluxCoord = sync.NewMinifluxCoordinator(store, client, logger)
	}
	if cfg.SnapshotSync {
		blobs, err := blob.NewCharmStore()
		if err != nil {
			return nil, err
		}
		service := sync.NewSnapshotService(store, blobs, logger)
		snapshotCoord = sync.NewSnapshotCoordinator(service, logger)
	}

	local := sync.NewLocalCoordinator(store, nil, logger)

	resolve := func() sync.Backend { return activeBackend(cfg) }
	return sync.NewOrchestrator(resolve, greaderCoord, minifluxCoord, snapshotCoord, local), nil
}

func activeBackend(cfg *config.Config) sync.Backend {
	switch {
	case cfg.HasGReader():
		return sync.BackendGReader
	case cfg.HasMiniflux():
		return sync.BackendMiniflux
	case cfg.SnapshotSync:
		return sync.BackendSnapshot
	default:
		return sync.BackendLocal
	}
}
