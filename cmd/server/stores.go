package main

import (
	"context"
	"fmt"

	"github.com/rpattn/engcrm/internal/db"
	"github.com/rpattn/engcrm/internal/registry"
	"github.com/rpattn/engcrm/internal/repository"
	"github.com/rpattn/engcrm/internal/repository/memory"
	"github.com/rpattn/engcrm/internal/smartlist"
)

type stores struct {
	entities repository.EntityRepository
	lists    repository.SmartListRepository
	close    func()
}

// openStores connects to Postgres, or returns empty process-local stores
// when inMemory is set.
func openStores(ctx context.Context, dbCfg db.Config, inMemory bool) (stores, error) {
	if inMemory {
		logger.Warn("using in-memory stores; data is lost on exit")
		return stores{
			entities: memory.NewEntityStore(),
			lists:    memory.NewSmartListStore(),
			close:    func() {},
		}, nil
	}

	conn, err := db.NewConnection(ctx, dbCfg)
	if err != nil {
		return stores{}, err
	}
	return stores{
		entities: repository.NewEntityRepository(conn.Pool),
		lists:    repository.NewSmartListRepository(conn.Pool),
		close:    conn.Close,
	}, nil
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default()
	}
	reg, err := registry.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry %s: %w", path, err)
	}
	return reg, nil
}

func newSmartListService(reg *registry.Registry, s stores) *smartlist.Service {
	return smartlist.NewService(reg, s.lists, s.entities, logger,
		smartlist.WithPreviewLimit(cfg.SmartLists.PreviewLimit),
	)
}
