package main

import (
	"fmt"

	"github.com/atlo/dashboard/internal/config"
	"github.com/atlo/dashboard/internal/database"
	"github.com/atlo/dashboard/internal/storage"
	gormstorage "github.com/atlo/dashboard/internal/storage/gorm"
	"github.com/atlo/dashboard/internal/storage/memory"
)

func initStorage() (storage.Backend, error) {
	Logger.Debug("Initializing storage")

	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		_ = backend.Close()
		return nil, err
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres", "sqlite":
		mgr := database.NewManager(ZLogger)
		if err := mgr.Connect(storageCfg); err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", storageCfg.Type, err)
		}
		Logger.Info("GORM storage backend initialized", "type", storageCfg.Type)
		return gormstorage.New(gormstorage.Dependencies{
			DB:     mgr.DB,
			Logger: Logger,
		}), nil

	case "memory", "":
		Logger.Info("Memory storage backend initialized")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}
