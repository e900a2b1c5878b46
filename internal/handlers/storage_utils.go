package handlers

import (
	"sync"

	"github.com/rs/zerolog/log"

	config "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/internal/storage"
)

// package-level variables for shared storage
var (
	mainStorage storage.IStorage
	storageOnce sync.Once
	storageErr  error
)

// getMainStorage returns the storage connector shared by all handlers.
func getMainStorage() (storage.IStorage, error) {
	storageOnce.Do(func() {
		mainStorage, storageErr = storage.NewConnector(&config.Cfg.Storage)
		if storageErr != nil {
			log.Error().Err(storageErr).Msg("Error creating storage connector")
		}
	})
	return mainStorage, storageErr
}

// SetMainStorage overrides the shared connector. Tests use it to point the
// handlers at a memory connector.
func SetMainStorage(s storage.IStorage) {
	storageOnce.Do(func() {})
	mainStorage = s
	storageErr = nil
}
