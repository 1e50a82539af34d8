package main

import (
	"fmt"

	"github.com/codahale/keychain-access/internal/config"
	"github.com/codahale/keychain-access/pkg/kca/store"
	"github.com/codahale/keychain-access/pkg/kca/store/awskms"
	"github.com/codahale/keychain-access/pkg/kca/store/keychain"
	"github.com/codahale/keychain-access/pkg/kca/store/keyring"
	"github.com/codahale/keychain-access/pkg/kca/store/local"
	"go.uber.org/zap"
)

type storeOpener func(cfg config.Config, logger *zap.Logger) (store.Store, error)

// openStore opens the configured store backend.
func openStore(cfg config.Config, logger *zap.Logger) (store.Store, error) {
	logger.Debug("opening store", zap.String("backend", cfg.Store.Backend))

	switch cfg.Store.Backend {
	case config.BackendKeychain:
		return keychain.Open()
	case config.BackendKeyring:
		s, err := keyring.Open(keyring.Config{
			ServiceName:  cfg.Store.Keyring.Service,
			Backends:     cfg.Store.Keyring.Backends,
			FileDir:      cfg.Store.Keyring.FileDir,
			PasswordFunc: askPassphrase,
		})
		if err != nil {
			return nil, err
		}

		return s, nil
	case config.BackendLocal:
		s, err := local.Open(cfg.Store.Local.Dir)
		if err != nil {
			return nil, err
		}

		return s, nil
	case config.BackendAWSKMS:
		s, err := awskms.Open(awskms.Options{
			Region:  cfg.Store.AWSKMS.Region,
			Profile: cfg.Store.AWSKMS.Profile,
		})
		if err != nil {
			return nil, err
		}

		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
