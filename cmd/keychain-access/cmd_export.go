package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/awnumar/memguard"
	"github.com/codahale/keychain-access/internal/config"
	"github.com/codahale/keychain-access/internal/logging"
	"github.com/codahale/keychain-access/pkg/kca"
	"go.uber.org/zap"
)

var (
	errMissingPassword = &passwordError{msg: "option requires an argument -- p"}
	errEmptyPassword   = &passwordError{msg: "password must not be empty"}
)

type passwordError struct {
	msg string
}

func (e *passwordError) Error() string {
	return e.msg
}

// password is the value of -p. It is nil unless the flag was given.
type password struct {
	value []byte
}

// Decode takes the next argument as the password, even if it looks like a flag.
func (p *password) Decode(ctx *kong.DecodeContext) error {
	s, ok := ctx.Scan.Pop().Value.(string)
	if !ok {
		return errMissingPassword
	}

	if s == "" {
		return errEmptyPassword
	}

	p.value = []byte(s)

	return nil
}

func (cmd *cli) Run(_ *kong.Context, env *environment) error {
	defer memguard.WipeBytes(cmd.Password.value)

	// Load the configuration.
	cfg, err := config.Load(env.getenv)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, env.stderr)
	if err != nil {
		return err
	}

	defer func() { _ = logger.Sync() }()

	// Open the store.
	s, err := env.openStore(cfg, logger)
	if err != nil {
		return err
	}

	logger.Debug("opened store", zap.String("backend", cfg.Store.Backend))

	// Export the key.
	return kca.NewExporter(s, env.stdout, logger).Export(context.Background(), cmd.KeyNames[0], cmd.Password.value)
}
