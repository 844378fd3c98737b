// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/ethwallet/accountstore"
	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/hwproxy/hwtest"
	"github.com/btcsuite/ethwallet/internal/cfgutil"
	"github.com/btcsuite/ethwallet/internal/prompt"
	"github.com/btcsuite/ethwallet/registry"
	"github.com/btcsuite/ethwallet/rekey"
	"github.com/btcsuite/ethwallet/wallet"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
	flags "github.com/jessevdk/go-flags"
)

var cfg *config

func main() {
	// Work around defer not working after os.Exit.
	if err := walletMain(); err != nil {
		os.Exit(1)
	}
}

// walletMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the program
// can be exited with an error exit status.
func walletMain() error {
	parser, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// The parser prints its own errors, including those returned by
	// commands.
	_, err = parser.Parse()
	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
		return nil
	}
	return err
}

// store is an account database the CLI can close.
type store interface {
	registry.Store
	Close() error
}

// app holds everything a command works with.
type app struct {
	store    store
	reg      *registry.Registry
	rekey    *rekey.Orchestrator
	prompter *prompt.Prompter
}

// openStore opens the account database of the configured backend.
func openStore(ctx context.Context) (store, error) {
	switch cfg.Backend {
	case "sqlite":
		return accountstore.OpenSQLite(ctx,
			filepath.Join(cfg.DataDir, sqliteDbName))
	case "postgres":
		return accountstore.OpenPostgres(ctx, cfg.DSN)
	default:
		return accountstore.OpenBolt(filepath.Join(cfg.DataDir, boltDbName))
	}
}

// deviceProxies returns the proxies of the hardware signers.  Without a
// simulated device file every device call fails as disconnected.
func deviceProxies() (map[hwproxy.Variant]hwproxy.Proxy, error) {
	var transport hwproxy.Transport = hwproxy.Disconnected{}
	if cfg.SimDevice != "" {
		value, ok, err := cfgutil.ReadValue(cfg.SimDevice)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("simulated device file %s does "+
				"not exist", cfg.SimDevice)
		}
		mnemonic := hdkeys.NormalizeMnemonic(value)
		if _, err := hdkeys.SeedFromMnemonic(mnemonic); err != nil {
			return nil, err
		}
		transport = hwtest.NewDevice(mnemonic)
	}

	return map[hwproxy.Variant]hwproxy.Proxy{
		hwproxy.VariantTrezor: hwproxy.NewTrezor(transport, cfg.DeviceTimeout),
		hwproxy.VariantLedger: hwproxy.NewLedger(transport, cfg.DeviceTimeout),
	}, nil
}

// newApp opens the account database and loads the registry from it.
func newApp(ctx context.Context) (*app, error) {
	s, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	proxies, err := deviceProxies()
	if err != nil {
		s.Close()
		return nil, err
	}

	sink := walleterr.SinkFunc(func(err error) {
		if code, ok := walleterr.Code(err); ok && code.Retryable() {
			log.Debugf("Retryable failure: %v", err)
			return
		}
		log.Debugf("Failure: %v", err)
	})

	reg, err := registry.New(registry.Config{
		Store:     s,
		Params:    cfg.params,
		Path:      cfg.path,
		Proxies:   proxies,
		ErrorSink: sink,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := reg.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}

	orch, err := rekey.New(rekey.Config{
		Registry:  reg,
		ErrorSink: sink,
		OnState: func(st rekey.State) {
			log.Debugf("Password change state %v", st)
		},
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	a := &app{
		store:    s,
		reg:      reg,
		rekey:    orch,
		prompter: prompt.New(),
	}
	a.restoreSelection()
	return a, nil
}

func selectionFile() string {
	return filepath.Join(cfg.DataDir, selectionFilename)
}

// restoreSelection selects the wallet saved by the previous command.  A
// missing or stale selection keeps the registry's default.
func (a *app) restoreSelection() {
	value, ok, err := cfgutil.ReadValue(selectionFile())
	if err != nil {
		log.Warnf("Unable to read selection: %v", err)
		return
	}
	if !ok {
		return
	}
	addr, err := wallet.ParseAddress(value)
	if err != nil {
		log.Warnf("Ignoring saved selection: %v", err)
		return
	}
	if err := a.reg.SelectWallet(addr); err != nil {
		log.Debugf("Saved selection %v is gone", addr)
	}
}

// saveSelection persists the selected wallet for the next command.
func (a *app) saveSelection() {
	var data string
	a.reg.Selected().WhenSome(func(addr common.Address) {
		data = addr.Hex() + "\n"
	})
	if data == "" {
		os.Remove(selectionFile())
		return
	}
	if err := os.WriteFile(selectionFile(), []byte(data), 0600); err != nil {
		log.Warnf("Unable to save selection: %v", err)
	}
}

func (a *app) close() {
	a.saveSelection()
	if err := a.store.Close(); err != nil {
		log.Errorf("Unable to close account database: %v", err)
	}
}

// run finishes the configuration, opens the wallet and runs fn with a
// context that is cancelled on interrupt.
func run(fn func(ctx context.Context, a *app) error) error {
	if err := finishConfig(); err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		log.Errorf("Unable to open wallet: %v", err)
		return err
	}
	defer a.close()

	return fn(ctx, a)
}

// walletPassword prompts for the account password.  While the wallet holds
// no keystore yet, a new password is asked for twice.
func (a *app) walletPassword() ([]byte, error) {
	if a.reg.KeyedState().Records() == 0 {
		fmt.Println("Choose the password protecting every key of the wallet.")
		return a.prompter.Password("New wallet password", true)
	}
	return a.prompter.Password("Wallet password", false)
}
