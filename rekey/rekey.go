// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rekey changes the password protecting every keystore held by a
// wallet registry.
//
// A change runs in two phases.  First every keystore is decrypted under the
// old password; a single failure aborts the change before anything is
// encrypted.  Then every secret is encrypted under the new password with a
// fresh salt and IV and the whole batch is committed to the registry, which
// persists it in one all-or-nothing write before swapping its records.
// Decrypted secrets are cleared on every path.
package rekey

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/registry"
	"github.com/btcsuite/ethwallet/walleterr"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// State is the phase of an Orchestrator.
type State uint32

const (
	// StateIdle means no password change is running.
	StateIdle State = iota

	// StateDecrypting means keystores are being decrypted under the old
	// password.
	StateDecrypting

	// StateReEncrypting means secrets are being encrypted under the new
	// password and committed.
	StateReEncrypting

	// StateFailed is entered when either active phase fails.  The
	// orchestrator returns to StateIdle right after.
	StateFailed
)

var stateStrings = map[State]string{
	StateIdle:         "idle",
	StateDecrypting:   "decrypting",
	StateReEncrypting: "re-encrypting",
	StateFailed:       "failed",
}

// String returns the state name.
func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return "unknown"
}

// Registry is the part of a wallet registry a password change works on.
type Registry interface {
	// Params returns the key derivation parameters of new keystores.
	Params() keycrypt.Params

	// KeyedState returns a snapshot of every encrypted keystore.
	KeyedState() *registry.KeyedState

	// CommitRekey replaces the keystores of a snapshot all at once.
	CommitRekey(ctx context.Context, snap *registry.KeyedState,
		next *registry.Rekeyed) error
}

// Config holds the collaborators of an Orchestrator.
type Config struct {
	Registry Registry

	// ErrorSink receives every error returned by ChangePassword.
	ErrorSink walleterr.Sink

	// MaxParallel bounds the number of concurrent key derivations.  It
	// defaults to the number of CPUs.
	MaxParallel int

	// OnState, if set, is called on every state transition.
	OnState func(State)
}

// Orchestrator runs password changes one at a time.
type Orchestrator struct {
	cfg Config

	// mu serializes ChangePassword.
	mu    sync.Mutex
	state atomic.Uint32
}

// New returns an idle Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, walleterr.New(walleterr.ErrInvalidParams,
			"orchestrator needs a registry", nil)
	}
	if cfg.ErrorSink == nil {
		cfg.ErrorSink = walleterr.Discard
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = runtime.NumCPU()
	}
	return &Orchestrator{cfg: cfg}, nil
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(uint32(s))
	log.Debugf("Password change %v", s)
	if o.cfg.OnState != nil {
		o.cfg.OnState(s)
	}
}

// fail moves through StateFailed back to StateIdle and reports err.
func (o *Orchestrator) fail(err error) error {
	o.setState(StateFailed)
	o.setState(StateIdle)

	log.Errorf("Password change failed: %v", err)
	o.cfg.ErrorSink.EmitError(err)
	return err
}

// job is one keystore to re-key.
type job struct {
	name   string
	record *keycrypt.KeystoreRecord
	secret []byte
	next   *keycrypt.KeystoreRecord

	// put stores next in its slot of a Rekeyed.
	put func(r *registry.Rekeyed, next *keycrypt.KeystoreRecord)
}

func jobsFor(snap *registry.KeyedState) []*job {
	var jobs []*job
	if snap.HDRoot != nil {
		jobs = append(jobs, &job{
			name:   "HD root",
			record: snap.HDRoot.Keystore(),
			put: func(r *registry.Rekeyed, next *keycrypt.KeystoreRecord) {
				r.HDRoot = next
			},
		})
	}
	for addr, w := range snap.Wallets {
		jobs = append(jobs, &job{
			name:   addr.Hex(),
			record: w.Keystore(),
			put: func(r *registry.Rekeyed, next *keycrypt.KeystoreRecord) {
				r.Wallets[addr] = next
			},
		})
	}
	for v, record := range snap.XPubs {
		jobs = append(jobs, &job{
			name:   v.String() + " key cache",
			record: record,
			put: func(r *registry.Rekeyed, next *keycrypt.KeystoreRecord) {
				r.XPubs[v] = next
			},
		})
	}
	return jobs
}

// ChangePassword re-encrypts every keystore of the registry from
// oldPassword to newPassword.  When any keystore does not decrypt under
// oldPassword, or the commit fails, nothing changes in the registry or its
// store.
func (o *Orchestrator) ChangePassword(ctx context.Context, oldPassword,
	newPassword []byte) error {

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(newPassword) == 0 {
		err := walleterr.New(walleterr.ErrInvalidParams,
			"new password is empty", nil)
		o.cfg.ErrorSink.EmitError(err)
		return err
	}

	snap := o.cfg.Registry.KeyedState()
	if snap.Records() == 0 {
		err := walleterr.New(walleterr.ErrNotFound,
			"no keystores to re-key", nil)
		o.cfg.ErrorSink.EmitError(err)
		return err
	}

	jobs := jobsFor(snap)
	defer func() {
		for _, j := range jobs {
			zero.Bytes(j.secret)
		}
	}()

	log.Infof("Changing password of %d %s", len(jobs),
		pickNoun(len(jobs), "keystore", "keystores"))

	o.setState(StateDecrypting)
	err := o.run(ctx, jobs, func(j *job) error {
		secret, err := keycrypt.Decrypt(oldPassword, j.record)
		if err != nil {
			log.Debugf("Keystore %s did not decrypt", j.name)
			return err
		}
		j.secret = secret
		return nil
	})
	if err != nil {
		return o.fail(err)
	}

	o.setState(StateReEncrypting)
	params := o.cfg.Registry.Params()
	err = o.run(ctx, jobs, func(j *job) error {
		next, err := keycrypt.Encrypt(newPassword, j.secret,
			j.record.Address, params)
		zero.Bytes(j.secret)
		if err != nil {
			return err
		}
		j.next = next
		return nil
	})
	if err != nil {
		return o.fail(err)
	}

	next := &registry.Rekeyed{
		Wallets: make(map[common.Address]*keycrypt.KeystoreRecord),
		XPubs:   make(map[hwproxy.Variant]*keycrypt.KeystoreRecord),
	}
	for _, j := range jobs {
		j.put(next, j.next)
	}
	if err := o.cfg.Registry.CommitRekey(ctx, snap, next); err != nil {
		return o.fail(err)
	}

	o.setState(StateIdle)
	log.Infof("Password changed")
	return nil
}

// run applies fn to every job in parallel and returns the first error.
func (o *Orchestrator) run(ctx context.Context, jobs []*job,
	fn func(*job) error) error {

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxParallel)
	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(j)
		})
	}
	return g.Wait()
}
