// Package lightclient drives a light client store: it bootstraps from a
// beacon node, follows its updates and persists what it verified.
package lightclient

import (
	"context"
	"time"

	"github.com/MariusVanDerWijden/eth2-lc/beacon"
	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/MariusVanDerWijden/eth2-lc/core"
	"github.com/MariusVanDerWijden/eth2-lc/db"
	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "lightclient")

// ErrNotInitialized is returned by operations that need a store before Init
// has run.
var ErrNotInitialized = errors.New("light client not initialized")

const (
	genesisKey   = "genesis"
	bootstrapKey = "bootstrap"
	stateKey     = "state"

	defaultUpdatesPerRequest = 8
)

// BeaconClient is the part of the beacon API the light client uses.
type BeaconClient interface {
	Genesis(ctx context.Context) (*types.Genesis, error)
	Bootstrap(ctx context.Context, root common.Hash) (*types.LightClientBootstrap, error)
	LightClientUpdates(ctx context.Context, period, count uint64) ([]*types.LightClientUpdate, error)
	FinalityUpdate(ctx context.Context) (*types.LightClientFinalityUpdate, error)
	FinalityCheckpoints(ctx context.Context) (*beacon.FinalityCheckpoints, error)
	BlockHeader(ctx context.Context, slot types.Slot) (*types.BeaconBlockHeader, error)
}

// Clock is the trusted source of time.
type Clock func() time.Time

type Option func(*LightClient)

func WithClock(clock Clock) Option {
	return func(lc *LightClient) { lc.clock = clock }
}

func WithTrustLevel(trustLevel core.Fraction) Option {
	return func(lc *LightClient) { lc.trustLevel = trustLevel }
}

// WithUpdatesPerRequest sets how many periods of updates are requested at
// once during catch-up.
func WithUpdatesPerRequest(count uint64) Option {
	return func(lc *LightClient) { lc.updatesPerRequest = count }
}

// LightClient follows one network. It is not safe for concurrent use; it is
// meant to be the only writer of its table.
type LightClient struct {
	cfg               *config.Config
	client            BeaconClient
	db                db.KeyValueStore
	clock             Clock
	trustLevel        core.Fraction
	updatesPerRequest uint64

	prove func(spec config.ForkSpec, header *types.ExecutionPayloadHeader) (*types.ExecutionUpdate, error)
}

// New returns a light client for network that keeps its state in the
// network's table of database.
func New(cfg *config.Config, network string, client BeaconClient, database db.KeyValueStore, opts ...Option) *LightClient {
	lc := &LightClient{
		cfg:               cfg,
		client:            client,
		db:                db.LightClientTable(database, network),
		clock:             time.Now,
		trustLevel:        core.DefaultTrustLevel,
		updatesPerRequest: defaultUpdatesPerRequest,
		prove:             types.NewExecutionUpdate,
	}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

func (lc *LightClient) chainContext(genesis *types.Genesis) (*core.ChainContext, error) {
	return core.NewChainContext(lc.cfg, genesis, lc.trustLevel, uint64(lc.clock().Unix()))
}

// validateUpdate checks the consensus part of update and, if its finalized
// header carries an execution payload, the state root and block number
// proofs built from that payload.
func (lc *LightClient) validateUpdate(cc *core.ChainContext, store *core.Store, update *types.LightClientUpdate) error {
	finalized := &update.FinalizedHeader
	if finalized.Execution == nil {
		return core.ValidateConsensusUpdate(cc, store, update)
	}
	spec, err := cc.ForkSpecAtSlot(finalized.Beacon.Slot)
	if err != nil {
		return err
	}
	execution, err := lc.prove(spec, finalized.Execution)
	if err != nil {
		return core.ErrMalformedUpdate{Reason: err.Error()}
	}
	return core.ValidateUpdates(cc, store, update, execution)
}

// Init bootstraps the store and persists it. The bootstrap block is the
// trusted root if given, else the block at untrustedSlot, else the finalized
// checkpoint of the node's head.
func (lc *LightClient) Init(ctx context.Context, trustedRoot *common.Hash, untrustedSlot *types.Slot) (*core.Store, error) {
	genesis, err := lc.client.Genesis(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch genesis")
	}
	cc, err := lc.chainContext(genesis)
	if err != nil {
		return nil, err
	}

	var root common.Hash
	switch {
	case trustedRoot != nil:
		root = *trustedRoot
	case untrustedSlot != nil:
		header, err := lc.client.BlockHeader(ctx, *untrustedSlot)
		if err != nil {
			return nil, errors.Wrapf(err, "could not fetch header at slot %d", *untrustedSlot)
		}
		root = header.Root()
		trustedRoot = &root
	default:
		checkpoints, err := lc.client.FinalityCheckpoints(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "could not fetch finality checkpoints")
		}
		root = checkpoints.Finalized.Root
	}
	bootstrap, err := lc.client.Bootstrap(ctx, root)
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch bootstrap for %v", root)
	}
	store, err := core.NewStore(cc, bootstrap, trustedRoot)
	if err != nil {
		lc.reject(err)
		return nil, errors.Wrap(err, "invalid bootstrap")
	}

	batch := lc.db.NewBatch()
	if err := db.WriteJSON(batch, genesisKey, genesis); err != nil {
		return nil, err
	}
	if err := db.WriteJSON(batch, bootstrapKey, bootstrap); err != nil {
		return nil, err
	}
	if err := db.WriteJSON(batch, stateKey, store); err != nil {
		return nil, err
	}
	if err := batch.Write(); err != nil {
		return nil, errors.Wrap(err, "could not persist bootstrap")
	}
	lc.report(cc, store)
	log.WithFields(logrus.Fields{
		"root":   root,
		"slot":   store.LatestFinalizedHeader.Slot,
		"period": store.CurrentPeriod(cc),
	}).Info("Initialized light client")
	return store, nil
}

// Genesis returns the persisted genesis.
func (lc *LightClient) Genesis() (*types.Genesis, error) {
	var genesis types.Genesis
	if err := db.ReadJSON(lc.db, genesisKey, &genesis); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return &genesis, nil
}

// Bootstrap returns the bootstrap the store was seeded from.
func (lc *LightClient) Bootstrap() (*types.LightClientBootstrap, error) {
	var bootstrap types.LightClientBootstrap
	if err := db.ReadJSON(lc.db, bootstrapKey, &bootstrap); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return &bootstrap, nil
}

// Store returns the persisted store.
func (lc *LightClient) Store() (*core.Store, error) {
	var store core.Store
	if err := db.ReadJSON(lc.db, stateKey, &store); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return &store, nil
}

func (lc *LightClient) persist(cc *core.ChainContext, store *core.Store) error {
	if err := db.WriteJSON(lc.db, stateKey, store); err != nil {
		return errors.Wrap(err, "could not persist store")
	}
	lc.report(cc, store)
	return nil
}

func (lc *LightClient) report(cc *core.ChainContext, store *core.Store) {
	finalizedSlotGauge.Set(float64(store.LatestFinalizedHeader.Slot))
	periodGauge.Set(float64(store.CurrentPeriod(cc)))
}

// reject counts a verification failure. Security relevant failures are
// logged loudly.
func (lc *LightClient) reject(err error) {
	class := core.Classify(err)
	rejectedUpdates.WithLabelValues(class.String()).Inc()
	if class == core.ClassCryptographic {
		log.WithError(err).Error("Beacon node served data that failed verification")
	}
}

// Update runs one round: it catches up on sync committee updates from the
// store's period on and then applies the latest finality update. It
// returns whether the store advanced.
func (lc *LightClient) Update(ctx context.Context) (bool, error) {
	genesis, err := lc.Genesis()
	if err != nil {
		return false, err
	}
	store, err := lc.Store()
	if err != nil {
		return false, err
	}
	cc, err := lc.chainContext(genesis)
	if err != nil {
		return false, err
	}

	// With the next committee known, the store period's own update has
	// nothing left to teach beyond what the finality update brings.
	period := store.CurrentPeriod(cc)
	if store.NextSyncCommittee != nil {
		period++
	}
	updates, err := lc.client.LightClientUpdates(ctx, period, lc.updatesPerRequest)
	if err != nil && !errors.Is(err, beacon.ErrNotFound) {
		return false, errors.Wrapf(err, "could not fetch updates from period %d", period)
	}
	next, applied, err := core.ProcessUpdatesWith(cc, store, updates, lc.validateUpdate)
	appliedUpdates.Add(float64(applied))
	if err != nil {
		lc.reject(err)
		if applied > 0 {
			if perr := lc.persist(cc, next); perr != nil {
				return true, perr
			}
		}
		return applied > 0, errors.Wrap(err, "invalid light client update")
	}
	store = next

	finality, err := lc.client.FinalityUpdate(ctx)
	switch {
	case errors.Is(err, beacon.ErrNotFound):
	case err != nil:
		return false, errors.Wrap(err, "could not fetch finality update")
	default:
		next, err := core.ProcessUpdateWith(cc, store, finality.ToUpdate(), lc.validateUpdate)
		if err != nil {
			if core.Classify(err) != core.ClassProtocolState {
				lc.reject(err)
				if applied > 0 {
					if perr := lc.persist(cc, store); perr != nil {
						return true, perr
					}
				}
				return applied > 0, errors.Wrap(err, "invalid finality update")
			}
			log.WithError(err).WithFields(logrus.Fields{
				"storeSlot":     store.LatestFinalizedHeader.Slot,
				"finalizedSlot": finality.FinalizedHeader.Beacon.Slot,
			}).Debug("Finality update does not apply to the store")
		} else if next != nil {
			store = next
			applied++
			appliedUpdates.Inc()
		}
	}

	if applied == 0 {
		return false, nil
	}
	if err := lc.persist(cc, store); err != nil {
		return true, err
	}
	fields := logrus.Fields{
		"applied": applied,
		"slot":    store.LatestFinalizedHeader.Slot,
		"period":  store.CurrentPeriod(cc),
	}
	if store.LatestExecutionPayloadHeader != nil {
		fields["blockNumber"] = store.LatestExecutionPayloadHeader.BlockNumber
	}
	log.WithFields(fields).Info("Updated light client")
	return true, nil
}

// UpdateUntilTarget runs update rounds until the store reaches target or a
// round makes no progress. It reports whether the target was reached.
func (lc *LightClient) UpdateUntilTarget(ctx context.Context, target Target) (bool, error) {
	for {
		progress, err := lc.Update(ctx)
		if err != nil {
			return false, err
		}
		status, err := lc.Status()
		if err != nil {
			return false, err
		}
		if target.Reached(status.FinalizedSlot, status.BlockNumber) {
			return true, nil
		}
		if !progress {
			log.WithFields(logrus.Fields{
				"target": target,
				"slot":   status.FinalizedSlot,
			}).Debug("No more updates available")
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}
}

// Status summarizes the persisted store.
type Status struct {
	FinalizedSlot        types.Slot
	FinalizedRoot        common.Hash
	Period               uint64
	BlockNumber          uint64
	ExecutionStateRoot   common.Hash
	HasNextSyncCommittee bool
}

func (lc *LightClient) Status() (*Status, error) {
	store, err := lc.Store()
	if err != nil {
		return nil, err
	}
	status := &Status{
		FinalizedSlot:        store.LatestFinalizedHeader.Slot,
		FinalizedRoot:        store.LatestFinalizedHeader.Root(),
		Period:               lc.cfg.SyncCommitteePeriodAtSlot(store.LatestFinalizedHeader.Slot),
		HasNextSyncCommittee: store.NextSyncCommittee != nil,
	}
	if execution := store.LatestExecutionPayloadHeader; execution != nil {
		status.BlockNumber = execution.BlockNumber
		status.ExecutionStateRoot = execution.StateRoot
	}
	return status, nil
}
