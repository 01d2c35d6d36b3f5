package lightclient

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MariusVanDerWijden/eth2-lc/beacon"
	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/MariusVanDerWijden/eth2-lc/core"
	"github.com/MariusVanDerWijden/eth2-lc/db"
	"github.com/MariusVanDerWijden/eth2-lc/testutil"
	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	chain    *testutil.Chain
	server   *testutil.Server
	client   *beacon.Client
	db       *db.Database
	nowSlot  types.Slot
	newLight func(client BeaconClient, opts ...Option) *LightClient
}

func newTestEnv(t *testing.T, head types.Slot) *testEnv {
	chain, err := testutil.NewMinimalChain()
	require.NoError(t, err)
	server := testutil.NewServer(chain, head)
	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)
	database, err := db.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	env := &testEnv{
		chain:   chain,
		server:  server,
		client:  beacon.NewClient(httpServer.URL, nil),
		db:      database,
		nowSlot: head,
	}
	env.newLight = func(client BeaconClient, opts ...Option) *LightClient {
		clock := func() time.Time {
			return time.Unix(int64(chain.Timestamp(env.nowSlot)), 0)
		}
		return New(chain.Config, "minimal", client, database, append([]Option{WithClock(clock)}, opts...)...)
	}
	return env
}

// setHead moves the beacon node and the trusted clock forward together.
func (env *testEnv) setHead(head types.Slot) {
	env.server.SetHead(head)
	env.nowSlot = head
}

func TestInitTrustedRoot(t *testing.T) {
	env := newTestEnv(t, 100)
	lc := env.newLight(env.client)

	bootstrap, err := env.chain.Bootstrap(64)
	require.NoError(t, err)
	root := bootstrap.Header.Beacon.Root()
	store, err := lc.Init(context.Background(), &root, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Slot(64), store.LatestFinalizedHeader.Slot)
	assert.Nil(t, store.NextSyncCommittee)
	assert.Equal(t, float64(64), promtestutil.ToFloat64(finalizedSlotGauge))

	persisted, err := lc.Store()
	require.NoError(t, err)
	assert.Equal(t, store.LatestFinalizedHeader, persisted.LatestFinalizedHeader)
	assert.True(t, store.CurrentSyncCommittee.Equal(&persisted.CurrentSyncCommittee))
	genesis, err := lc.Genesis()
	require.NoError(t, err)
	assert.Equal(t, env.chain.Genesis, genesis)
	persistedBootstrap, err := lc.Bootstrap()
	require.NoError(t, err)
	assert.Equal(t, root, persistedBootstrap.Header.Beacon.Root())

	// Another network's table is untouched.
	other := New(env.chain.Config, "mainnet", env.client, env.db)
	_, err = other.Store()
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitUntrustedSlot(t *testing.T) {
	env := newTestEnv(t, 100)
	lc := env.newLight(env.client)
	slot := types.Slot(72)
	store, err := lc.Init(context.Background(), nil, &slot)
	require.NoError(t, err)
	assert.Equal(t, slot, store.LatestFinalizedHeader.Slot)
}

func TestInitFinalityCheckpoint(t *testing.T) {
	env := newTestEnv(t, 100)
	lc := env.newLight(env.client)
	store, err := lc.Init(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Slot(80), store.LatestFinalizedHeader.Slot)
}

func TestInitErrors(t *testing.T) {
	env := newTestEnv(t, 100)
	lc := env.newLight(env.client)

	_, err := lc.Init(context.Background(), &common.Hash{1}, nil)
	require.ErrorIs(t, err, beacon.ErrNotFound)

	_, err = lc.Status()
	require.ErrorIs(t, err, ErrNotInitialized)

	bootstrap, err := env.chain.Bootstrap(64)
	require.NoError(t, err)
	root := bootstrap.Header.Beacon.Root()
	cfg := *env.chain.Config
	cfg.GenesisVersion[0] ^= 0xff
	wrongNetwork := New(&cfg, "other", env.client, env.db)
	_, err = wrongNetwork.Init(context.Background(), &root, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid genesis fork version")
}

func TestUpdateBeforeInit(t *testing.T) {
	env := newTestEnv(t, 100)
	lc := env.newLight(env.client)
	_, err := lc.Update(context.Background())
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = lc.Status()
	require.ErrorIs(t, err, ErrNotInitialized)
}

func initAt64(t *testing.T, env *testEnv, lc *LightClient) {
	slot := types.Slot(64)
	_, err := lc.Init(context.Background(), nil, &slot)
	require.NoError(t, err)
}

func TestUpdateCatchUp(t *testing.T) {
	env := newTestEnv(t, 100)
	lc := env.newLight(env.client)
	initAt64(t, env, lc)

	applied := promtestutil.ToFloat64(appliedUpdates)
	env.setHead(400)
	progress, err := lc.Update(context.Background())
	require.NoError(t, err)
	assert.True(t, progress)
	// Periods 1 to 5 and the finality update.
	assert.Equal(t, applied+6, promtestutil.ToFloat64(appliedUpdates))

	status, err := lc.Status()
	require.NoError(t, err)
	assert.Equal(t, types.Slot(376), status.FinalizedSlot)
	assert.Equal(t, uint64(5), status.Period)
	assert.Equal(t, uint64(1376), status.BlockNumber)
	assert.True(t, status.HasNextSyncCommittee)
	assert.Equal(t, float64(376), promtestutil.ToFloat64(finalizedSlotGauge))

	// A fresh client picks up the persisted store.
	reopened := env.newLight(env.client)
	store, err := reopened.Store()
	require.NoError(t, err)
	assert.Equal(t, types.Slot(376), store.LatestFinalizedHeader.Slot)

	progress, err = reopened.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, progress)
}

func TestUpdateUntilTarget(t *testing.T) {
	env := newTestEnv(t, 100)
	lc := env.newLight(env.client, WithUpdatesPerRequest(1))
	initAt64(t, env, lc)
	env.setHead(400)
	const path = "/eth/v1/beacon/light_client/updates"

	target, err := ParseTarget(env.chain.Config, "3period")
	require.NoError(t, err)
	reached, err := lc.UpdateUntilTarget(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, reached)
	status, err := lc.Status()
	require.NoError(t, err)
	assert.Equal(t, types.Slot(231), status.FinalizedSlot)
	assert.Equal(t, 3, env.server.Requests(path))

	target, err = ParseTarget(env.chain.Config, "1300bn")
	require.NoError(t, err)
	reached, err = lc.UpdateUntilTarget(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, reached)
	// Period 5 brings the next committee, which lets the finality update
	// through in the same round.
	status, err = lc.Status()
	require.NoError(t, err)
	assert.Equal(t, types.Slot(376), status.FinalizedSlot)
	assert.Equal(t, 5, env.server.Requests(path))

	reached, err = lc.UpdateUntilTarget(context.Background(), Target{Kind: TargetInfinity})
	require.NoError(t, err)
	assert.False(t, reached)
	status, err = lc.Status()
	require.NoError(t, err)
	assert.Equal(t, types.Slot(376), status.FinalizedSlot)

	// Nothing new, a single round.
	before := env.server.Requests(path)
	reached, err = lc.UpdateUntilTarget(context.Background(), Target{Kind: TargetNone})
	require.NoError(t, err)
	assert.True(t, reached)
	assert.Equal(t, before+1, env.server.Requests(path))
}

// tamperingClient flips a participation bit of every update it relays.
type tamperingClient struct {
	*beacon.Client
}

func (c tamperingClient) LightClientUpdates(ctx context.Context, period, count uint64) ([]*types.LightClientUpdate, error) {
	updates, err := c.Client.LightClientUpdates(ctx, period, count)
	for _, update := range updates {
		update.SyncAggregate.SyncCommitteeBits[0] ^= 1
	}
	return updates, err
}

func TestUpdateRejectsForgedUpdate(t *testing.T) {
	env := newTestEnv(t, 100)
	initAt64(t, env, env.newLight(env.client))
	env.setHead(400)

	rejected := rejectedUpdates.WithLabelValues(core.ClassCryptographic.String())
	before := promtestutil.ToFloat64(rejected)
	lc := env.newLight(tamperingClient{env.client})
	progress, err := lc.Update(context.Background())
	require.ErrorIs(t, err, core.ErrInvalidBLSSignatures)
	assert.False(t, progress)
	assert.Equal(t, before+1, promtestutil.ToFloat64(rejected))

	status, err := lc.Status()
	require.NoError(t, err)
	assert.Equal(t, types.Slot(64), status.FinalizedSlot)
}

// branchTamperingClient corrupts the execution branch of every finalized
// header it relays.
type branchTamperingClient struct {
	*beacon.Client
}

func (c branchTamperingClient) LightClientUpdates(ctx context.Context, period, count uint64) ([]*types.LightClientUpdate, error) {
	updates, err := c.Client.LightClientUpdates(ctx, period, count)
	for _, update := range updates {
		if len(update.FinalizedHeader.ExecutionBranch) > 0 {
			update.FinalizedHeader.ExecutionBranch[0][0] ^= 1
		}
	}
	return updates, err
}

func TestUpdateRejectsTamperedExecutionProofs(t *testing.T) {
	tests := []struct {
		name  string
		setup func(env *testEnv) *LightClient
		proof core.Proof
	}{
		{
			name: "finalized header execution branch",
			setup: func(env *testEnv) *LightClient {
				return env.newLight(branchTamperingClient{env.client})
			},
			proof: core.ExecutionPayloadProof,
		},
		{
			name: "execution state root branch",
			setup: func(env *testEnv) *LightClient {
				lc := env.newLight(env.client)
				lc.prove = func(spec config.ForkSpec, header *types.ExecutionPayloadHeader) (*types.ExecutionUpdate, error) {
					update, err := types.NewExecutionUpdate(spec, header)
					if err != nil {
						return nil, err
					}
					update.StateRootBranch[0][0] ^= 1
					return update, nil
				}
				return lc
			},
			proof: core.ExecutionStateRootProof,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 100)
			initAt64(t, env, env.newLight(env.client))
			env.setHead(400)

			rejected := rejectedUpdates.WithLabelValues(core.ClassCryptographic.String())
			before := promtestutil.ToFloat64(rejected)
			lc := tt.setup(env)
			progress, err := lc.Update(context.Background())
			var branchErr core.ErrInvalidMerkleBranch
			require.ErrorAs(t, err, &branchErr)
			assert.Equal(t, tt.proof, branchErr.Proof)
			assert.False(t, progress)
			assert.Equal(t, before+1, promtestutil.ToFloat64(rejected))

			status, err := lc.Status()
			require.NoError(t, err)
			assert.Equal(t, types.Slot(64), status.FinalizedSlot)
		})
	}
}

func TestUpdateContextCancel(t *testing.T) {
	env := newTestEnv(t, 100)
	lc := env.newLight(env.client)
	initAt64(t, env, lc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := lc.UpdateUntilTarget(ctx, Target{Kind: TargetInfinity})
	require.ErrorIs(t, err, context.Canceled)
}
