package beacon_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MariusVanDerWijden/eth2-lc/beacon"
	"github.com/MariusVanDerWijden/eth2-lc/testutil"
	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, head types.Slot) (*beacon.Client, *testutil.Chain, *testutil.Server) {
	chain, err := testutil.NewMinimalChain()
	require.NoError(t, err)
	server := testutil.NewServer(chain, head)
	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)
	return beacon.NewClient(httpServer.URL+"/", map[string]string{"X-Test": "1"}), chain, server
}

func TestGenesis(t *testing.T) {
	client, chain, _ := newTestClient(t, 0)
	genesis, err := client.Genesis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chain.Genesis, genesis)
}

func TestBootstrap(t *testing.T) {
	client, chain, _ := newTestClient(t, 100)
	want, err := chain.Bootstrap(64)
	require.NoError(t, err)

	got, err := client.Bootstrap(context.Background(), want.Header.Beacon.Root())
	require.NoError(t, err)
	assert.Equal(t, want.Header.Beacon, got.Header.Beacon)
	assert.Equal(t, want.CurrentSyncCommitteeBranch, got.CurrentSyncCommitteeBranch)
	assert.True(t, want.CurrentSyncCommittee.Equal(&got.CurrentSyncCommittee))
	require.NotNil(t, got.Header.Execution)
	assert.Equal(t, want.Header.Execution.BaseFeePerGas, got.Header.Execution.BaseFeePerGas)

	_, err = client.Bootstrap(context.Background(), common.Hash{1})
	require.ErrorIs(t, err, beacon.ErrNotFound)
	var statusErr *beacon.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "LC bootstrap unavailable", statusErr.Message)
}

func TestLightClientUpdates(t *testing.T) {
	client, chain, server := newTestClient(t, 400)
	updates, err := client.LightClientUpdates(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, updates, 3)
	for i, update := range updates {
		want, err := chain.PeriodUpdate(uint64(i) + 1)
		require.NoError(t, err)
		assert.Equal(t, want.AttestedHeader.Beacon, update.AttestedHeader.Beacon)
		assert.Equal(t, want.SyncAggregate, update.SyncAggregate)
		assert.True(t, want.NextSyncCommittee.Equal(update.NextSyncCommittee))
	}

	// Periods the node has not seen yet are left out.
	updates, err = client.LightClientUpdates(context.Background(), 5, 4)
	require.NoError(t, err)
	assert.Len(t, updates, 1)

	server.SetMaxUpdates(1)
	updates, err = client.LightClientUpdates(context.Background(), 1, 4)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, 1+1+3, server.Requests("/eth/v1/beacon/light_client/updates"))
}

func TestLightClientUpdatesFailure(t *testing.T) {
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer httpServer.Close()
	client := beacon.NewClient(httpServer.URL, nil)

	_, err := client.LightClientUpdates(context.Background(), 0, 8)
	var statusErr *beacon.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.False(t, errors.Is(err, beacon.ErrNotFound))
}

func TestNormalizeEmptyCommittee(t *testing.T) {
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"version":"deneb","data":{
			"attested_header":{"beacon":{"slot":"10","proposer_index":"1","parent_root":"0x0000000000000000000000000000000000000000000000000000000000000001","state_root":"0x0000000000000000000000000000000000000000000000000000000000000002","body_root":"0x0000000000000000000000000000000000000000000000000000000000000003"}},
			"next_sync_committee":{"pubkeys":[],"aggregate_pubkey":"0x000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"},
			"next_sync_committee_branch":["0x0000000000000000000000000000000000000000000000000000000000000000"],
			"finalized_header":{"beacon":{"slot":"0","proposer_index":"0","parent_root":"0x0000000000000000000000000000000000000000000000000000000000000000","state_root":"0x0000000000000000000000000000000000000000000000000000000000000000","body_root":"0x0000000000000000000000000000000000000000000000000000000000000000"}},
			"finality_branch":[],
			"sync_aggregate":{"sync_committee_bits":"0x00000000","sync_committee_signature":"0x000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"},
			"signature_slot":"11"}}]`))
	}))
	defer httpServer.Close()
	client := beacon.NewClient(httpServer.URL, nil)

	updates, err := client.LightClientUpdates(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Nil(t, updates[0].NextSyncCommittee)
	assert.Nil(t, updates[0].NextSyncCommitteeBranch)
	assert.Equal(t, types.Slot(11), updates[0].SignatureSlot)
}

func TestFinalityUpdate(t *testing.T) {
	client, _, _ := newTestClient(t, 100)
	update, err := client.FinalityUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Slot(100), update.SignatureSlot)
	assert.Equal(t, types.Slot(99), update.AttestedHeader.Beacon.Slot)
	assert.Equal(t, types.Slot(80), update.FinalizedHeader.Beacon.Slot)
	assert.Nil(t, update.ToUpdate().NextSyncCommittee)
}

func TestFinalityCheckpoints(t *testing.T) {
	client, chain, _ := newTestClient(t, 100)
	checkpoints, err := client.FinalityCheckpoints(context.Background())
	require.NoError(t, err)
	header, _, err := chain.Header(80, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Epoch(10), checkpoints.Finalized.Epoch)
	assert.Equal(t, header.Beacon.Root(), checkpoints.Finalized.Root)
}

func TestBlockHeader(t *testing.T) {
	client, chain, _ := newTestClient(t, 100)
	header, err := client.BlockHeader(context.Background(), 72)
	require.NoError(t, err)
	want, _, err := chain.Header(72, nil)
	require.NoError(t, err)
	assert.Equal(t, want.Beacon, *header)

	_, err = client.BlockHeader(context.Background(), 101)
	require.ErrorIs(t, err, beacon.ErrNotFound)
}

func TestBlockHeaderRootMismatch(t *testing.T) {
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"root":"0x0000000000000000000000000000000000000000000000000000000000000001","canonical":true,"header":{"message":{"slot":"1","proposer_index":"0","parent_root":"0x0000000000000000000000000000000000000000000000000000000000000000","state_root":"0x0000000000000000000000000000000000000000000000000000000000000000","body_root":"0x0000000000000000000000000000000000000000000000000000000000000000"}}}}`))
	}))
	defer httpServer.Close()

	_, err := beacon.NewClient(httpServer.URL, nil).BlockHeader(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid beacon header root")
}

func TestContextCancel(t *testing.T) {
	client, _, _ := newTestClient(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.LightClientUpdates(ctx, 0, 8)
	require.ErrorIs(t, err, context.Canceled)
}
