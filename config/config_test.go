package config

import (
	"testing"

	eth2types "github.com/prysmaticlabs/eth2-types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNetworks(t *testing.T) {
	for _, name := range []string{"mainnet", "sepolia", "holesky", "minimal"} {
		cfg, err := LoadNetwork(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, cfg.ConfigName)
		assert.Len(t, cfg.Forks, 5, name)
	}
	assert.Equal(t, []string{"holesky", "mainnet", "minimal", "sepolia"}, Networks())

	_, err := LoadNetwork("goerli")
	require.Error(t, err)
}

func TestMainnetSchedule(t *testing.T) {
	cfg, err := LoadNetwork("mainnet")
	require.NoError(t, err)
	assert.Equal(t, MainnetPreset, cfg.Preset)
	assert.Equal(t, Version{0, 0, 0, 0}, cfg.GenesisVersion)
	assert.Equal(t, uint64(12), cfg.SecondsPerSlot)

	tests := []struct {
		epoch   eth2types.Epoch
		version Version
		spec    ForkSpec
		err     bool
	}{
		{epoch: 0, version: Version{0, 0, 0, 0}, err: true},
		{epoch: 74239, version: Version{0, 0, 0, 0}, err: true},
		{epoch: 74240, version: Version{1, 0, 0, 0}, spec: AltairForkSpec},
		{epoch: 144895, version: Version{1, 0, 0, 0}, spec: AltairForkSpec},
		{epoch: 144896, version: Version{2, 0, 0, 0}, spec: BellatrixForkSpec},
		{epoch: 194048, version: Version{3, 0, 0, 0}, spec: CapellaForkSpec},
		{epoch: 269568, version: Version{4, 0, 0, 0}, spec: DenebForkSpec},
		{epoch: 364031, version: Version{4, 0, 0, 0}, spec: DenebForkSpec},
		{epoch: 364032, version: Version{5, 0, 0, 0}, spec: ElectraForkSpec},
		{epoch: FAR_FUTURE_EPOCH, version: Version{5, 0, 0, 0}, spec: ElectraForkSpec},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.version, cfg.ForkVersion(tt.epoch), "epoch %d", tt.epoch)
		spec, err := cfg.ComputeForkSpec(tt.epoch)
		if tt.err {
			var notSupported *ForkNotSupportedError
			require.ErrorAs(t, err, &notSupported)
			assert.Equal(t, tt.epoch, notSupported.Epoch)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.spec, spec, "epoch %d", tt.epoch)
	}
	assert.True(t, cfg.IsActive(Bellatrix, 144896))
	assert.False(t, cfg.IsActive(Bellatrix, 144895))
}

func TestForkSpecsExtend(t *testing.T) {
	assert.Zero(t, AltairForkSpec.ExecutionPayloadGindex)
	assert.Equal(t, uint64(25), BellatrixForkSpec.ExecutionPayloadGindex)
	assert.Equal(t, AltairForkSpec.FinalizedRootGindex, BellatrixForkSpec.FinalizedRootGindex)
	assert.Equal(t, BellatrixForkSpec.ExecutionPayloadStateRootGindex, CapellaForkSpec.ExecutionPayloadStateRootGindex)
	assert.Equal(t, uint64(34), DenebForkSpec.ExecutionPayloadStateRootGindex)
	assert.Equal(t, DenebForkSpec.ExecutionPayloadBlockNumberGindex, ElectraForkSpec.ExecutionPayloadBlockNumberGindex)
	assert.Equal(t, uint64(169), ElectraForkSpec.FinalizedRootGindex)
}

func TestParseConfigOverrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
PRESET_BASE: minimal
CONFIG_NAME: synthetic
SECONDS_PER_SLOT: 6
GENESIS_FORK_VERSION: 0x00000001
SYNC_COMMITTEE_SIZE: 64
ALTAIR_FORK_VERSION: 0x01000001
ALTAIR_FORK_EPOCH: 0
BELLATRIX_FORK_VERSION: 0x02000001
BELLATRIX_FORK_EPOCH: 2
CAPELLA_FORK_VERSION: 0x03000001
CAPELLA_FORK_EPOCH: 18446744073709551615
`))
	require.NoError(t, err)
	assert.Equal(t, uint64(64), cfg.SyncCommitteeSize)
	assert.Equal(t, uint64(8), cfg.SlotsPerEpoch)
	require.Len(t, cfg.Forks, 3)
	assert.Equal(t, FAR_FUTURE_EPOCH, cfg.Forks[2].Epoch)

	spec, err := cfg.ForkSpecAtSlot(15)
	require.NoError(t, err)
	assert.Equal(t, AltairForkSpec, spec)
	spec, err = cfg.ForkSpecAtSlot(16)
	require.NoError(t, err)
	assert.Equal(t, BellatrixForkSpec, spec)
}

func TestParseConfigErrors(t *testing.T) {
	for name, input := range map[string]string{
		"unknown preset": "PRESET_BASE: gnosis\nGENESIS_FORK_VERSION: 0x00000000\nALTAIR_FORK_VERSION: 0x01000000\nALTAIR_FORK_EPOCH: 0\n",
		"no forks":       "PRESET_BASE: mainnet\nGENESIS_FORK_VERSION: 0x00000000\n",
		"bad version":    "PRESET_BASE: mainnet\nGENESIS_FORK_VERSION: 0x0000\n",
		"unordered":      "PRESET_BASE: mainnet\nGENESIS_FORK_VERSION: 0x00000000\nALTAIR_FORK_VERSION: 0x01000000\nALTAIR_FORK_EPOCH: 10\nBELLATRIX_FORK_VERSION: 0x02000000\nBELLATRIX_FORK_EPOCH: 5\n",
		"odd committee":  "PRESET_BASE: mainnet\nSYNC_COMMITTEE_SIZE: 7\nGENESIS_FORK_VERSION: 0x00000000\nALTAIR_FORK_VERSION: 0x01000000\nALTAIR_FORK_EPOCH: 0\n",
		"16 committee":   "PRESET_BASE: mainnet\nSYNC_COMMITTEE_SIZE: 16\nGENESIS_FORK_VERSION: 0x00000000\nALTAIR_FORK_VERSION: 0x01000000\nALTAIR_FORK_EPOCH: 0\n",
		"128 committee":  "PRESET_BASE: mainnet\nSYNC_COMMITTEE_SIZE: 128\nGENESIS_FORK_VERSION: 0x00000000\nALTAIR_FORK_VERSION: 0x01000000\nALTAIR_FORK_EPOCH: 0\n",
	} {
		_, err := ParseConfig([]byte(input))
		assert.Error(t, err, name)
	}
}

func TestSlotArithmetic(t *testing.T) {
	cfg, err := LoadNetwork("minimal")
	require.NoError(t, err)

	assert.Equal(t, uint64(64), cfg.SlotsPerPeriod())
	assert.Equal(t, eth2types.Epoch(8), cfg.EpochAtSlot(64))
	assert.Equal(t, uint64(0), cfg.SyncCommitteePeriodAtSlot(63))
	assert.Equal(t, uint64(1), cfg.SyncCommitteePeriodAtSlot(64))
	assert.Equal(t, uint64(1), cfg.SyncCommitteePeriodAtSlot(127))
	assert.Equal(t, eth2types.Slot(127), cfg.LastSlotAtPeriod(1))
	assert.Equal(t, eth2types.Slot(16), cfg.StartSlotAtEpoch(2))

	assert.Equal(t, eth2types.Slot(0), cfg.SlotAtTimestamp(1000, 999))
	assert.Equal(t, eth2types.Slot(0), cfg.SlotAtTimestamp(1000, 1005))
	assert.Equal(t, eth2types.Slot(2), cfg.SlotAtTimestamp(1000, 1012))
}

func TestValidateSyncCommitteeSize(t *testing.T) {
	cfg, err := LoadNetwork("mainnet")
	require.NoError(t, err)
	for size, ok := range map[uint64]bool{0: false, 8: false, 24: false, 32: true, 64: true, 256: false, 512: true, 1024: false} {
		c := *cfg
		c.SyncCommitteeSize = size
		if ok {
			assert.NoError(t, c.Validate(), "size %d", size)
		} else {
			assert.Error(t, c.Validate(), "size %d", size)
		}
	}
}
