package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	eth2types "github.com/prysmaticlabs/eth2-types"
	"gopkg.in/yaml.v3"
)

// Version is a 4 byte fork version.
type Version [4]byte

func (v Version) String() string {
	return hexutil.Encode(v[:])
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return hexutil.Bytes(v[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Version", input, v[:])
}

// UnmarshalYAML accepts versions written as plain 0x prefixed scalars, which
// yaml would otherwise resolve to integers.
func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	b, err := hexutil.Decode(node.Value)
	if err != nil {
		return fmt.Errorf("invalid fork version %q: %v", node.Value, err)
	}
	if len(b) != len(v) {
		return fmt.Errorf("invalid fork version length: got %d, want %d", len(b), len(v))
	}
	copy(v[:], b)
	return nil
}

// Preset holds the constants that are fixed per consensus preset.
type Preset struct {
	Name                         string
	SlotsPerEpoch                uint64
	EpochsPerSyncCommitteePeriod uint64
	SyncCommitteeSize            uint64
	MinSyncCommitteeParticipants uint64
}

var (
	MainnetPreset = Preset{
		Name:                         "mainnet",
		SlotsPerEpoch:                32,
		EpochsPerSyncCommitteePeriod: 256,
		SyncCommitteeSize:            512,
		MinSyncCommitteeParticipants: 1,
	}
	MinimalPreset = Preset{
		Name:                         "minimal",
		SlotsPerEpoch:                8,
		EpochsPerSyncCommitteePeriod: 8,
		SyncCommitteeSize:            32,
		MinSyncCommitteeParticipants: 1,
	}
)

var presets = map[string]Preset{
	MainnetPreset.Name: MainnetPreset,
	MinimalPreset.Name: MinimalPreset,
}

// Config is the chain configuration a light client verifies against.
type Config struct {
	Preset
	ForkParameters

	ConfigName     string
	MinGenesisTime uint64
	SecondsPerSlot uint64
}

func (c *Config) SlotsPerPeriod() uint64 {
	return c.SlotsPerEpoch * c.EpochsPerSyncCommitteePeriod
}

func (c *Config) EpochAtSlot(slot eth2types.Slot) eth2types.Epoch {
	return eth2types.Epoch(uint64(slot) / c.SlotsPerEpoch)
}

func (c *Config) StartSlotAtEpoch(epoch eth2types.Epoch) eth2types.Slot {
	return eth2types.Slot(uint64(epoch) * c.SlotsPerEpoch)
}

func (c *Config) SyncCommitteePeriodAtEpoch(epoch eth2types.Epoch) uint64 {
	return uint64(epoch) / c.EpochsPerSyncCommitteePeriod
}

func (c *Config) SyncCommitteePeriodAtSlot(slot eth2types.Slot) uint64 {
	return c.SyncCommitteePeriodAtEpoch(c.EpochAtSlot(slot))
}

// LastSlotAtPeriod returns the last slot of the given sync committee period.
func (c *Config) LastSlotAtPeriod(period uint64) eth2types.Slot {
	return eth2types.Slot((period+1)*c.SlotsPerPeriod() - 1)
}

// SlotAtTimestamp converts a unix timestamp into a slot. Timestamps before
// genesis map to the genesis slot.
func (c *Config) SlotAtTimestamp(genesisTime, timestamp uint64) eth2types.Slot {
	if timestamp < genesisTime || c.SecondsPerSlot == 0 {
		return c.GenesisSlot
	}
	return c.GenesisSlot + eth2types.Slot((timestamp-genesisTime)/c.SecondsPerSlot)
}

// ForkSpecAtSlot is ComputeForkSpec for the epoch containing slot.
func (c *Config) ForkSpecAtSlot(slot eth2types.Slot) (ForkSpec, error) {
	return c.ComputeForkSpec(c.EpochAtSlot(slot))
}

// SyncCommitteeSizes are the committee sizes participation bits can be
// decoded for.
var SyncCommitteeSizes = []uint64{32, 64, 512}

func supportedSyncCommitteeSize(size uint64) bool {
	for _, supported := range SyncCommitteeSizes {
		if size == supported {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.SlotsPerEpoch == 0 || c.EpochsPerSyncCommitteePeriod == 0 {
		return fmt.Errorf("invalid preset %q: zero slots per epoch or epochs per period", c.Preset.Name)
	}
	if !supportedSyncCommitteeSize(c.SyncCommitteeSize) {
		return fmt.Errorf("unsupported sync committee size %d, want one of %v", c.SyncCommitteeSize, SyncCommitteeSizes)
	}
	return c.ForkParameters.Validate()
}
