package config

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	eth2types "github.com/prysmaticlabs/eth2-types"
	"gopkg.in/yaml.v3"
)

//go:embed networks/*.yaml
var networkFS embed.FS

// Networks lists the bundled network configurations.
func Networks() []string {
	entries, err := networkFS.ReadDir("networks")
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// LoadNetwork parses the bundled configuration of a named network.
func LoadNetwork(name string) (*Config, error) {
	data, err := networkFS.ReadFile("networks/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown network %q, want one of %v", name, Networks())
	}
	return ParseConfig(data)
}

type forkEntry struct {
	Version *Version
	Epoch   *uint64
}

// specConfig mirrors the consensus-specs config file keys we care about.
// Preset values may be overridden to build synthetic chains.
type specConfig struct {
	PresetBase     string  `yaml:"PRESET_BASE"`
	ConfigName     string  `yaml:"CONFIG_NAME"`
	MinGenesisTime uint64  `yaml:"MIN_GENESIS_TIME"`
	SecondsPerSlot uint64  `yaml:"SECONDS_PER_SLOT"`
	GenesisVersion Version `yaml:"GENESIS_FORK_VERSION"`
	GenesisSlot    uint64  `yaml:"GENESIS_SLOT"`

	AltairVersion    *Version `yaml:"ALTAIR_FORK_VERSION"`
	AltairEpoch      *uint64  `yaml:"ALTAIR_FORK_EPOCH"`
	BellatrixVersion *Version `yaml:"BELLATRIX_FORK_VERSION"`
	BellatrixEpoch   *uint64  `yaml:"BELLATRIX_FORK_EPOCH"`
	CapellaVersion   *Version `yaml:"CAPELLA_FORK_VERSION"`
	CapellaEpoch     *uint64  `yaml:"CAPELLA_FORK_EPOCH"`
	DenebVersion     *Version `yaml:"DENEB_FORK_VERSION"`
	DenebEpoch       *uint64  `yaml:"DENEB_FORK_EPOCH"`
	ElectraVersion   *Version `yaml:"ELECTRA_FORK_VERSION"`
	ElectraEpoch     *uint64  `yaml:"ELECTRA_FORK_EPOCH"`

	SlotsPerEpoch                *uint64 `yaml:"SLOTS_PER_EPOCH"`
	EpochsPerSyncCommitteePeriod *uint64 `yaml:"EPOCHS_PER_SYNC_COMMITTEE_PERIOD"`
	SyncCommitteeSize            *uint64 `yaml:"SYNC_COMMITTEE_SIZE"`
	MinSyncCommitteeParticipants *uint64 `yaml:"MIN_SYNC_COMMITTEE_PARTICIPANTS"`
}

func (s *specConfig) forks() map[ForkName]forkEntry {
	return map[ForkName]forkEntry{
		Altair:    {s.AltairVersion, s.AltairEpoch},
		Bellatrix: {s.BellatrixVersion, s.BellatrixEpoch},
		Capella:   {s.CapellaVersion, s.CapellaEpoch},
		Deneb:     {s.DenebVersion, s.DenebEpoch},
		Electra:   {s.ElectraVersion, s.ElectraEpoch},
	}
}

// ParseConfig builds a Config from a consensus-specs style YAML document.
// Forks are read in upgrade order up to the first one that is not listed.
func ParseConfig(data []byte) (*Config, error) {
	var raw specConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	preset, ok := presets[raw.PresetBase]
	if !ok {
		return nil, fmt.Errorf("unknown preset base %q", raw.PresetBase)
	}
	override := func(dst *uint64, src *uint64) {
		if src != nil {
			*dst = *src
		}
	}
	override(&preset.SlotsPerEpoch, raw.SlotsPerEpoch)
	override(&preset.EpochsPerSyncCommitteePeriod, raw.EpochsPerSyncCommitteePeriod)
	override(&preset.SyncCommitteeSize, raw.SyncCommitteeSize)
	override(&preset.MinSyncCommitteeParticipants, raw.MinSyncCommitteeParticipants)

	cfg := &Config{
		Preset:         preset,
		ConfigName:     raw.ConfigName,
		MinGenesisTime: raw.MinGenesisTime,
		SecondsPerSlot: raw.SecondsPerSlot,
		ForkParameters: ForkParameters{
			GenesisVersion: raw.GenesisVersion,
			GenesisSlot:    eth2types.Slot(raw.GenesisSlot),
		},
	}
	entries := raw.forks()
	for _, name := range forkOrder {
		entry := entries[name]
		if entry.Version == nil || entry.Epoch == nil {
			break
		}
		cfg.Forks = append(cfg.Forks, Fork{
			Name:    name,
			Version: *entry.Version,
			Epoch:   eth2types.Epoch(*entry.Epoch),
			Spec:    forkSpecs[name],
		})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
