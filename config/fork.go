package config

import (
	"fmt"
	"sort"

	eth2types "github.com/prysmaticlabs/eth2-types"
)

// ForkName identifies a consensus upgrade that changed light client proofs.
type ForkName string

const (
	Altair    ForkName = "altair"
	Bellatrix ForkName = "bellatrix"
	Capella   ForkName = "capella"
	Deneb     ForkName = "deneb"
	Electra   ForkName = "electra"
)

// PayloadLayout selects the field set of the execution payload header.
type PayloadLayout uint8

const (
	NoPayload PayloadLayout = iota
	BellatrixPayload
	CapellaPayload
	DenebPayload
)

func (l PayloadLayout) String() string {
	switch l {
	case BellatrixPayload:
		return "bellatrix"
	case CapellaPayload:
		return "capella"
	case DenebPayload:
		return "deneb"
	}
	return "none"
}

// ForkSpec holds the generalized indices of the proofs a light client
// verifies while a fork is active. Execution gindices are zero for forks
// without an execution payload.
type ForkSpec struct {
	FinalizedRootGindex        uint64
	CurrentSyncCommitteeGindex uint64
	NextSyncCommitteeGindex    uint64

	ExecutionPayloadGindex            uint64
	ExecutionPayloadStateRootGindex   uint64
	ExecutionPayloadBlockNumberGindex uint64
	ExecutionPayloadTreeDepth         uint64
	PayloadLayout                     PayloadLayout
}

func (s ForkSpec) extend(fn func(*ForkSpec)) ForkSpec {
	fn(&s)
	return s
}

var (
	AltairForkSpec = ForkSpec{
		FinalizedRootGindex:        105,
		CurrentSyncCommitteeGindex: 54,
		NextSyncCommitteeGindex:    55,
	}
	BellatrixForkSpec = AltairForkSpec.extend(func(s *ForkSpec) {
		s.ExecutionPayloadGindex = 25
		s.ExecutionPayloadStateRootGindex = 18
		s.ExecutionPayloadBlockNumberGindex = 22
		s.ExecutionPayloadTreeDepth = 4
		s.PayloadLayout = BellatrixPayload
	})
	CapellaForkSpec = BellatrixForkSpec.extend(func(s *ForkSpec) {
		s.PayloadLayout = CapellaPayload
	})
	// Deneb grows the payload header past 16 fields.
	DenebForkSpec = CapellaForkSpec.extend(func(s *ForkSpec) {
		s.ExecutionPayloadStateRootGindex = 34
		s.ExecutionPayloadBlockNumberGindex = 38
		s.ExecutionPayloadTreeDepth = 5
		s.PayloadLayout = DenebPayload
	})
	// Electra grows the beacon state past 32 fields.
	ElectraForkSpec = DenebForkSpec.extend(func(s *ForkSpec) {
		s.FinalizedRootGindex = 169
		s.CurrentSyncCommitteeGindex = 86
		s.NextSyncCommitteeGindex = 87
	})
)

var forkSpecs = map[ForkName]ForkSpec{
	Altair:    AltairForkSpec,
	Bellatrix: BellatrixForkSpec,
	Capella:   CapellaForkSpec,
	Deneb:     DenebForkSpec,
	Electra:   ElectraForkSpec,
}

// forkOrder is the order forks must appear in ForkParameters.
var forkOrder = []ForkName{Altair, Bellatrix, Capella, Deneb, Electra}

// Fork is a scheduled upgrade.
type Fork struct {
	Name    ForkName
	Version Version
	Epoch   eth2types.Epoch
	Spec    ForkSpec
}

// ForkParameters is the fork schedule of a network.
type ForkParameters struct {
	GenesisVersion Version
	GenesisSlot    eth2types.Slot
	Forks          []Fork
}

// ForkNotSupportedError is returned for epochs before the first light
// client capable fork.
type ForkNotSupportedError struct {
	Epoch eth2types.Epoch
}

func (e *ForkNotSupportedError) Error() string {
	return fmt.Sprintf("fork not supported at epoch %d", e.Epoch)
}

// Validate checks that forks are known, appear in upgrade order and are
// scheduled at non-decreasing epochs.
func (p *ForkParameters) Validate() error {
	if len(p.Forks) == 0 {
		return fmt.Errorf("empty fork schedule")
	}
	if len(p.Forks) > len(forkOrder) {
		return fmt.Errorf("too many forks: got %d, want at most %d", len(p.Forks), len(forkOrder))
	}
	for i, fork := range p.Forks {
		if fork.Name != forkOrder[i] {
			return fmt.Errorf("invalid fork at position %d: got %v, want %v", i, fork.Name, forkOrder[i])
		}
		if i > 0 && fork.Epoch < p.Forks[i-1].Epoch {
			return fmt.Errorf("fork %v scheduled before %v", fork.Name, p.Forks[i-1].Name)
		}
	}
	return nil
}

// forkIndex returns the index of the latest fork active at epoch, or -1.
func (p *ForkParameters) forkIndex(epoch eth2types.Epoch) int {
	return sort.Search(len(p.Forks), func(i int) bool {
		return p.Forks[i].Epoch > epoch
	}) - 1
}

// ComputeForkSpec returns the fork spec active at the given epoch.
func (p *ForkParameters) ComputeForkSpec(epoch eth2types.Epoch) (ForkSpec, error) {
	i := p.forkIndex(epoch)
	if i < 0 {
		return ForkSpec{}, &ForkNotSupportedError{Epoch: epoch}
	}
	return p.Forks[i].Spec, nil
}

// ForkVersion returns the fork version active at the given epoch.
func (p *ForkParameters) ForkVersion(epoch eth2types.Epoch) Version {
	if i := p.forkIndex(epoch); i >= 0 {
		return p.Forks[i].Version
	}
	return p.GenesisVersion
}

// IsActive reports whether the named fork is scheduled and active at epoch.
func (p *ForkParameters) IsActive(name ForkName, epoch eth2types.Epoch) bool {
	for _, fork := range p.Forks {
		if fork.Name == name {
			return epoch >= fork.Epoch
		}
	}
	return false
}

// Fork returns the scheduled fork with the given name.
func (p *ForkParameters) Fork(name ForkName) (Fork, bool) {
	for _, fork := range p.Forks {
		if fork.Name == name {
			return fork, true
		}
	}
	return Fork{}, false
}
