// Package testutil builds synthetic beacon chains whose headers, state
// proofs and sync committee signatures verify like real ones.
package testutil

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/MariusVanDerWijden/eth2-lc/merkle"
	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prysmaticlabs/prysm/shared/bls"
)

// Committee is a sync committee together with its secret keys.
type Committee struct {
	Keys          []bls.SecretKey
	SyncCommittee *types.SyncCommittee
}

// NewCommittee derives size deterministic keys starting at seed.
func NewCommittee(size, seed uint64) (*Committee, error) {
	var (
		keys      = make([]bls.SecretKey, size)
		committee = &types.SyncCommittee{Pubkeys: make([]types.BLSPubkey, size)}
		aggregate bls.PublicKey
	)
	for i := range keys {
		var raw [32]byte
		binary.BigEndian.PutUint64(raw[24:], seed+uint64(i)+1)
		key, err := bls.SecretKeyFromBytes(raw[:])
		if err != nil {
			return nil, err
		}
		keys[i] = key
		pub := key.PublicKey()
		copy(committee.Pubkeys[i][:], pub.Marshal())
		if aggregate == nil {
			aggregate = pub.Copy()
		} else {
			aggregate = aggregate.Aggregate(pub)
		}
	}
	if aggregate != nil {
		copy(committee.AggregatePubkey[:], aggregate.Marshal())
	}
	return &Committee{Keys: keys, SyncCommittee: committee}, nil
}

// Sign returns a sync aggregate over root by the first participants members.
func (c *Committee) Sign(root common.Hash, participants int) types.SyncAggregate {
	var (
		bits = make([]byte, (len(c.Keys)+7)/8)
		sigs = make([]bls.Signature, 0, participants)
	)
	for i := 0; i < participants && i < len(c.Keys); i++ {
		bits[i/8] |= 1 << (uint(i) % 8)
		sigs = append(sigs, c.Keys[i].Sign(root[:]))
	}
	aggregate := types.SyncAggregate{SyncCommitteeBits: bits}
	if len(sigs) > 0 {
		copy(aggregate.SyncCommitteeSignature[:], bls.AggregateSignatures(sigs).Marshal())
	}
	return aggregate
}

// StateProofs are the branches of a synthetic beacon state.
type StateProofs struct {
	FinalityBranch             []common.Hash
	CurrentSyncCommitteeBranch []common.Hash
	NextSyncCommitteeBranch    []common.Hash
}

// Chain is a deterministic synthetic chain. Every period has its own
// committee and every slot its own header.
type Chain struct {
	Config  *config.Config
	Genesis *types.Genesis

	mu         sync.Mutex
	committees map[uint64]*Committee
}

func NewChain(cfg *config.Config) *Chain {
	return &Chain{
		Config: cfg,
		Genesis: &types.Genesis{
			GenesisTime:           cfg.MinGenesisTime,
			GenesisValidatorsRoot: merkle.Hash([]byte("genesis validators")),
			GenesisForkVersion:    cfg.GenesisVersion,
		},
		committees: make(map[uint64]*Committee),
	}
}

// NewMinimalChain returns a chain on the minimal network.
func NewMinimalChain() (*Chain, error) {
	cfg, err := config.LoadNetwork("minimal")
	if err != nil {
		return nil, err
	}
	return NewChain(cfg), nil
}

// Committee returns the sync committee of period.
func (c *Chain) Committee(period uint64) (*Committee, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if committee, ok := c.committees[period]; ok {
		return committee, nil
	}
	size := c.Config.SyncCommitteeSize
	committee, err := NewCommittee(size, period*size)
	if err != nil {
		return nil, err
	}
	c.committees[period] = committee
	return committee, nil
}

// SetCommittee replaces the committee of period, e.g. to fork the chain.
func (c *Chain) SetCommittee(period uint64, committee *Committee) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committees[period] = committee
}

// Timestamp returns the start time of slot.
func (c *Chain) Timestamp(slot types.Slot) uint64 {
	return c.Genesis.GenesisTime + uint64(slot)*c.Config.SecondsPerSlot
}

func slotChunk(tag string, slot types.Slot) common.Hash {
	return merkle.Hash([]byte(tag), types.Uint64Leaf(uint64(slot)).Bytes())
}

// ExecutionHeader returns the execution payload header of the block at slot.
func (c *Chain) ExecutionHeader(slot types.Slot) *types.ExecutionPayloadHeader {
	return &types.ExecutionPayloadHeader{
		ParentHash:       slotChunk("parent hash", slot),
		StateRoot:        slotChunk("execution state", slot),
		ReceiptsRoot:     slotChunk("receipts", slot),
		LogsBloom:        make([]byte, config.BYTES_PER_LOGS_BLOOM),
		PrevRandao:       slotChunk("randao", slot),
		BlockNumber:      uint64(slot) + 1000,
		GasLimit:         30_000_000,
		GasUsed:          uint64(slot) * 21000,
		Timestamp:        c.Timestamp(slot),
		ExtraData:        []byte("eth2-lc"),
		BaseFeePerGas:    uint256.NewInt(7),
		BlockHash:        slotChunk("block hash", slot),
		TransactionsRoot: slotChunk("transactions", slot),
		WithdrawalsRoot:  slotChunk("withdrawals", slot),
	}
}

// body returns the body root of the block at slot and, from Capella on, the
// execution payload and its branch.
func (c *Chain) body(slot types.Slot, spec config.ForkSpec) (common.Hash, *types.ExecutionPayloadHeader, []common.Hash, error) {
	if !c.Config.IsActive(config.Capella, c.Config.EpochAtSlot(slot)) {
		return slotChunk("body", slot), nil, nil, nil
	}
	execution := c.ExecutionHeader(slot)
	root, err := execution.HashTreeRoot(spec)
	if err != nil {
		return common.Hash{}, nil, nil, err
	}
	depth := merkle.Depth(spec.ExecutionPayloadGindex)
	leaves := make([]common.Hash, 1<<uint(depth))
	for i := range leaves {
		leaves[i] = slotChunk(fmt.Sprintf("body field %d", i), slot)
	}
	leaves[merkle.SubtreeIndex(spec.ExecutionPayloadGindex)] = root
	tree, err := types.NewTree(leaves, depth)
	if err != nil {
		return common.Hash{}, nil, nil, err
	}
	branch, err := types.Prove(tree, spec.ExecutionPayloadGindex)
	if err != nil {
		return common.Hash{}, nil, nil, err
	}
	return types.Root(tree), execution, branch, nil
}

// Header builds the header at slot. Its state commits to finalized (the
// zero checkpoint if nil) and to the committees of the slot's period and
// the one after.
func (c *Chain) Header(slot types.Slot, finalized *types.BeaconBlockHeader) (types.LightClientHeader, *StateProofs, error) {
	spec, err := c.Config.ForkSpecAtSlot(slot)
	if err != nil {
		return types.LightClientHeader{}, nil, err
	}
	period := c.Config.SyncCommitteePeriodAtSlot(slot)
	current, err := c.Committee(period)
	if err != nil {
		return types.LightClientHeader{}, nil, err
	}
	next, err := c.Committee(period + 1)
	if err != nil {
		return types.LightClientHeader{}, nil, err
	}

	var (
		finalizedRoot  common.Hash
		finalizedEpoch types.Epoch
	)
	if finalized != nil && !finalized.IsZero() {
		finalizedRoot = finalized.Root()
		finalizedEpoch = c.Config.EpochAtSlot(finalized.Slot)
	}
	epochChunk := types.Uint64Leaf(uint64(finalizedEpoch))

	depth := merkle.Depth(spec.CurrentSyncCommitteeGindex)
	leaves := make([]common.Hash, 1<<uint(depth))
	for i := range leaves {
		leaves[i] = slotChunk(fmt.Sprintf("state field %d", i), slot)
	}
	checkpoint := spec.FinalizedRootGindex / 2
	leaves[merkle.SubtreeIndex(checkpoint)] = merkle.HashPair(epochChunk, finalizedRoot)
	leaves[merkle.SubtreeIndex(spec.CurrentSyncCommitteeGindex)] = current.SyncCommittee.Root()
	leaves[merkle.SubtreeIndex(spec.NextSyncCommitteeGindex)] = next.SyncCommittee.Root()
	state, err := types.NewTree(leaves, depth)
	if err != nil {
		return types.LightClientHeader{}, nil, err
	}
	var branches [3][]common.Hash
	for i, gindex := range []uint64{checkpoint, spec.CurrentSyncCommitteeGindex, spec.NextSyncCommitteeGindex} {
		if branches[i], err = types.Prove(state, gindex); err != nil {
			return types.LightClientHeader{}, nil, err
		}
	}

	bodyRoot, execution, executionBranch, err := c.body(slot, spec)
	if err != nil {
		return types.LightClientHeader{}, nil, err
	}
	header := types.LightClientHeader{
		Beacon: types.BeaconBlockHeader{
			Slot:          slot,
			ProposerIndex: uint64(slot) % 64,
			ParentRoot:    slotChunk("parent", slot),
			StateRoot:     types.Root(state),
			BodyRoot:      bodyRoot,
		},
		Execution:       execution,
		ExecutionBranch: executionBranch,
	}
	proofs := &StateProofs{
		FinalityBranch:             append([]common.Hash{epochChunk}, branches[0]...),
		CurrentSyncCommitteeBranch: branches[1],
		NextSyncCommitteeBranch:    branches[2],
	}
	return header, proofs, nil
}

// Bootstrap returns the bootstrap of the block at slot.
func (c *Chain) Bootstrap(slot types.Slot) (*types.LightClientBootstrap, error) {
	header, proofs, err := c.Header(slot, nil)
	if err != nil {
		return nil, err
	}
	committee, err := c.Committee(c.Config.SyncCommitteePeriodAtSlot(slot))
	if err != nil {
		return nil, err
	}
	return &types.LightClientBootstrap{
		Header:                     header,
		CurrentSyncCommittee:       *committee.SyncCommittee,
		CurrentSyncCommitteeBranch: proofs.CurrentSyncCommitteeBranch,
	}, nil
}

// Update returns an update attesting to attested and finalizing finalized,
// signed at signature by every member of the signing committee. A finalized
// slot equal to the genesis slot uses the zero checkpoint.
func (c *Chain) Update(attested, finalized, signature types.Slot, withNext bool) (*types.LightClientUpdate, error) {
	var finalizedHeader types.LightClientHeader
	if finalized != c.Config.GenesisSlot {
		header, _, err := c.Header(finalized, nil)
		if err != nil {
			return nil, err
		}
		finalizedHeader = header
	}
	attestedHeader, proofs, err := c.Header(attested, &finalizedHeader.Beacon)
	if err != nil {
		return nil, err
	}
	update := &types.LightClientUpdate{
		AttestedHeader:  attestedHeader,
		FinalizedHeader: finalizedHeader,
		FinalityBranch:  proofs.FinalityBranch,
		SignatureSlot:   signature,
	}
	if withNext {
		next, err := c.Committee(c.Config.SyncCommitteePeriodAtSlot(attested) + 1)
		if err != nil {
			return nil, err
		}
		update.NextSyncCommittee = next.SyncCommittee
		update.NextSyncCommitteeBranch = proofs.NextSyncCommitteeBranch
	}
	if err := c.Sign(update, int(c.Config.SyncCommitteeSize)); err != nil {
		return nil, err
	}
	return update, nil
}

// PeriodUpdate returns the update a beacon node serves for period: attested
// and finalized within the period, carrying the committee of period+1.
func (c *Chain) PeriodUpdate(period uint64) (*types.LightClientUpdate, error) {
	var (
		last      = c.Config.LastSlotAtPeriod(period)
		perEpoch  = types.Slot(c.Config.SlotsPerEpoch)
		attested  = last - perEpoch
		finalized = attested - 2*perEpoch
	)
	return c.Update(attested, finalized, attested+1, true)
}

// Sign (re)signs update with the first participants members of the
// committee of its signature period.
func (c *Chain) Sign(update *types.LightClientUpdate, participants int) error {
	committee, err := c.Committee(c.Config.SyncCommitteePeriodAtSlot(update.SignatureSlot))
	if err != nil {
		return err
	}
	slot := update.SignatureSlot
	if slot > 0 {
		slot--
	}
	version := c.Config.ForkVersion(c.Config.EpochAtSlot(slot))
	domain, err := types.ComputeDomain(config.DOMAIN_SYNC_COMMITTEE, version, c.Genesis.GenesisValidatorsRoot)
	if err != nil {
		return err
	}
	root, err := types.ComputeSigningRoot(update.AttestedHeader.Beacon.Root(), domain)
	if err != nil {
		return err
	}
	update.SyncAggregate = committee.Sign(root, participants)
	return nil
}
