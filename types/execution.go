package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/MariusVanDerWijden/eth2-lc/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ssz "github.com/ferranbt/fastssz"
	"github.com/holiman/uint256"
)

// ExecutionPayloadHeader holds the union of the header fields from
// Bellatrix to Deneb. Which of them are hashed depends on the payload layout
// of the fork the header belongs to.
type ExecutionPayloadHeader struct {
	ParentHash       common.Hash    `json:"parent_hash"`
	FeeRecipient     common.Address `json:"fee_recipient"`
	StateRoot        common.Hash    `json:"state_root"`
	ReceiptsRoot     common.Hash    `json:"receipts_root"`
	LogsBloom        hexutil.Bytes  `json:"logs_bloom"`
	PrevRandao       common.Hash    `json:"prev_randao"`
	BlockNumber      uint64         `json:"block_number,string"`
	GasLimit         uint64         `json:"gas_limit,string"`
	GasUsed          uint64         `json:"gas_used,string"`
	Timestamp        uint64         `json:"timestamp,string"`
	ExtraData        hexutil.Bytes  `json:"extra_data"`
	BaseFeePerGas    *uint256.Int   `json:"-"`
	BlockHash        common.Hash    `json:"block_hash"`
	TransactionsRoot common.Hash    `json:"transactions_root"`

	// Capella
	WithdrawalsRoot common.Hash `json:"withdrawals_root"`
	// Deneb
	BlobGasUsed   uint64 `json:"blob_gas_used,string"`
	ExcessBlobGas uint64 `json:"excess_blob_gas,string"`
}

type executionPayloadHeader ExecutionPayloadHeader

// MarshalJSON encodes the base fee as a decimal string like the beacon API.
func (h ExecutionPayloadHeader) MarshalJSON() ([]byte, error) {
	baseFee := "0"
	if h.BaseFeePerGas != nil {
		baseFee = h.BaseFeePerGas.ToBig().String()
	}
	return json.Marshal(&struct {
		*executionPayloadHeader
		BaseFeePerGas string `json:"base_fee_per_gas"`
	}{(*executionPayloadHeader)(&h), baseFee})
}

func (h *ExecutionPayloadHeader) UnmarshalJSON(input []byte) error {
	dec := struct {
		*executionPayloadHeader
		BaseFeePerGas *string `json:"base_fee_per_gas"`
	}{executionPayloadHeader: (*executionPayloadHeader)(h)}
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if dec.BaseFeePerGas == nil {
		return fmt.Errorf("missing required field 'base_fee_per_gas' for ExecutionPayloadHeader")
	}
	b, ok := new(big.Int).SetString(*dec.BaseFeePerGas, 10)
	if !ok || b.Sign() < 0 {
		return fmt.Errorf("invalid base_fee_per_gas %q", *dec.BaseFeePerGas)
	}
	fee, overflow := uint256.FromBig(b)
	if overflow {
		return fmt.Errorf("base_fee_per_gas %q overflows 256 bits", *dec.BaseFeePerGas)
	}
	h.BaseFeePerGas = fee
	return nil
}

// baseFeeBytes is the little endian uint256 encoding of the base fee.
func baseFeeBytes(v *uint256.Int) []byte {
	out := make([]byte, 32)
	if v == nil {
		return out
	}
	be := v.Bytes32()
	for i := range be {
		out[i] = be[len(be)-1-i]
	}
	return out
}

// fields returns a hasher step per header field of layout, in container
// order.
func (h *ExecutionPayloadHeader) fields(layout config.PayloadLayout) ([]func(hh *ssz.Hasher), error) {
	if layout == config.NoPayload {
		return nil, fmt.Errorf("no execution payload before bellatrix")
	}
	if len(h.LogsBloom) != config.BYTES_PER_LOGS_BLOOM {
		return nil, fmt.Errorf("invalid logs bloom length: got %d, want %d", len(h.LogsBloom), config.BYTES_PER_LOGS_BLOOM)
	}
	if len(h.ExtraData) > config.MAX_EXTRA_DATA_BYTES {
		return nil, fmt.Errorf("extra data too long: got %d, max %d", len(h.ExtraData), config.MAX_EXTRA_DATA_BYTES)
	}
	fields := []func(hh *ssz.Hasher){
		func(hh *ssz.Hasher) { hh.PutBytes(h.ParentHash[:]) },
		func(hh *ssz.Hasher) { hh.PutBytes(h.FeeRecipient[:]) },
		func(hh *ssz.Hasher) { hh.PutBytes(h.StateRoot[:]) },
		func(hh *ssz.Hasher) { hh.PutBytes(h.ReceiptsRoot[:]) },
		func(hh *ssz.Hasher) { hh.PutBytes(h.LogsBloom) },
		func(hh *ssz.Hasher) { hh.PutBytes(h.PrevRandao[:]) },
		func(hh *ssz.Hasher) { hh.PutUint64(h.BlockNumber) },
		func(hh *ssz.Hasher) { hh.PutUint64(h.GasLimit) },
		func(hh *ssz.Hasher) { hh.PutUint64(h.GasUsed) },
		func(hh *ssz.Hasher) { hh.PutUint64(h.Timestamp) },
		func(hh *ssz.Hasher) {
			indx := hh.Index()
			hh.PutBytes(h.ExtraData)
			hh.MerkleizeWithMixin(indx, uint64(len(h.ExtraData)), (config.MAX_EXTRA_DATA_BYTES+31)/32)
		},
		func(hh *ssz.Hasher) { hh.PutBytes(baseFeeBytes(h.BaseFeePerGas)) },
		func(hh *ssz.Hasher) { hh.PutBytes(h.BlockHash[:]) },
		func(hh *ssz.Hasher) { hh.PutBytes(h.TransactionsRoot[:]) },
	}
	if layout >= config.CapellaPayload {
		fields = append(fields, func(hh *ssz.Hasher) { hh.PutBytes(h.WithdrawalsRoot[:]) })
	}
	if layout >= config.DenebPayload {
		fields = append(fields,
			func(hh *ssz.Hasher) { hh.PutUint64(h.BlobGasUsed) },
			func(hh *ssz.Hasher) { hh.PutUint64(h.ExcessBlobGas) },
		)
	}
	return fields, nil
}

// HashTreeRootWith hashes the header as the payload container of layout.
func (h *ExecutionPayloadHeader) HashTreeRootWith(hh *ssz.Hasher, layout config.PayloadLayout) error {
	fields, err := h.fields(layout)
	if err != nil {
		return err
	}
	indx := hh.Index()
	for _, put := range fields {
		put(hh)
	}
	hh.Merkleize(indx)
	return nil
}

func (h *ExecutionPayloadHeader) HashTreeRoot(spec config.ForkSpec) (common.Hash, error) {
	hh := ssz.DefaultHasherPool.Get()
	defer ssz.DefaultHasherPool.Put(hh)
	if err := h.HashTreeRootWith(hh, spec.PayloadLayout); err != nil {
		return common.Hash{}, err
	}
	root, err := hh.HashRoot()
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(root), nil
}

// Leaves returns the hash tree roots of the header fields of layout.
func (h *ExecutionPayloadHeader) Leaves(layout config.PayloadLayout) ([]common.Hash, error) {
	fields, err := h.fields(layout)
	if err != nil {
		return nil, err
	}
	var (
		hh     = ssz.NewHasher()
		leaves = make([]common.Hash, len(fields))
	)
	for i, put := range fields {
		hh.Reset()
		put(hh)
		root, err := hh.HashRoot()
		if err != nil {
			return nil, err
		}
		leaves[i] = root
	}
	return leaves, nil
}

// Tree builds the payload header tree of the given fork.
func (h *ExecutionPayloadHeader) Tree(spec config.ForkSpec) (*ssz.Node, error) {
	leaves, err := h.Leaves(spec.PayloadLayout)
	if err != nil {
		return nil, err
	}
	return NewTree(leaves, int(spec.ExecutionPayloadTreeDepth))
}

// ExecutionUpdate proves the execution state root and block number of a
// finalized execution payload.
type ExecutionUpdate struct {
	StateRoot         common.Hash   `json:"state_root"`
	StateRootBranch   []common.Hash `json:"state_root_branch"`
	BlockNumber       uint64        `json:"block_number,string"`
	BlockNumberBranch []common.Hash `json:"block_number_branch"`
}

// NewExecutionUpdate builds the state root and block number proofs of a
// payload header.
func NewExecutionUpdate(spec config.ForkSpec, h *ExecutionPayloadHeader) (*ExecutionUpdate, error) {
	tree, err := h.Tree(spec)
	if err != nil {
		return nil, err
	}
	depth := int(spec.ExecutionPayloadTreeDepth)
	if merkle.Depth(spec.ExecutionPayloadStateRootGindex) != depth || merkle.Depth(spec.ExecutionPayloadBlockNumberGindex) != depth {
		return nil, fmt.Errorf("payload field gindices do not match tree depth %d", depth)
	}
	stateRootBranch, err := Prove(tree, spec.ExecutionPayloadStateRootGindex)
	if err != nil {
		return nil, err
	}
	blockNumberBranch, err := Prove(tree, spec.ExecutionPayloadBlockNumberGindex)
	if err != nil {
		return nil, err
	}
	return &ExecutionUpdate{
		StateRoot:         h.StateRoot,
		StateRootBranch:   stateRootBranch,
		BlockNumber:       h.BlockNumber,
		BlockNumberBranch: blockNumberBranch,
	}, nil
}
