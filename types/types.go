package types

import (
	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ssz "github.com/ferranbt/fastssz"
	eth2types "github.com/prysmaticlabs/eth2-types"
)

type Slot = eth2types.Slot
type Epoch = eth2types.Epoch

// BLSPubkey is a compressed BLS12-381 public key.
type BLSPubkey [config.BLS_PUBKEY_LENGTH]byte

func (p BLSPubkey) String() string { return hexutil.Encode(p[:]) }

func (p BLSPubkey) MarshalText() ([]byte, error) {
	return hexutil.Bytes(p[:]).MarshalText()
}

func (p *BLSPubkey) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("BLSPubkey", input, p[:])
}

// BLSSignature is a compressed BLS12-381 signature.
type BLSSignature [config.BLS_SIGNATURE_LENGTH]byte

func (s BLSSignature) String() string { return hexutil.Encode(s[:]) }

func (s BLSSignature) MarshalText() ([]byte, error) {
	return hexutil.Bytes(s[:]).MarshalText()
}

func (s *BLSSignature) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("BLSSignature", input, s[:])
}

type Domain [32]byte

type SigningData struct {
	ObjectRoot common.Hash
	Domain     Domain
}

func (s *SigningData) HashTreeRoot() ([32]byte, error) {
	return ssz.HashWithDefaultHasher(s)
}

func (s *SigningData) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(s.ObjectRoot[:])
	hh.PutBytes(s.Domain[:])
	hh.Merkleize(indx)
	return nil
}

type ForkData struct {
	CurrentVersion        config.Version
	GenesisValidatorsRoot common.Hash
}

func (f *ForkData) HashTreeRoot() ([32]byte, error) {
	return ssz.HashWithDefaultHasher(f)
}

func (f *ForkData) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(f.CurrentVersion[:])
	hh.PutBytes(f.GenesisValidatorsRoot[:])
	hh.Merkleize(indx)
	return nil
}

// ComputeDomain returns the signature domain of domainType under a fork.
func ComputeDomain(domainType [4]byte, version config.Version, genesisValidatorsRoot common.Hash) (Domain, error) {
	forkDataRoot, err := (&ForkData{CurrentVersion: version, GenesisValidatorsRoot: genesisValidatorsRoot}).HashTreeRoot()
	if err != nil {
		return Domain{}, err
	}
	var domain Domain
	copy(domain[:4], domainType[:])
	copy(domain[4:], forkDataRoot[:28])
	return domain, nil
}

// ComputeSigningRoot returns the message a BLS signature over objectRoot in
// domain signs.
func ComputeSigningRoot(objectRoot common.Hash, domain Domain) (common.Hash, error) {
	return (&SigningData{ObjectRoot: objectRoot, Domain: domain}).HashTreeRoot()
}

// Genesis describes the genesis of a beacon chain.
type Genesis struct {
	GenesisTime           uint64         `json:"genesis_time,string"`
	GenesisValidatorsRoot common.Hash    `json:"genesis_validators_root"`
	GenesisForkVersion    config.Version `json:"genesis_fork_version"`
}
