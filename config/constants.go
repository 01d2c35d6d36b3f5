package config

import (
	"math"

	eth2types "github.com/prysmaticlabs/eth2-types"
)

const (
	FAR_FUTURE_EPOCH = eth2types.Epoch(math.MaxUint64)

	BLS_PUBKEY_LENGTH    = 48
	BLS_SIGNATURE_LENGTH = 96

	BYTES_PER_LOGS_BLOOM = 256
	MAX_EXTRA_DATA_BYTES = 32
)

var (
	DOMAIN_SYNC_COMMITTEE = [4]byte{0x07, 0x00, 0x00, 0x00}
)
