package core

import (
	"sort"

	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "core")

// Validator checks an update against the store before it is applied.
type Validator func(cc *ChainContext, store *Store, update *types.LightClientUpdate) error

// ProcessUpdate validates update against store and applies it. The returned
// store is nil if the update was valid but did not advance the store.
func ProcessUpdate(cc *ChainContext, store *Store, update *types.LightClientUpdate) (*Store, error) {
	return ProcessUpdateWith(cc, store, update, ValidateConsensusUpdate)
}

// ProcessUpdateWith is ProcessUpdate with a custom validator.
func ProcessUpdateWith(cc *ChainContext, store *Store, update *types.LightClientUpdate, validate Validator) (*Store, error) {
	if err := validate(cc, store, update); err != nil {
		return nil, err
	}
	return store.ApplyLightClientUpdate(cc, update)
}

// ProcessUpdates brings store as far forward as updates allow. Updates are
// tried in attested slot order and the list is walked again as long as a
// pass made progress, so an update that needs a committee learned from a
// later one is not lost.
//
// Updates that do not fit the store yet are skipped. Any other error aborts
// and is returned together with the store reached so far.
func ProcessUpdates(cc *ChainContext, store *Store, updates []*types.LightClientUpdate) (*Store, int, error) {
	return ProcessUpdatesWith(cc, store, updates, ValidateConsensusUpdate)
}

// ProcessUpdatesWith is ProcessUpdates with a custom validator.
func ProcessUpdatesWith(cc *ChainContext, store *Store, updates []*types.LightClientUpdate, validate Validator) (*Store, int, error) {
	pending := make([]*types.LightClientUpdate, len(updates))
	copy(pending, updates)
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].AttestedHeader.Beacon.Slot < pending[j].AttestedHeader.Beacon.Slot
	})

	applied := 0
	for progress := true; progress && len(pending) > 0; {
		progress = false
		remaining := pending[:0]
		for _, update := range pending {
			next, err := ProcessUpdateWith(cc, store, update, validate)
			if err != nil {
				if Classify(err) != ClassProtocolState {
					return store, applied, err
				}
				log.WithFields(logrus.Fields{
					"attested":  update.AttestedHeader.Beacon.Slot,
					"finalized": update.FinalizedHeader.Beacon.Slot,
					"signature": update.SignatureSlot,
				}).WithError(err).Debug("Skipping light client update")
				remaining = append(remaining, update)
				continue
			}
			if next == nil {
				continue
			}
			store = next
			applied++
			progress = true
			log.WithFields(logrus.Fields{
				"slot":    store.LatestFinalizedHeader.Slot,
				"period":  store.CurrentPeriod(cc),
				"hasNext": store.NextSyncCommittee != nil,
			}).Debug("Applied light client update")
		}
		pending = remaining
	}
	return store, applied, nil
}
