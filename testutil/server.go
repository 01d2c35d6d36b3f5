package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
)

// Server serves a Chain through the light client endpoints of the beacon
// API. It only knows data up to its head slot.
type Server struct {
	chain *Chain

	mu         sync.Mutex
	head       types.Slot
	maxUpdates uint64
	requests   map[string]int
}

func NewServer(chain *Chain, head types.Slot) *Server {
	return &Server{chain: chain, head: head, requests: make(map[string]int)}
}

func (s *Server) SetHead(head types.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = head
}

// SetMaxUpdates makes the server refuse update ranges longer than max.
func (s *Server) SetMaxUpdates(max uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxUpdates = max
}

// Requests returns how often path was requested.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

type response struct {
	Version string      `json:"version"`
	Data    interface{} `json:"data"`
}

func (s *Server) version(slot types.Slot) string {
	cfg := s.chain.Config
	epoch := cfg.EpochAtSlot(slot)
	version := "phase0"
	for _, fork := range cfg.Forks {
		if fork.Epoch <= epoch {
			version = strings.ToLower(string(fork.Name))
		}
	}
	return version
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, format string, args ...interface{}) {
	writeJSON(w, code, map[string]interface{}{"code": code, "message": fmt.Sprintf(format, args...)})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests[r.URL.Path]++
	head, maxUpdates := s.head, s.maxUpdates
	s.mu.Unlock()

	var (
		cfg  = s.chain.Config
		path = r.URL.Path
	)
	switch {
	case path == "/eth/v1/beacon/genesis":
		writeJSON(w, http.StatusOK, response{Data: s.chain.Genesis})

	case strings.HasPrefix(path, "/eth/v1/beacon/light_client/bootstrap/"):
		root := common.HexToHash(strings.TrimPrefix(path, "/eth/v1/beacon/light_client/bootstrap/"))
		for epoch := types.Epoch(0); cfg.StartSlotAtEpoch(epoch) <= head; epoch++ {
			slot := cfg.StartSlotAtEpoch(epoch)
			bootstrap, err := s.chain.Bootstrap(slot)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "%v", err)
				return
			}
			if bootstrap.Header.Beacon.Root() == root {
				writeJSON(w, http.StatusOK, response{Version: s.version(slot), Data: bootstrap})
				return
			}
		}
		writeError(w, http.StatusNotFound, "LC bootstrap unavailable")

	case path == "/eth/v1/beacon/light_client/updates":
		start, err1 := strconv.ParseUint(r.URL.Query().Get("start_period"), 10, 64)
		count, err2 := strconv.ParseUint(r.URL.Query().Get("count"), 10, 64)
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "invalid query")
			return
		}
		if maxUpdates != 0 && count > maxUpdates {
			writeError(w, http.StatusBadRequest, "count %d exceeds %d", count, maxUpdates)
			return
		}
		updates := []response{}
		for period := start; period < start+count; period++ {
			update, err := s.chain.PeriodUpdate(period)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "%v", err)
				return
			}
			if update.SignatureSlot > head {
				break
			}
			updates = append(updates, response{Version: s.version(update.AttestedHeader.Beacon.Slot), Data: update})
		}
		writeJSON(w, http.StatusOK, updates)

	case path == "/eth/v1/beacon/light_client/finality_update":
		update, err := s.finalityUpdate(head)
		if err != nil {
			writeError(w, http.StatusNotFound, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, response{Version: s.version(update.AttestedHeader.Beacon.Slot), Data: update})

	case path == "/eth/v1/beacon/states/head/finality_checkpoints":
		finalized := s.finalizedSlot(head)
		header, _, err := s.chain.Header(finalized, nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}
		checkpoint := map[string]interface{}{
			"epoch": strconv.FormatUint(uint64(cfg.EpochAtSlot(finalized)), 10),
			"root":  header.Beacon.Root(),
		}
		writeJSON(w, http.StatusOK, response{Data: map[string]interface{}{
			"previous_justified": checkpoint,
			"current_justified":  checkpoint,
			"finalized":          checkpoint,
		}})

	case strings.HasPrefix(path, "/eth/v1/beacon/headers/"):
		slot, err := strconv.ParseUint(strings.TrimPrefix(path, "/eth/v1/beacon/headers/"), 10, 64)
		if err != nil || types.Slot(slot) > head {
			writeError(w, http.StatusNotFound, "header not found")
			return
		}
		header, _, err := s.chain.Header(types.Slot(slot), nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, response{Data: map[string]interface{}{
			"root":      header.Beacon.Root(),
			"canonical": true,
			"header":    map[string]interface{}{"message": header.Beacon},
		}})

	default:
		writeError(w, http.StatusNotFound, "unknown endpoint %s", path)
	}
}

// finalizedSlot is the first slot of the epoch two epochs behind head.
func (s *Server) finalizedSlot(head types.Slot) types.Slot {
	cfg := s.chain.Config
	epoch := cfg.EpochAtSlot(head)
	if epoch < 2 {
		return cfg.GenesisSlot
	}
	return cfg.StartSlotAtEpoch(epoch - 2)
}

func (s *Server) finalityUpdate(head types.Slot) (*types.LightClientFinalityUpdate, error) {
	if head < 2 {
		return nil, fmt.Errorf("no finality update before slot 2")
	}
	update, err := s.chain.Update(head-1, s.finalizedSlot(head-1), head, false)
	if err != nil {
		return nil, err
	}
	return &types.LightClientFinalityUpdate{
		AttestedHeader:  update.AttestedHeader,
		FinalizedHeader: update.FinalizedHeader,
		FinalityBranch:  update.FinalityBranch,
		SyncAggregate:   update.SyncAggregate,
		SignatureSlot:   update.SignatureSlot,
	}, nil
}
