// Package beacon fetches light client data from a beacon node REST API.
package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "beacon")

// ErrNotFound is returned when the beacon node does not have the requested
// object.
var ErrNotFound = errors.New("not found")

// StatusError is returned for non 200 responses.
type StatusError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error from beacon API endpoint %q: status code %d: %s", e.Path, e.StatusCode, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client requests light client data from a beacon node.
type Client struct {
	url           string
	client        *http.Client
	customHeaders map[string]string
}

func NewClient(url string, customHeaders map[string]string) *Client {
	return &Client{
		url: strings.TrimRight(url, "/"),
		client: &http.Client{
			Timeout: time.Second * 10,
		},
		customHeaders: customHeaders,
	}
}

func (c *Client) httpGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.customHeaders {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode, Message: apiErr.Message}
	}
	return body, nil
}

// getData fetches path and decodes the data field of the response into v.
func (c *Client) getData(ctx context.Context, path string, v interface{}) error {
	resp, err := c.httpGet(ctx, path)
	if err != nil {
		return err
	}
	data := struct {
		Version string      `json:"version"`
		Data    interface{} `json:"data"`
	}{Data: v}
	if err := json.Unmarshal(resp, &data); err != nil {
		return errors.Wrapf(err, "could not decode %s", path)
	}
	return nil
}

// Genesis fetches the genesis of the chain the node follows.
func (c *Client) Genesis(ctx context.Context) (*types.Genesis, error) {
	var genesis types.Genesis
	if err := c.getData(ctx, "/eth/v1/beacon/genesis", &genesis); err != nil {
		return nil, err
	}
	return &genesis, nil
}

// Bootstrap fetches the light client bootstrap of the block with root.
func (c *Client) Bootstrap(ctx context.Context, root common.Hash) (*types.LightClientBootstrap, error) {
	var bootstrap types.LightClientBootstrap
	if err := c.getData(ctx, "/eth/v1/beacon/light_client/bootstrap/"+root.Hex(), &bootstrap); err != nil {
		return nil, err
	}
	return &bootstrap, nil
}

func (c *Client) lightClientUpdates(ctx context.Context, period, count uint64) ([]*types.LightClientUpdate, error) {
	path := "/eth/v1/beacon/light_client/updates?start_period=" + strconv.FormatUint(period, 10) + "&count=" + strconv.FormatUint(count, 10)
	resp, err := c.httpGet(ctx, path)
	if err != nil {
		return nil, err
	}
	var data []struct {
		Version string                  `json:"version"`
		Data    types.LightClientUpdate `json:"data"`
	}
	if err := json.Unmarshal(resp, &data); err != nil {
		return nil, errors.Wrapf(err, "could not decode %s", path)
	}
	updates := make([]*types.LightClientUpdate, len(data))
	for i := range data {
		updates[i] = &data[i].Data
		updates[i].Normalize()
	}
	return updates, nil
}

// LightClientUpdates fetches the best updates of up to count periods
// starting at period. Nodes may refuse large ranges, so the request is
// repeated with fewer periods until one succeeds.
func (c *Client) LightClientUpdates(ctx context.Context, period, count uint64) ([]*types.LightClientUpdate, error) {
	var lastErr error
	for ; count > 0; count /= 2 {
		updates, err := c.lightClientUpdates(ctx, period, count)
		if err == nil {
			return updates, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		log.WithError(err).WithFields(logrus.Fields{
			"period": period,
			"count":  count,
		}).Debug("Could not fetch light client updates")
		lastErr = err
	}
	return nil, lastErr
}

// FinalityUpdate fetches the latest finality update.
func (c *Client) FinalityUpdate(ctx context.Context) (*types.LightClientFinalityUpdate, error) {
	var update types.LightClientFinalityUpdate
	if err := c.getData(ctx, "/eth/v1/beacon/light_client/finality_update", &update); err != nil {
		return nil, err
	}
	return &update, nil
}

// Checkpoint is an epoch boundary block.
type Checkpoint struct {
	Epoch types.Epoch `json:"epoch,string"`
	Root  common.Hash `json:"root"`
}

type FinalityCheckpoints struct {
	PreviousJustified Checkpoint `json:"previous_justified"`
	CurrentJustified  Checkpoint `json:"current_justified"`
	Finalized         Checkpoint `json:"finalized"`
}

// FinalityCheckpoints fetches the checkpoints of the head state.
func (c *Client) FinalityCheckpoints(ctx context.Context) (*FinalityCheckpoints, error) {
	var checkpoints FinalityCheckpoints
	if err := c.getData(ctx, "/eth/v1/beacon/states/head/finality_checkpoints", &checkpoints); err != nil {
		return nil, err
	}
	return &checkpoints, nil
}

// BlockHeader fetches the header of the canonical block at slot. The
// returned header is checked against the root the node reports.
func (c *Client) BlockHeader(ctx context.Context, slot types.Slot) (*types.BeaconBlockHeader, error) {
	var data struct {
		Root      common.Hash `json:"root"`
		Canonical bool        `json:"canonical"`
		Header    struct {
			Message types.BeaconBlockHeader `json:"message"`
		} `json:"header"`
	}
	if err := c.getData(ctx, "/eth/v1/beacon/headers/"+strconv.FormatUint(uint64(slot), 10), &data); err != nil {
		return nil, err
	}
	header := data.Header.Message
	if root := header.Root(); root != data.Root {
		return nil, fmt.Errorf("invalid beacon header root: got %v, want %v", root, data.Root)
	}
	return &header, nil
}
