package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Wyydra/huddle/internal/config"
	"github.com/Wyydra/huddle/internal/protocol"
)

var errRoomNotFound = errors.New("room not found")

// roomAPI calls the relay's REST endpoints.
type roomAPI struct {
	cfg    *config.ClientConfig
	client *http.Client
}

func newRoomAPI(cfg *config.ClientConfig) *roomAPI {
	return &roomAPI{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

func (a *roomAPI) CreateRoom(ctx context.Context, hostID, hostName string) (protocol.CreateRoomResponse, error) {
	var out protocol.CreateRoomResponse
	body, err := json.Marshal(protocol.CreateRoomRequest{HostID: hostID, HostName: hostName})
	if err != nil {
		return out, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIURL("/api/create-room"), bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	return out, a.do(req, &out)
}

func (a *roomAPI) Room(ctx context.Context, roomID string) (protocol.RoomInfo, error) {
	var out protocol.RoomInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.APIURL("/api/room/"+roomID), nil)
	if err != nil {
		return out, err
	}
	return out, a.do(req, &out)
}

func (a *roomAPI) do(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errRoomNotFound
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr protocol.APIError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server error (%d)", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid server response: %w", err)
	}
	return nil
}
