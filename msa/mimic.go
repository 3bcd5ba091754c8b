package msa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const mimicTimeout = 10 * time.Second

// Mimic resolves a player by username or UUID against the public session
// services and returns an unauthenticated profile carrying their name, id
// and skin properties. No login happens and no token is produced; it only
// makes a development session look like that player.
func Mimic(
	ctx context.Context,
	exec *Executor,
	eps Endpoints,
	log *zap.Logger,
	player string,
) (Profile, error) {
	id, err := ParseProfileUUID(player)
	if err != nil {
		id, err = lookupByName(ctx, exec, eps, player)
		if err != nil {
			return Profile{}, err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, mimicTimeout)
	defer cancel()

	resp, err := exec.Execute(
		reqCtx, http.MethodGet,
		fmt.Sprintf("%s/%s?unsigned=false", eps.SessionProfileURL, UndashedUUID(id)),
		"", nil,
	)
	if err != nil {
		return Profile{}, transportErr("mimic profile", err)
	}

	var body struct {
		Name       string          `json:"name"`
		ID         string          `json:"id"`
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return Profile{}, providerErr("mimic profile", resp.Body, err)
	}
	if body.Name == "" {
		return Profile{}, providerErr("mimic profile",
			fmt.Sprintf("no profile for %s", player), nil)
	}

	log.Info("mimicking player", zap.String("player", body.Name))
	return Profile{
		Name:       body.Name,
		UUID:       id,
		Properties: string(body.Properties),
	}, nil
}

// lookupByName resolves a username to its account id.
func lookupByName(
	ctx context.Context,
	exec *Executor,
	eps Endpoints,
	name string,
) (uuid.UUID, error) {
	reqCtx, cancel := context.WithTimeout(ctx, mimicTimeout)
	defer cancel()

	resp, err := exec.Execute(
		reqCtx, http.MethodGet, eps.NameLookupURL+"/"+name, "", nil,
	)
	if err != nil {
		return uuid.UUID{}, transportErr("mimic lookup", err)
	}

	var body struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return uuid.UUID{}, providerErr("mimic lookup", resp.Body, err)
	}
	if body.ID == "" {
		return uuid.UUID{}, providerErr("mimic lookup",
			fmt.Sprintf("no player named %q", name), nil)
	}
	return ParseProfileUUID(body.ID)
}
