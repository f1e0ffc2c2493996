package authority_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// ContextPayload is the authority's copy of the shared record: the three
// aliased identifiers plus its server-assigned timestamp. The authority's
// schema predates the tryout extensions and knows only the game-scheme names.
type ContextPayload struct {
	GameID  string `json:"game_id"`
	DriveID string `json:"drive_id"`
	PlayID  string `json:"play_id"`
	TS      int64  `json:"ts"`
}

type contextGetResponse struct {
	OK  bool            `json:"ok"`
	Ctx *ContextPayload `json:"ctx"`
}

type contextSetRequest struct {
	Action  string `json:"action"`
	GameID  string `json:"game_id"`
	DriveID string `json:"drive_id"`
	PlayID  string `json:"play_id"`
}

type ackResponse struct {
	OK bool `json:"ok"`
}

// GetContext fetches the authority's current record.
func (c *AuthorityClient) GetContext(ctx context.Context) (*ContextPayload, error) {
	endpoint := fmt.Sprintf("?%s=%s", ParamAction, ActionContextGet)
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get context: %w", err)
	}

	var response contextGetResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	if !response.OK || response.Ctx == nil {
		return nil, fmt.Errorf("authority rejected ctx_get, raw response: %s", string(body))
	}
	return response.Ctx, nil
}

// SetContext writes the three aliased identifiers to the authority. No other
// fields are sent; the authority rejects unknown keys.
func (c *AuthorityClient) SetContext(ctx context.Context, gameID, driveID, playID string) error {
	payload, err := json.Marshal(contextSetRequest{
		Action:  ActionContextSet,
		GameID:  gameID,
		DriveID: driveID,
		PlayID:  playID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal ctx_set payload: %w", err)
	}

	body, err := c.Post(ctx, "", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to set context: %w", err)
	}

	var response ackResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	if !response.OK {
		return fmt.Errorf("authority rejected ctx_set, raw response: %s", string(body))
	}
	return nil
}

func queryEndpoint(params url.Values) string {
	return "?" + params.Encode()
}
