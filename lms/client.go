// Package lms speaks the music server's JSON-RPC protocol and
// normalizes its duck-typed status responses into one Snapshot struct
// at the boundary.
package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/buger/jsonparser"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

var ErrNoPlayer = errors.New("no player specified")

type Player struct {
	ID        string
	Name      string
	Connected bool
}

type Client struct {
	host string
	port int
	http *retryablehttp.Client
}

func NewClient(host string, port int) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.Logger = nil
	return &Client{host: host, port: port, http: c}
}

func (c *Client) Host() string { return c.host }
func (c *Client) Port() int    { return c.port }

type rpcRequest struct {
	ID     int           `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// request posts a slim.request command and returns the raw "result"
// object.
func (c *Client) request(ctx context.Context, playerID string, cmd []interface{}) ([]byte, error) {
	body, err := json.Marshal(rpcRequest{
		ID:     1,
		Method: "slim.request",
		Params: []interface{}{playerID, cmd},
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to marshal rpc request")
	}

	url := fmt.Sprintf("http://%s:%d/jsonrpc.js", c.host, c.port)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "unable to build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "music server unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("music server returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read rpc response")
	}
	result, _, _, err := jsonparser.Get(data, "result")
	if err != nil {
		return nil, errors.Wrap(err, "malformed rpc response")
	}
	return result, nil
}

// Players lists the players the server knows about.
func (c *Client) Players(ctx context.Context) ([]Player, error) {
	result, err := c.request(ctx, "", []interface{}{"serverstatus", 0, 99})
	if err != nil {
		return nil, err
	}

	var players []Player
	_, err = jsonparser.ArrayEach(result, func(value []byte, dataType jsonparser.ValueType, offset int, _ error) {
		id, _ := jsonparser.GetString(value, "playerid")
		if id == "" {
			return
		}
		name, _ := jsonparser.GetString(value, "name")
		connected, _ := jsonparser.GetInt(value, "connected")
		players = append(players, Player{ID: id, Name: name, Connected: connected == 1})
	}, "players_loop")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return nil, errors.Wrap(err, "malformed players list")
	}
	return players, nil
}

// Status fetches the transport status of one player.
func (c *Client) Status(ctx context.Context, playerID string) (*Snapshot, error) {
	if playerID == "" {
		return nil, ErrNoPlayer
	}
	result, err := c.request(ctx, playerID, []interface{}{"status", "-", 1, "tags:algdKN"})
	if err != nil {
		return nil, err
	}
	return snapshotFromStatus(result), nil
}

// CoverArt fetches the raw cover image bytes for a cover identifier.
func (c *Client) CoverArt(ctx context.Context, coverID string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.CoverURL(coverID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to build cover request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch cover art")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("cover art request returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// CoverURL builds the artwork URL the server serves for a cover
// identifier.
func (c *Client) CoverURL(coverID string) string {
	return fmt.Sprintf("http://%s:%d/music/%s/cover.jpg", c.host, c.port, coverID)
}
