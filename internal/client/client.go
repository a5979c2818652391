// Package client builds authenticated outbound OCPI calls to registered
// peers. A Client closes over one peer's current remote token and resolved
// endpoint map; the Dispatcher caches clients per identity and is
// invalidated by the handshake engine whenever a token rotates.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ocpigw/pkg/ocpi"
)

// Client talks to a single registered peer. It is immutable after
// construction: a token rotation produces a new Client via the Dispatcher,
// never a mutation of an existing one.
type Client struct {
	ref       ocpi.PartyRef
	token     ocpi.AccessToken
	endpoints map[ocpi.ModuleID]string
	http      *http.Client
}

// Ref returns the peer identity this client calls.
func (c *Client) Ref() ocpi.PartyRef {
	return c.ref
}

// Endpoint resolves the base URL the peer advertised for a module.
func (c *Client) Endpoint(module ocpi.ModuleID) (string, error) {
	url, ok := c.endpoints[module]
	if !ok {
		return "", fmt.Errorf("peer %s advertises no %s endpoint", c.ref, module)
	}
	return url, nil
}

// Get fetches a module resource and decodes the envelope data into out.
// path is appended to the peer's module endpoint; pass "" for the root.
func (c *Client) Get(ctx context.Context, module ocpi.ModuleID, path string, out any) error {
	return c.do(ctx, http.MethodGet, module, path, nil, out)
}

// Post sends body to a module resource.
func (c *Client) Post(ctx context.Context, module ocpi.ModuleID, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, module, path, body, out)
}

// Put replaces a module resource.
func (c *Client) Put(ctx context.Context, module ocpi.ModuleID, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, module, path, body, out)
}

// Delete removes a module resource.
func (c *Client) Delete(ctx context.Context, module ocpi.ModuleID, path string) error {
	return c.do(ctx, http.MethodDelete, module, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method string, module ocpi.ModuleID, path string, body, out any) error {
	base, err := c.Endpoint(module)
	if err != nil {
		return err
	}
	url := base
	if path != "" {
		url = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, module, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, module, err)
	}
	req.Header.Set("Authorization", "Token "+string(c.token))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s at %s: %w", method, module, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, module, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &PeerError{Ref: c.ref, Module: module, HTTPStatus: resp.StatusCode}
	}
	if out == nil {
		return nil
	}

	var envelope ocpi.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s %s envelope: %w", method, module, err)
	}
	if envelope.StatusCode != ocpi.StatusSuccess {
		return &PeerError{
			Ref:        c.ref,
			Module:     module,
			HTTPStatus: resp.StatusCode,
			OCPIStatus: envelope.StatusCode,
			Message:    envelope.StatusMessage,
		}
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, module, err)
	}
	return nil
}

// PeerError is a refusal from the peer: either a non-2xx transport status or
// a non-success envelope status_code. HTTPStatus is always set — by
// construction a PeerError means we did talk to the network.
type PeerError struct {
	Ref        ocpi.PartyRef
	Module     ocpi.ModuleID
	HTTPStatus int
	OCPIStatus int
	Message    string
}

func (e *PeerError) Error() string {
	if e.OCPIStatus != 0 {
		return fmt.Sprintf("peer %s refused %s call: HTTP %d, status_code %d: %s", e.Ref, e.Module, e.HTTPStatus, e.OCPIStatus, e.Message)
	}
	return fmt.Sprintf("peer %s refused %s call: HTTP %d", e.Ref, e.Module, e.HTTPStatus)
}
