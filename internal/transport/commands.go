package transport

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/pkg/errors"
)

// PostCommand sends one bulk event command.
func (c *Client) PostCommand(ctx context.Context, req wsi.CommandRequest) error {
	if req.CommandID == "" {
		return errors.NewValidationError("CommandId", req.CommandID, "cannot be empty")
	}
	return c.do(ctx, http.MethodPost, pathCommands, nil, req, nil)
}

// Channelize subscribes the push connection connectionID to events.
func (c *Client) Channelize(ctx context.Context, connectionID string, includeHidden bool) error {
	if connectionID == "" {
		return errors.WrapTransport("channelize", pathChannelize, errors.ErrDisconnected)
	}
	query := url.Values{"includeHiddenEvents": {strconv.FormatBool(includeHidden)}}
	return c.do(ctx, http.MethodPost, pathChannelize+"/"+url.PathEscape(connectionID), query, nil, nil)
}

// Unchannelize stops event push to connectionID.
func (c *Client) Unchannelize(ctx context.Context, connectionID string) error {
	if connectionID == "" {
		return errors.WrapTransport("unchannelize", pathUnsubscribe, errors.ErrDisconnected)
	}
	return c.do(ctx, http.MethodDelete, pathUnsubscribe+"/"+url.PathEscape(connectionID), nil, nil, nil)
}
