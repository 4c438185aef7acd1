package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/agentstation/wsi/pkg/errors"
)

// do sends one request and decodes a JSON answer into target when it is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, target any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.WrapParse("json", "request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.WrapResource("create", "request", method+" "+path, err)
	}
	c.auth.Apply(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("WSI request")
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return errors.Join(errors.ErrTimeout, ctxErr)
			}
			return errors.Join(errors.ErrCanceled, ctxErr)
		}
		return errors.WrapTransport(method, path, err)
	}
	return c.decodeResponse(resp, path, target)
}

// decodeResponse checks the status and decodes the JSON body into target.
func (c *Client) decodeResponse(resp *http.Response, path string, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn().Err(err).Str("path", path).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewAPIError(path, resp.StatusCode, string(bytes.TrimSpace(body)))
	}

	if target == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", path, err)
	}
	return nil
}
