package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// ResolveResponse routes a dispatch result to a payload or an error. A
// response succeeds when its status is not a registered error code and is
// below 400; the payload is then found under the request data key.
// Otherwise the error is built from the registered factory for the status,
// or the general one.
func (c *Client) ResolveResponse(req *Request, resp *Response) (any, error) {
	_, registered := c.errorCodes[resp.StatusCode]
	if !registered && resp.StatusCode < 400 {
		if fr, ok := resp.Body.(*FileResponse); ok {
			return fr, nil
		}
		payload, ok := walkPath(resp.Body, req.DataKey)
		if !ok {
			return nil, newDetailedError(msgResponseParse, req, resp, c.stringify, ErrResponseParse)
		}
		return payload, nil
	}

	body := resp.Body
	if fr, ok := body.(*FileResponse); ok {
		// Streamed error bodies are not inspected.
		_ = fr.Close()
		body = nil
	}

	raw, ok := walkPath(body, c.errorKey)
	if !ok {
		return nil, newDetailedError(msgResponseParse, req, resp, c.stringify, ErrResponseParse)
	}
	message := c.messageText(raw)

	if c.forceDetailed {
		return nil, newDetailedError(message, req, resp, c.stringify, nil)
	}
	factory, ok := c.errorCodes[resp.StatusCode]
	if !ok {
		factory = c.generalError
	}
	if factory == nil {
		if c.detailed {
			return nil, newDetailedError(message, req, resp, c.stringify, nil)
		}
		factory = defaultErrorFactory
	}
	if strings.TrimSpace(message) == "" {
		message = statusMessage(resp.StatusCode)
	}
	return nil, factory(&APIError{
		Status:   resp.StatusCode,
		Message:  message,
		Request:  req,
		Response: resp,
	})
}

// statusMessage stands in for a blank error message.
func statusMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", code)
}

// messageText renders an error message payload. Strings pass through and
// anything else is encoded with the serializer.
func (c *Client) messageText(v any) string {
	switch m := v.(type) {
	case nil:
		return ""
	case string:
		return m
	case []string:
		if len(m) == 1 {
			return m[0]
		}
	}
	enc, err := c.serializer.Encode(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(enc)
}

// walkPath follows keys through nested maps. A body that is not a map is
// returned unchanged, as is any body when keys is empty. The boolean is
// false when a key is missing or a non-map is met partway.
func walkPath(body any, keys []string) (any, bool) {
	if !isMapping(body) {
		return body, true
	}
	cur := body
	for i, key := range keys {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			cur = v
		case url.Values:
			vs, ok := m[key]
			if !ok {
				return nil, false
			}
			if i == len(keys)-1 && len(vs) > 1 {
				cur = slices.Clone(vs)
			} else {
				cur = m.Get(key)
			}
		default:
			return nil, false
		}
	}
	return cur, true
}

func isMapping(v any) bool {
	switch v.(type) {
	case map[string]any, url.Values:
		return true
	default:
		return false
	}
}
