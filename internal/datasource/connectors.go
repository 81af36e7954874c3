package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/bindings"
)

// maxResponseBytes caps the body read from a REST endpoint.
const maxResponseBytes = 10 << 20

// StaticConnector returns the query's data attribute as is.
type StaticConnector struct{}

func (StaticConnector) Exec(_ context.Context, req Request) (any, error) {
	return req.Query["data"], nil
}

// RESTConnector calls an HTTP endpoint and decodes its JSON response.
//
// The query holds url, method, headers and body. {{ param }} references in
// the url are replaced by params; with GET, remaining params are sent as
// query string values. A connection node may contribute baseUrl and headers.
type RESTConnector struct {
	client *http.Client
}

// NewRESTConnector returns a connector using client, or a client with a
// 30 second timeout when nil.
func NewRESTConnector(client *http.Client) *RESTConnector {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTConnector{client: client}
}

func (c *RESTConnector) Exec(ctx context.Context, req Request) (any, error) {
	rawURL, _ := req.Query["url"].(string)
	if req.Connection != nil {
		if base := req.Connection.StringAttribute("baseUrl"); base != "" {
			rawURL = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(rawURL, "/")
		}
	}
	if rawURL == "" {
		return nil, fmt.Errorf("%w: rest query needs a url", ErrInvalidQuery)
	}

	method, _ := req.Query["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	target, used := interpolate(rawURL, req.Params)
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if method == http.MethodGet {
		q := u.Query()
		for _, k := range sortedKeys(req.Params) {
			if !used[k] {
				q.Set(k, paramString(req.Params[k]))
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if b, ok := req.Query["body"]; ok && b != nil && method != http.MethodGet {
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("%w: body: %v", ErrInvalidQuery, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Connection != nil {
		setHeaders(httpReq, req.Connection.Attribute("headers"))
	}
	if h, ok := req.Query["headers"].(map[string]any); ok {
		for k, v := range h {
			httpReq.Header.Set(k, paramString(v))
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s %s: %s", method, u.Redacted(), resp.Status)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data), nil
	}
	return out, nil
}

// interpolate replaces {{ param }} references and reports which params it used.
func interpolate(template string, params map[string]any) (string, map[string]bool) {
	used := make(map[string]bool)
	var b strings.Builder
	for _, part := range bindings.Parse(template) {
		if part.Kind == bindings.PartText {
			b.WriteString(part.Text)
			continue
		}
		used[part.Text] = true
		b.WriteString(url.PathEscape(paramString(params[part.Text])))
	}
	return b.String(), used
}

func paramString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setHeaders(r *http.Request, v *appdom.BindableValue) {
	if v == nil || v.Kind != appdom.KindConst {
		return
	}
	headers, ok := v.Value.(map[string]any)
	if !ok {
		return
	}
	for k, h := range headers {
		r.Header.Set(k, paramString(h))
	}
}
