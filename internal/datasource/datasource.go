// Package datasource executes the queries behind an app's api nodes. Each
// api names a connector ("rest", "static") in its dataSource attribute and
// carries the connector-specific query in its query attribute.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/core"
)

var (
	// ErrUnknownConnector is returned for an unregistered dataSource.
	ErrUnknownConnector = errors.New("unknown data source")
	// ErrInvalidQuery is returned when an api's query attribute is malformed.
	ErrInvalidQuery = errors.New("invalid query")
)

// Request is one execution of an api.
type Request struct {
	API        *appdom.Node
	Connection *appdom.Node
	Query      map[string]any
	Params     map[string]any
}

// Connector runs requests for one kind of data source.
type Connector interface {
	Exec(ctx context.Context, req Request) (any, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, req Request) (any, error)

func (f ConnectorFunc) Exec(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Registry maps data source ids to connectors.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry returns a registry with the rest and static connectors.
func NewRegistry() *Registry {
	r := &Registry{connectors: make(map[string]Connector)}
	r.Register("rest", NewRESTConnector(nil))
	r.Register("static", StaticConnector{})
	return r
}

// Register adds or replaces a connector.
func (r *Registry) Register(id string, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[id] = c
}

// Get returns the connector registered under id.
func (r *Registry) Get(id string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[id]
	return c, ok
}

// IDs returns the registered connector ids in ascending order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.connectors))
	for id := range r.connectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DocumentSource loads the document of an app version.
type DocumentSource interface {
	Load(ctx context.Context, appID, version string) (*appdom.Document, error)
}

// Executor runs api nodes of stored documents.
type Executor struct {
	Docs     DocumentSource
	Registry *Registry
}

// Execute runs api apiID of appID at version with params.
func (e *Executor) Execute(ctx context.Context, appID, version, apiID string, params map[string]any) (any, error) {
	doc, err := e.Docs.Load(ctx, appID, version)
	if err != nil {
		return nil, err
	}
	return e.ExecuteIn(ctx, doc, apiID, params)
}

// ExecuteIn runs api apiID of doc with params.
func (e *Executor) ExecuteIn(ctx context.Context, doc *appdom.Document, apiID string, params map[string]any) (any, error) {
	api, err := doc.NodeOfType(appdom.NodeID(apiID), appdom.TypeAPI)
	if err != nil {
		return nil, err
	}
	source := api.StringAttribute("dataSource")
	registry := e.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	conn, ok := registry.Get(source)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownConnector, source)
	}

	req := Request{API: api, Params: params}
	if raw, ok := api.ConstAttribute("query"); ok && raw != nil {
		query, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: api %s query is not an object", ErrInvalidQuery, apiID)
		}
		req.Query = query
	}
	if id := api.StringAttribute("connectionId"); id != "" {
		req.Connection, err = doc.NodeOfType(appdom.NodeID(id), appdom.TypeConnection)
		if err != nil {
			return nil, err
		}
	}
	return conn.Exec(ctx, req)
}

// LocalFetcher serves page queries in process, without the HTTP endpoint.
type LocalFetcher struct {
	Executor *Executor
}

// Fetch parses the app and version out of dataURL and executes apiID.
func (f *LocalFetcher) Fetch(ctx context.Context, dataURL, apiID string, params map[string]any) (any, error) {
	appID, version, err := ParseDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	return f.Executor.Execute(ctx, appID, version, apiID, params)
}

// ParseDataURL splits "/data/<app>/<version>/" into its parts.
func ParseDataURL(dataURL string) (appID, version string, err error) {
	parts := strings.Split(strings.Trim(dataURL, "/"), "/")
	if len(parts) != 3 || parts[0] != "data" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("malformed data url %q", dataURL)
	}
	if appID, err = url.PathUnescape(parts[1]); err != nil {
		return "", "", fmt.Errorf("malformed data url %q: %w", dataURL, err)
	}
	if version, err = url.PathUnescape(parts[2]); err != nil {
		return "", "", fmt.Errorf("malformed data url %q: %w", dataURL, err)
	}
	if core.DataURL(appID, version) != dataURL {
		return "", "", fmt.Errorf("malformed data url %q", dataURL)
	}
	return appID, version, nil
}
