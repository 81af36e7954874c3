package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/appdom/appdomtest"
	"github.com/pagecraft-dev/pagecraft/internal/store"
)

type fixture struct {
	srv  *Server
	http *httptest.Server
	docs *store.FileStore
	b    *appdomtest.Builder
	page *appdom.Node
	text *appdom.Node
	api  *appdom.Node
}

func newFixture(t *testing.T, basePath string) *fixture {
	t.Helper()
	f := &fixture{docs: store.NewFileStore(t.TempDir()), b: appdomtest.New(t)}
	f.page = f.b.Page("home", nil)
	f.text = f.b.Element(f.page, "children", "text", "Text", appdom.BindableValues{"value": appdom.JSExpression("1 + 1")})
	f.api = f.b.API("numbers", "static", map[string]any{"data": []any{1, 2, 3}})
	require.NoError(t, f.docs.Save(context.Background(), "shop", f.b.Doc))

	config := DefaultConfig(f.docs)
	config.BasePath = basePath
	srv, err := New(config)
	require.NoError(t, err)
	f.srv = srv
	f.http = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().Close()
		f.http.Close()
	})
	return f
}

func (f *fixture) get(t *testing.T, path string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.http.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "")
	resp, body := f.get(t, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestDataEndpoint(t *testing.T) {
	f := newFixture(t, "")

	resp, body := f.get(t, "/data/shop/preview/"+string(f.api.ID)+"?params="+url.QueryEscape(`{"page":1}`), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"data":[1,2,3]}`, body)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown query", "/data/shop/preview/nope", http.StatusNotFound},
		{"unknown app", "/data/other/preview/" + string(f.api.ID), http.StatusNotFound},
		{"query of wrong type", "/data/shop/preview/" + string(f.page.ID), http.StatusNotFound},
		{"malformed params", "/data/shop/preview/" + string(f.api.ID) + "?params=%5B", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.get(t, tt.path, nil)
			assert.Equal(t, tt.status, resp.StatusCode, body)
			var out dataResponse
			require.NoError(t, json.Unmarshal([]byte(body), &out))
			assert.NotEmpty(t, out.Error)
		})
	}
}

func TestPageEndpoint(t *testing.T) {
	f := newFixture(t, "")
	path := "/pages/shop/preview/" + string(f.page.ID) + ".js"

	resp, editor := f.get(t, path+"?editor=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, editor)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	assert.Contains(t, editor, "__editorRuntime")
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	resp, _ = f.get(t, path+"?editor=true", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	resp, prod := f.get(t, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, prod, "__editorRuntime")
	assert.NotEqual(t, etag, resp.Header.Get("ETag"))

	require.NoError(t, f.docs.Release(context.Background(), "shop", "v1"))
	resp, _ = f.get(t, "/pages/shop/v1/"+string(f.page.ID)+".js", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.get(t, "/pages/shop/preview/missing.js", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "DOC700")

	resp, _ = f.get(t, path+"?editor=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.get(t, "/pages/nope/preview/"+string(f.page.ID)+".js", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.GreaterOrEqual(t, f.srv.Compiler().Metrics().CacheHits, 1)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, "")

	req, err := http.NewRequest(http.MethodOptions, f.http.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://editor.example.com")
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://editor.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "GET")
}

func TestOriginMatching(t *testing.T) {
	assert.True(t, isOriginAllowed("https://a.example.com", []string{"*.example.com"}))
	assert.False(t, isOriginAllowed("https://example.com", []string{"*.example.com"}))
	assert.True(t, isOriginAllowed("http://localhost:5173", []string{"http://localhost:5173"}))
	assert.False(t, isOriginAllowed("http://evil.test", []string{"http://localhost:5173"}))
}

func TestBridgeOrigin(t *testing.T) {
	h := NewBridgeHub(HubConfig{AllowedOrigins: []string{"*", "https://studio.pagecraft.dev", "*.corp.example"}})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"https://127.0.0.1", true},
		{"http://[::1]:3000", true},
		{"http://pages.internal:3000", true},
		{"https://studio.pagecraft.dev", true},
		{"https://team.corp.example", true},
		{"http://localhost.attacker.example", false},
		{"http://127.0.0.1.nip.io", false},
		{"https://evil.example", false},
		{"file://localhost", false},
		{"::", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://pages.internal:3000/bridge/shop/p1", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, h.checkOrigin(r), tt.origin)
	}
}

func TestBridgeRejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, "")

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/bridge/shop/" + string(f.page.ID)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://localhost.attacker.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, f.srv.Hub().Count())
}

func TestBasePath(t *testing.T) {
	f := newFixture(t, "/pagecraft")

	resp, _ := f.get(t, "/pagecraft/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.get(t, "/healthz", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	for _, bad := range []string{"pagecraft", "/pagecraft/"} {
		assert.Error(t, ValidateBasePath(bad), bad)
	}
	assert.NoError(t, ValidateBasePath(""))
}

func TestNewRequiresDocuments(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

type frame struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *websocket.Conn, kind string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var fr frame
		require.NoError(t, conn.ReadJSON(&fr))
		if fr.Kind == kind {
			return fr
		}
	}
}

func textValue(t *testing.T, fr frame, id appdom.NodeID) any {
	t.Helper()
	var vs struct {
		Nodes map[string]struct {
			Props map[string]any `json:"props"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(fr.Payload, &vs))
	node, ok := vs.Nodes[string(id)]
	require.True(t, ok, string(fr.Payload))
	return node.Props["value"]
}

func TestBridge(t *testing.T) {
	f := newFixture(t, "")

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/bridge/shop/" + string(f.page.ID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.EqualValues(t, 2, textValue(t, readFrame(t, conn, KindViewState), f.text.ID))
	require.Eventually(t, func() bool { return f.srv.Hub().Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.b.Doc.SetNamespacedProp(f.text.ID, appdom.NamespaceProps, "value", appdom.JSExpression("2 + 3")))
	doc, err := f.b.Doc.MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Kind: KindUpdateDom, Payload: doc}))
	assert.EqualValues(t, 5, textValue(t, readFrame(t, conn, KindViewState), f.text.ID))

	require.NoError(t, conn.WriteJSON(Message{Kind: "bogus"}))
	errFrame := readFrame(t, conn, KindError)
	assert.Contains(t, string(errFrame.Payload), "unknown message kind")

	require.NoError(t, f.b.Doc.SetNamespacedProp(f.text.ID, appdom.NamespaceProps, "value", appdom.Const("saved")))
	assert.Equal(t, 1, f.srv.Hub().NotifyDocument("shop", f.b.Doc.Clone()))
	assert.Equal(t, 0, f.srv.Hub().NotifyDocument("other", f.b.Doc.Clone()))
	assert.Equal(t, "saved", textValue(t, readFrame(t, conn, KindViewState), f.text.ID))

	conn.Close()
	require.Eventually(t, func() bool { return f.srv.Hub().Count() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, "")

	listener, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
