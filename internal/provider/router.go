package provider

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/keypool"
)

// httpTimeout bounds connection establishment and the wait for response
// headers on every provider HTTP request. It must not live on
// http.Client.Timeout: that deadline covers reading Response.Body too,
// which would sever any streaming completion running longer than it.
const httpTimeout = 30 * time.Second

// newHTTPClient builds the shared provider client with per-operation
// timeouts on the transport, leaving the streaming body read unbounded.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: httpTimeout,
			}).DialContext,
			TLSHandshakeTimeout:   httpTimeout,
			ResponseHeaderTimeout: httpTimeout,
		},
	}
}

// routeEntry is one row of the router's model-prefix dispatch table.
type routeEntry struct {
	prefix      string
	providerKey string // scopes the key pool, e.g. "anthropic", "openai", "xai"
	baseURL     string // only meaningful for the OpenAI-compatible transport
	kind        string // "anthropic" | "openai" | "gemini"
}

// table is matched top-to-bottom, case-sensitive prefix, first hit wins.
var table = []routeEntry{
	{prefix: "claude", providerKey: "anthropic", kind: "anthropic"},
	{prefix: "gpt", providerKey: "openai", baseURL: "https://api.openai.com/v1", kind: "openai"},
	{prefix: "o1", providerKey: "openai", baseURL: "https://api.openai.com/v1", kind: "openai"},
	{prefix: "o3", providerKey: "openai", baseURL: "https://api.openai.com/v1", kind: "openai"},
	{prefix: "deepseek", providerKey: "deepseek", baseURL: "https://api.deepseek.com/v1", kind: "openai"},
	{prefix: "gemini", providerKey: "google", kind: "gemini"},
	{prefix: "grok", providerKey: "xai", baseURL: "https://api.x.ai/v1", kind: "openai"},
	{prefix: "qwen", providerKey: "qwen", baseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", kind: "openai"},
}

// Router selects a Transport by model-name prefix and owns one KeyPool per
// provider key, built lazily from comma-split, trimmed API-key strings
// supplied by configuration.
type Router struct {
	apiKeys map[string]string // providerKey -> raw (possibly comma-separated) key string
	pools   map[string]*keypool.Pool
	client  *http.Client
}

// NewRouter builds a Router from a provider-key -> comma-separated-keys
// map, as read from configuration's api_keys field.
func NewRouter(apiKeys map[string]string) *Router {
	return &Router{
		apiKeys: apiKeys,
		pools:   make(map[string]*keypool.Pool),
		client:  newHTTPClient(),
	}
}

// poolFor returns (creating if necessary) the key pool for a provider key.
// r.pools is written without a lock: turns on one agent are serialized,
// so the Router only ever sees one Resolve at a time.
func (r *Router) poolFor(providerKey string) (*keypool.Pool, error) {
	if p, ok := r.pools[providerKey]; ok {
		return p, nil
	}
	raw, ok := r.apiKeys[providerKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, &kerrors.ConfigError{Message: "no api key configured for provider " + providerKey}
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, &kerrors.ConfigError{Message: "no api key configured for provider " + providerKey}
	}
	p := keypool.New(keys)
	r.pools[providerKey] = p
	return p, nil
}

// Resolve picks a Transport for model by case-sensitive prefix match. An
// unrecognized model yields *kerrors.ConfigError("unsupported model").
func (r *Router) Resolve(model string) (Transport, error) {
	for _, e := range table {
		if strings.HasPrefix(model, e.prefix) {
			pool, err := r.poolFor(e.providerKey)
			if err != nil {
				return nil, err
			}
			switch e.kind {
			case "anthropic":
				return &AnthropicTransport{pool: pool, client: r.client}, nil
			case "openai":
				return &OpenAITransport{pool: pool, client: r.client, baseURL: e.baseURL}, nil
			case "gemini":
				return &GeminiTransport{pool: pool, client: r.client}, nil
			}
		}
	}
	return nil, &kerrors.ConfigError{Message: "unsupported model"}
}
