package schema_registry

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Aleph-Alpha/schemawatch/v1/observability"
)

var (
	// ErrNotFound is returned for unknown subjects, versions and ids.
	ErrNotFound = errors.New("schema registry: not found")

	// ErrUnavailable wraps transport failures and 5xx answers.
	ErrUnavailable = errors.New("schema registry: unavailable")
)

// Registry is the read side of a Confluent-compatible schema registry.
type Registry interface {
	ListSubjects(ctx context.Context) ([]string, error)
	GetLatestSchema(ctx context.Context, subject string) (*Metadata, error)
	GetSchemaByVersion(ctx context.Context, subject string, version int) (*Metadata, error)
	GetSchemaByID(ctx context.Context, id int) (string, error)
}

// Metadata describes one registered schema.
type Metadata struct {
	ID      int    `json:"id"`
	Version int    `json:"version"`
	Schema  string `json:"schema"`
	Subject string `json:"subject"`
	Type    string `json:"schemaType,omitempty"`
}

// Client talks to the registry over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	username   string
	password   string
	observer   observability.Observer

	// schemas by id never change, so they are cached forever
	schemaCache      map[int]string
	schemaCacheMutex sync.RWMutex
}

type Config struct {
	// URL is the registry endpoint, e.g. http://localhost:8081. Empty disables
	// the registry in FXModule.
	URL      string        `yaml:"url" envconfig:"SCHEMA_REGISTRY_URL"`
	Username string        `yaml:"username" envconfig:"SCHEMA_REGISTRY_USERNAME"`
	Password string        `yaml:"password" envconfig:"SCHEMA_REGISTRY_PASSWORD"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"SCHEMA_REGISTRY_TIMEOUT"`
}

func NewClient(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("schema registry URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		url:         strings.TrimSuffix(config.URL, "/"),
		httpClient:  &http.Client{Timeout: config.Timeout},
		username:    config.Username,
		password:    config.Password,
		schemaCache: make(map[int]string),
	}, nil
}

func (c *Client) WithObserver(observer observability.Observer) *Client {
	c.observer = observer
	return c
}

// ListSubjects returns every subject known to the registry.
func (c *Client) ListSubjects(ctx context.Context) ([]string, error) {
	var subjects []string
	if err := c.get(ctx, "list_subjects", "", "/subjects", &subjects); err != nil {
		return nil, err
	}
	if subjects == nil {
		subjects = []string{}
	}
	return subjects, nil
}

func (c *Client) GetLatestSchema(ctx context.Context, subject string) (*Metadata, error) {
	return c.getVersion(ctx, subject, "latest")
}

func (c *Client) GetSchemaByVersion(ctx context.Context, subject string, version int) (*Metadata, error) {
	return c.getVersion(ctx, subject, fmt.Sprint(version))
}

func (c *Client) getVersion(ctx context.Context, subject, version string) (*Metadata, error) {
	var metadata Metadata
	path := fmt.Sprintf("/subjects/%s/versions/%s", url.PathEscape(subject), version)
	if err := c.get(ctx, "get_version", subject, path, &metadata); err != nil {
		return nil, err
	}
	metadata.Subject = subject
	c.cache(metadata.ID, metadata.Schema)
	return &metadata, nil
}

// GetSchemaByID returns the schema text registered under id.
func (c *Client) GetSchemaByID(ctx context.Context, id int) (string, error) {
	c.schemaCacheMutex.RLock()
	schema, ok := c.schemaCache[id]
	c.schemaCacheMutex.RUnlock()
	if ok {
		return schema, nil
	}

	var result struct {
		Schema string `json:"schema"`
	}
	if err := c.get(ctx, "get_by_id", fmt.Sprint(id), fmt.Sprintf("/schemas/ids/%d", id), &result); err != nil {
		return "", err
	}
	c.cache(id, result.Schema)
	return result.Schema, nil
}

// ResolveSchemaID returns the id of the latest registry schema for subject.
func (c *Client) ResolveSchemaID(ctx context.Context, subject string) (int, error) {
	metadata, err := c.GetLatestSchema(ctx, subject)
	if err != nil {
		return 0, err
	}
	return metadata.ID, nil
}

func (c *Client) cache(id int, schema string) {
	c.schemaCacheMutex.Lock()
	c.schemaCache[id] = schema
	c.schemaCacheMutex.Unlock()
}

func (c *Client) get(ctx context.Context, op, resource, path string, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveOperation(observability.OperationContext{
				Component:   "schema_registry",
				Operation:   op,
				Resource:    c.url,
				SubResource: resource,
				Duration:    time.Since(start),
				Error:       err,
			})
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/vnd.schemaregistry.v1+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("schema registry returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// EncodeSchemaID encodes a schema ID in the Confluent wire format:
// magic byte 0x0 followed by the big-endian uint32 id.
func EncodeSchemaID(schemaID int) []byte {
	buf := make([]byte, 5)
	buf[0] = 0x0
	binary.BigEndian.PutUint32(buf[1:], uint32(schemaID))
	return buf
}

// DecodeSchemaID splits a Confluent-framed payload into schema id and body.
func DecodeSchemaID(data []byte) (int, []byte, error) {
	if len(data) < 5 {
		return 0, nil, fmt.Errorf("data too short: expected at least 5 bytes, got %d", len(data))
	}
	if data[0] != 0x0 {
		return 0, nil, fmt.Errorf("invalid magic byte: expected 0x0, got 0x%x", data[0])
	}
	return int(binary.BigEndian.Uint32(data[1:5])), data[5:], nil
}
