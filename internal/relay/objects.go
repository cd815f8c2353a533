package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrStore indicates the object could not be written.
var ErrStore = errors.New("object store write failed")

// ObjectStore persists uploaded CSV objects.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
}

// DirStore writes objects as files under a root directory.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at root.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Put implements ObjectStore.
func (d *DirStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

// Get reads an object back.
func (d *DirStore) Get(key string) ([]byte, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (d *DirStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: key %q escapes root", ErrStore, key)
	}
	return filepath.Join(d.root, clean), nil
}

// NATSStore writes objects into a JetStream object store bucket.
type NATSStore struct {
	obj nats.ObjectStore
}

// NewNATSStore binds to bucket, creating it when missing.
func NewNATSStore(nc *nats.Conn, bucket string) (*NATSStore, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	obj, err := js.ObjectStore(bucket)
	if err != nil {
		obj, err = js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "motorqc CSV exports",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create object store %q: %w", bucket, err)
		}
	}
	return &NATSStore{obj: obj}, nil
}

// Put implements ObjectStore.
func (n *NATSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.obj.PutBytes(key, data); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

// Get reads an object back.
func (n *NATSStore) Get(key string) ([]byte, error) {
	return n.obj.GetBytes(key)
}

// ForwardStore hands the CSV to an upstream API gateway as base64 JSON.
type ForwardStore struct {
	url    string
	apiKey string
	client *http.Client
}

// ForwardOption configures a ForwardStore.
type ForwardOption func(*ForwardStore)

// WithAPIKey sends key in the x-api-key header.
func WithAPIKey(key string) ForwardOption {
	return func(f *ForwardStore) { f.apiKey = key }
}

// NewForwardStore creates a ForwardStore posting to url.
func NewForwardStore(url string, timeout time.Duration, opts ...ForwardOption) *ForwardStore {
	f := &ForwardStore{url: url, client: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type forwardRequest struct {
	CSVBase64 string `json:"csv_base64"`
	Key       string `json:"key"`
}

// Put implements ObjectStore. A non-2xx upstream response is a failure.
func (f *ForwardStore) Put(ctx context.Context, key string, data []byte) error {
	body, err := json.Marshal(forwardRequest{
		CSVBase64: base64.StdEncoding.EncodeToString(data),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("marshaling forward request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("x-api-key", f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: upstream returned %d", ErrStore, resp.StatusCode)
	}
	return nil
}
