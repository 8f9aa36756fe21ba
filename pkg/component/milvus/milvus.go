// Package milvus wraps the Milvus SDK client with connection management.
package milvus

import (
	"context"
	"fmt"
	"sync"

	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/ragx/pkg/options/milvus"
)

var (
	clientsMu sync.Mutex
	clients   = make(map[string]*Client)
)

// GetOrNew returns the process-wide client for the configured address,
// connecting on first use.
func GetOrNew(opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	clientsMu.Lock()
	defer clientsMu.Unlock()
	if c, ok := clients[opts.Address]; ok {
		return c, nil
	}
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	clients[opts.Address] = c
	return c, nil
}

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// RawClient returns the underlying Milvus client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}

// Database returns the configured database name.
func (c *Client) Database() string {
	return c.opts.Database
}

// HasCollection reports whether the named collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// Ping verifies connectivity by listing collections.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	if _, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption()); err != nil {
		return fmt.Errorf("milvus ping failed: %w", err)
	}
	return nil
}
