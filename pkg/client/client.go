// Package client implements the sectorfs client core functionality.
package client

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/example/sectorfs/pkg/api"
)

// Config contains the client configuration options.
type Config struct {
	// ServerAddress is the address of the sectorfs server (e.g. "localhost:5649")
	ServerAddress string

	// Timeout is the default timeout for RPC operations
	Timeout time.Duration

	// MaxRetries is the maximum number of retries for operations
	MaxRetries int

	// RetryDelay is the initial delay between retries (multiplied by the
	// backoff factor on each attempt)
	RetryDelay time.Duration

	// BackoffFactor is the multiplier for retry delay after each attempt
	BackoffFactor float64

	// StatCacheTTL is the time-to-live for cached descriptor attributes
	StatCacheTTL time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ServerAddress: "localhost:5649",
		Timeout:       30 * time.Second,
		MaxRetries:    3,
		RetryDelay:    500 * time.Millisecond,
		BackoffFactor: 2.0,
		StatCacheTTL:  2 * time.Second,
	}
}

// Client is a connection to a sectorfs server, bound to one session so
// the server keeps a current directory and descriptor table for it.
type Client struct {
	conn      *grpc.ClientConn
	svc       api.SectorFSClient
	config    *Config
	session   uint64
	statCache *statCache
}

// New connects to a sectorfs server and starts a fresh session.
func New(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	conn, err := grpc.NewClient(
		config.ServerAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	session := binary.LittleEndian.Uint64(raw[:])
	if session == 0 {
		session = 1
	}

	return &Client{
		conn:      conn,
		svc:       api.NewSectorFSClient(conn),
		config:    config,
		session:   session,
		statCache: newStatCache(config.StatCacheTTL),
	}, nil
}

// Session returns the session id this client is bound to.
func (c *Client) Session() uint64 { return c.session }

// Close closes the client connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
