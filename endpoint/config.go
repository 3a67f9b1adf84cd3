// File: endpoint/config.go
// Author: momentics <momentics@gmail.com>

package endpoint

import "time"

// Config is the strongly-typed configuration record the spec's
// design notes call for in place of reflective property injection
// (spec §9). Every CLI/config knob named in spec §6 has a field here.
type Config struct {
	Address string
	Port    int

	AcceptCount           int
	MaxConnections        int
	ConnectionTimeout     time.Duration
	KeepAliveTimeout      time.Duration
	MaxKeepAliveRequests  int

	SelectorTimeout      time.Duration
	PollerThreadPriority int
	PollerCPUAffinity    int // -1 leaves scheduling to the Go runtime

	ProcessorCache  int
	EventCache      int
	BufferPoolCache int

	AppReadBufSize  int
	AppWriteBufSize int
	DirectBuffer    bool

	SSLEnabled        bool
	SSLProtocols      []string
	KeystoreFile      string
	KeystorePassword  string
	ClientAuth        string

	MaxHTTPHeaderSize  int
	RejectIllegalHeader bool

	WorkerThreads int
}

// DefaultConfig mirrors the teacher's DefaultConfig pattern
// (server/options.go): every field has a sane, explicit default
// instead of relying on Go zero values to mean something sensible.
func DefaultConfig() Config {
	return Config{
		Address:              "0.0.0.0",
		Port:                 8080,
		AcceptCount:          100,
		MaxConnections:       8192,
		ConnectionTimeout:    20 * time.Second,
		KeepAliveTimeout:     60 * time.Second,
		MaxKeepAliveRequests: 100,
		SelectorTimeout:      1 * time.Second,
		PollerThreadPriority: 0,
		PollerCPUAffinity:    -1,
		ProcessorCache:       512,
		EventCache:           512,
		BufferPoolCache:      512,
		AppReadBufSize:       8 * 1024,
		AppWriteBufSize:      8 * 1024,
		DirectBuffer:         false,
		MaxHTTPHeaderSize:    8 * 1024,
		RejectIllegalHeader:  false,
		WorkerThreads:        64,
	}
}

// Option follows the teacher's functional-options pattern
// (server/options.go's ServerOption).
type Option func(*Config)

func WithAddress(addr string, port int) Option {
	return func(c *Config) { c.Address = addr; c.Port = port }
}

func WithMaxConnections(n int) Option {
	return func(c *Config) { c.MaxConnections = n }
}

func WithTimeouts(connection, keepAlive time.Duration) Option {
	return func(c *Config) { c.ConnectionTimeout = connection; c.KeepAliveTimeout = keepAlive }
}

func WithTLS(keystoreFile, keystorePassword string, protocols []string, clientAuth string) Option {
	return func(c *Config) {
		c.SSLEnabled = true
		c.KeystoreFile = keystoreFile
		c.KeystorePassword = keystorePassword
		c.SSLProtocols = protocols
		c.ClientAuth = clientAuth
	}
}

func WithWorkerThreads(n int) Option {
	return func(c *Config) { c.WorkerThreads = n }
}

func WithMaxHTTPHeaderSize(n int) Option {
	return func(c *Config) { c.MaxHTTPHeaderSize = n }
}
