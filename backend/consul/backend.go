// Package consul implements a backend over the HashiCorp Consul KV store.
//
// Files are stored as KV pairs; directories are virtual and exist only as
// key prefixes. Consul limits values to 512KB, so this backend suits
// configuration files and small assets rather than bulk storage.
package consul

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/consul/api"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

type ConsulBackend struct {
	client *api.Client
	kv     *api.KV

	config *Config
}

// Config contains configuration options for the Consul backend.
type Config struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Prefix for all keys in Consul KV (default: "/")
	Prefix string
}

// NewConsulBackend creates a new Consul-backed storage backend.
func NewConsulBackend(config *Config) (*ConsulBackend, error) {
	if config == nil {
		config = &Config{}
	}

	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}
	if config.Prefix == "" {
		config.Prefix = "/"
	}

	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &ConsulBackend{
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

// Name returns the identifier name defined for this backend.
func (*ConsulBackend) Name() string {
	return "consul"
}

// Open is part of the lifecycle behaviour and gets called when the backend is mounted.
func (cb *ConsulBackend) Open(ctx context.Context) error {
	// A single read verifies connectivity and ACL access.
	if _, _, err := cb.kv.Keys(cb.keyPrefix(), "/", requestOptions(ctx)); err != nil {
		return fmt.Errorf("%w: %s", data.ErrMountFailed, err)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when the backend is unmounted.
func (cb *ConsulBackend) Close(ctx context.Context) error {
	// Nothing to clean up - the Consul client is stateless.
	return nil
}

// Capabilities returns the capabilities supported by this backend.
func (cb *ConsulBackend) Capabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
			backend.CapabilityPersistent,
		},
		// Consul KV limits values to 512KB; stay slightly below it.
		MaxObjectSize: 500 * 1024,
	}
}

// buildKey maps a backend-relative virtual path onto a Consul KV key.
// Directories drop their trailing slash since they never materialize.
func (cb *ConsulBackend) buildKey(path data.VirtualPath) string {
	key := strings.Trim(path.String(), "/")

	if cb.config.Prefix == "/" {
		return key
	}

	prefix := strings.Trim(cb.config.Prefix, "/") + "/"
	if key == "" {
		return prefix
	}

	return prefix + key
}

// keyPrefix returns the listing prefix for the backend root.
func (cb *ConsulBackend) keyPrefix() string {
	if cb.config.Prefix == "/" {
		return ""
	}

	return strings.Trim(cb.config.Prefix, "/") + "/"
}

func requestOptions(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{}).WithContext(ctx)
}

func writeOptions(ctx context.Context) *api.WriteOptions {
	return (&api.WriteOptions{}).WithContext(ctx)
}
