package consul

import (
	"testing"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

// The Consul client does not dial at construction, so everything up to the
// first KV call is testable without a server.

func TestNewConsulBackend_Defaults(t *testing.T) {
	cb, err := NewConsulBackend(nil)
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	if cb.Name() != "consul" {
		t.Errorf("Name() = %q", cb.Name())
	}
	if cb.config.Address != "127.0.0.1:8500" {
		t.Errorf("Default address = %q", cb.config.Address)
	}
	if cb.config.Prefix != "/" {
		t.Errorf("Default prefix = %q", cb.config.Prefix)
	}

	caps := cb.Capabilities()
	if !caps.Contains(backend.CapabilityStorage) || !caps.Contains(backend.CapabilityPersistent) {
		t.Error("Backend must advertise storage and persistence")
	}
	if caps.MaxObjectSize != 500*1024 {
		t.Errorf("MaxObjectSize = %d, want the KV value cap", caps.MaxObjectSize)
	}
}

func TestConsulBackend_KeyMapping(t *testing.T) {
	cases := []struct {
		prefix string
		path   string
		key    string
	}{
		{"/", "/a/b.txt", "a/b.txt"},
		{"/", "/a/b/", "a/b"},
		{"/", "/", ""},
		{"apps/vfs", "/a/b.txt", "apps/vfs/a/b.txt"},
		{"apps/vfs/", "/a/b/", "apps/vfs/a/b"},
		{"apps/vfs", "/", "apps/vfs/"},
	}

	for _, c := range cases {
		cb, err := NewConsulBackend(&Config{Prefix: c.prefix})
		if err != nil {
			t.Fatalf("Failed to create backend: %v", err)
		}

		if got := cb.buildKey(data.MustParse(c.path)); got != c.key {
			t.Errorf("buildKey(%q) with prefix %q = %q, want %q", c.path, c.prefix, got, c.key)
		}
	}
}

func TestConsulBackend_ListPrefix(t *testing.T) {
	cb, err := NewConsulBackend(&Config{Prefix: "apps/vfs"})
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	if got := cb.listPrefix(data.RootPath); got != "apps/vfs/" {
		t.Errorf("listPrefix(/) = %q", got)
	}
	if got := cb.listPrefix(data.MustParse("/a/b/")); got != "apps/vfs/a/b/" {
		t.Errorf("listPrefix(/a/b/) = %q", got)
	}

	flat, err := NewConsulBackend(nil)
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	if got := flat.listPrefix(data.RootPath); got != "" {
		t.Errorf("listPrefix(/) without prefix = %q", got)
	}
}
