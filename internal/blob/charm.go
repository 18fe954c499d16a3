// ABOUTME: Charm Cloud blob store using the transactional KV Do API
// ABOUTME: Short-lived connections per operation to avoid lock contention

package blob

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/charm/kv"
)

const (
	// DefaultCharmHost is used when CHARM_HOST is not set.
	DefaultCharmHost = "charm.2389.dev"

	// DBName is the name of the charm kv database for skein.
	DBName = "skein"
)

// CharmStore implements Store on top of Charm Cloud KV. It does not hold a
// persistent connection: each operation opens the database, performs the
// operation, and closes it.
type CharmStore struct {
	dbName   string
	autoSync bool
}

// NewCharmStore creates a Charm-backed blob store.
func NewCharmStore() (*CharmStore, error) {
	if os.Getenv("CHARM_HOST") == "" {
		os.Setenv("CHARM_HOST", DefaultCharmHost)
	}

	return &CharmStore{
		dbName:   DBName,
		autoSync: true,
	}, nil
}

// NewCharmStoreWithDBName creates a store against a custom database name.
// Use this when you need isolated test databases.
func NewCharmStoreWithDBName(dbName string, autoSync bool) *CharmStore {
	return &CharmStore{dbName: dbName, autoSync: autoSync}
}

func (c *CharmStore) do(fn func(k *kv.KV) error) error {
	return kv.Do(c.dbName, func(k *kv.KV) error {
		if err := fn(k); err != nil {
			return err
		}
		if c.autoSync {
			return k.Sync()
		}
		return nil
	})
}

// Upload stores data under name, replacing any existing blob.
func (c *CharmStore) Upload(name string, data []byte) error {
	err := c.do(func(k *kv.KV) error {
		return k.Set([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

// Download returns the blob stored under name, or ErrNotExist.
func (c *CharmStore) Download(name string) ([]byte, error) {
	var data []byte
	err := kv.DoReadOnly(c.dbName, func(k *kv.KV) error {
		var err error
		data, err = k.Get([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	if data == nil {
		return nil, ErrNotExist
	}
	return data, nil
}

// List returns the names of all blobs starting with prefix, sorted.
func (c *CharmStore) List(prefix string) ([]string, error) {
	var names []string
	err := kv.DoReadOnly(c.dbName, func(k *kv.KV) error {
		keys, err := k.Keys()
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}
		for _, key := range keys {
			name := string(key)
			if strings.HasPrefix(name, prefix) {
				names = append(names, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the blob under name.
func (c *CharmStore) Delete(name string) error {
	return c.do(func(k *kv.KV) error {
		return k.Delete([]byte(name))
	})
}
