package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Peer identifies one node of the cluster.
type Peer struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr"`
}

// Config holds the node configuration. Cluster membership is fixed at
// startup: every peer hosts the acceptor, storage-node and learner
// services, and the quorum size is derived from the full member count.
type Config struct {
	NodeID     string `yaml:"node_id"`
	ListenAddr string `yaml:"listen"`
	Peers      []Peer `yaml:"peers"`
}

// Load reads a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &c, nil
}

// ParsePeers parses a comma-separated list of peers in the format:
// "id1=addr1,id2=addr2,id3=addr3"
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		id := strings.TrimSpace(kv[0])
		addr := strings.TrimSpace(kv[1])

		if id == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		peers = append(peers, Peer{
			ID:   id,
			Addr: addr,
		})
	}

	return peers, nil
}

// Validate checks the configuration for use by a node.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	seen := map[string]bool{}
	for _, p := range c.Peers {
		if p.ID == "" || p.Addr == "" {
			return fmt.Errorf("peer ID and address cannot be empty: %+v", p)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate peer ID: %s", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Cluster returns the full membership as id -> address, self included.
// The map's size is the cluster size N used for quorum computation; it
// must not change for the process lifetime.
func (c *Config) Cluster() map[string]string {
	members := map[string]string{c.NodeID: c.ListenAddr}
	for _, p := range c.Peers {
		if p.ID != c.NodeID {
			members[p.ID] = p.Addr
		}
	}
	return members
}
