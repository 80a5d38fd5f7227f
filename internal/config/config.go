// Package config loads the static cluster membership a node needs to
// start: its own id, its peers, and where to reach them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/senutpal/quorum/internal/paxos"
)

// Peer names one other cluster member and its listen address.
type Peer struct {
	ID   uint32 `yaml:"id"`
	Addr string `yaml:"addr"`
}

// Cluster is the static membership of a Multi-Paxos cluster, as loaded
// from a YAML file.
type Cluster struct {
	Self   uint32 `yaml:"self"`
	Listen string `yaml:"listen"`
	Peers  []Peer `yaml:"peers"`
}

// Load reads and parses a Cluster from a YAML file at path.
func Load(path string) (*Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var c Cluster
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &c, nil
}

func (c *Cluster) validate() error {
	for _, p := range c.Peers {
		if p.ID == c.Self {
			return fmt.Errorf("peer %d duplicates self", p.ID)
		}
		if p.Addr == "" {
			return fmt.Errorf("peer %d has no addr", p.ID)
		}
	}
	return nil
}

// PeerIDs returns the configured peer node ids, in file order.
func (c *Cluster) PeerIDs() []paxos.NodeId {
	out := make([]paxos.NodeId, len(c.Peers))
	for i, p := range c.Peers {
		out[i] = paxos.NodeId(p.ID)
	}
	return out
}

// Addr returns the listen address configured for peer id, or ok=false if
// id is not a known peer.
func (c *Cluster) Addr(id paxos.NodeId) (string, bool) {
	for _, p := range c.Peers {
		if paxos.NodeId(p.ID) == id {
			return p.Addr, true
		}
	}
	return "", false
}

// Configuration builds the paxos.Configuration for this cluster, sized
// for the standard majority quorum.
func (c *Cluster) Configuration() paxos.Configuration {
	return paxos.MajorityConfiguration(paxos.NodeId(c.Self), c.PeerIDs())
}
