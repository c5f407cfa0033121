package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParsePeers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{"empty", "", 0, false},
		{"single", "n1=127.0.0.1:5051", 1, false},
		{"multiple", "n1=127.0.0.1:5051,n2=127.0.0.1:5052,n3=127.0.0.1:5053", 3, false},
		{"spaces", " n1 = 127.0.0.1:5051 , n2 = 127.0.0.1:5052 ", 2, false},
		{"trailing comma", "n1=127.0.0.1:5051,", 1, false},
		{"missing addr", "n1", 0, true},
		{"empty id", "=127.0.0.1:5051", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peers, err := ParsePeers(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(peers) != tt.expected {
				t.Errorf("Expected %d peers, got %d", tt.expected, len(peers))
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		NodeID:     "n1",
		ListenAddr: ":5051",
		Peers:      []Peer{{ID: "n2", Addr: "127.0.0.1:5052"}},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid config rejected: %v", err)
	}

	noID := valid
	noID.NodeID = ""
	if err := noID.Validate(); err == nil {
		t.Error("Config without node_id accepted")
	}

	dup := valid
	dup.Peers = []Peer{{ID: "n2", Addr: "a"}, {ID: "n2", Addr: "b"}}
	if err := dup.Validate(); err == nil {
		t.Error("Config with duplicate peer accepted")
	}
}

func TestConfig_ClusterIncludesSelf(t *testing.T) {
	c := Config{
		NodeID:     "n1",
		ListenAddr: ":5051",
		Peers: []Peer{
			{ID: "n1", Addr: ":5051"}, // self may appear in the peer list
			{ID: "n2", Addr: "127.0.0.1:5052"},
		},
	}

	members := c.Cluster()
	if len(members) != 2 {
		t.Fatalf("Expected 2 members, got %d: %v", len(members), members)
	}
	if members["n1"] != ":5051" || members["n2"] != "127.0.0.1:5052" {
		t.Errorf("Unexpected membership: %v", members)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	content := `
node_id: n1
listen: "127.0.0.1:5051"
peers:
  - id: n2
    addr: "127.0.0.1:5052"
  - id: n3
    addr: "127.0.0.1:5053"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.NodeID != "n1" || len(c.Peers) != 2 {
		t.Errorf("Unexpected config: %+v", c)
	}
	if len(c.Cluster()) != 3 {
		t.Errorf("Expected 3 cluster members, got %v", c.Cluster())
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("listen: \":5051\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Config without node_id accepted")
	}
}
