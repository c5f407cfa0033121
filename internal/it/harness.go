package it

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lorin/paxos-fizzbee/internal/wire"
)

// Cluster represents a test cluster of paxosd processes.
type Cluster struct {
	nodes      []*Node
	logDir     string
	binaryPath string
	mu         sync.Mutex
}

// Node represents a single process in the test cluster.
type Node struct {
	ID      string
	Addr    string
	Port    int
	cmd     *exec.Cmd
	logFile *os.File
	conn    *grpc.ClientConn
}

// NewCluster creates a new test cluster harness.
func NewCluster(binaryPath string) (*Cluster, error) {
	logDir := filepath.Join(".local", "it-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &Cluster{
		nodes:      make([]*Node, 0),
		logDir:     logDir,
		binaryPath: binaryPath,
	}, nil
}

// StartCluster starts a cluster of size nodes on consecutive local
// ports. Membership is static, so every node gets the full peer list up
// front.
func (c *Cluster) StartCluster(ctx context.Context, size int) error {
	basePort := 60151

	peerStr := ""
	for i := 1; i <= size; i++ {
		if i > 1 {
			peerStr += ","
		}
		peerStr += fmt.Sprintf("n%d=127.0.0.1:%d", i, basePort+i-1)
	}

	for i := 1; i <= size; i++ {
		nodeID := fmt.Sprintf("n%d", i)
		if err := c.StartNode(ctx, nodeID, basePort+i-1, peerStr); err != nil {
			c.Stop()
			return fmt.Errorf("failed to start node %s: %w", nodeID, err)
		}
	}
	return nil
}

// StartNode starts a single node and waits until it answers Health.
func (c *Cluster) StartNode(ctx context.Context, nodeID string, port int, peers string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	logPath := filepath.Join(c.logDir, fmt.Sprintf("%s.log", nodeID))
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.binaryPath,
		"--node-id", nodeID,
		"--listen", fmt.Sprintf("127.0.0.1:%d", port),
		"--peers", peers,
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start node %s: %w", nodeID, err)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		cmd.Process.Kill()
		logFile.Close()
		return fmt.Errorf("failed to dial node %s: %w", nodeID, err)
	}

	node := &Node{
		ID:      nodeID,
		Addr:    addr,
		Port:    port,
		cmd:     cmd,
		logFile: logFile,
		conn:    conn,
	}
	c.nodes = append(c.nodes, node)

	if err := c.waitForReady(ctx, node, 10*time.Second); err != nil {
		node.Stop()
		return fmt.Errorf("node %s failed to become ready: %w", nodeID, err)
	}
	return nil
}

// waitForReady polls the Health endpoint until the node answers.
func (c *Cluster) waitForReady(ctx context.Context, node *Node, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for node %s to be ready", node.ID)
			}

			healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			_, err := node.NodeClient().Health(healthCtx, &wire.HealthRequest{})
			cancel()

			if err == nil {
				return nil
			}
		}
	}
}

// Stop stops all nodes in the cluster.
func (c *Cluster) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, node := range c.nodes {
		node.Stop()
	}
	c.nodes = nil
}

// Stop stops a single node.
func (n *Node) Stop() {
	if n.cmd != nil && n.cmd.Process != nil {
		n.cmd.Process.Kill()
		n.cmd.Wait()
	}
	if n.conn != nil {
		n.conn.Close()
	}
	if n.logFile != nil {
		n.logFile.Close()
	}
}

// NodeClient returns the Node service client for this process.
func (n *Node) NodeClient() *wire.NodeClient {
	return wire.NewNodeClient(n.conn)
}

// LearnerClient returns the Learner service client for this process.
func (n *Node) LearnerClient() *wire.LearnerClient {
	return wire.NewLearnerClient(n.conn)
}

// GetNode returns a node by ID.
func (c *Cluster) GetNode(nodeID string) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.nodes {
		if n.ID == nodeID {
			return n
		}
	}
	return nil
}

// KillNode kills a specific node's process, leaving its slot in the
// cluster so restart reuses the same port and peer list.
func (c *Cluster) KillNode(nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, node := range c.nodes {
		if node.ID == nodeID {
			if node.cmd != nil && node.cmd.Process != nil {
				if err := node.cmd.Process.Kill(); err != nil {
					return fmt.Errorf("failed to kill node %s: %w", nodeID, err)
				}
				node.cmd.Wait()
			}
			return nil
		}
	}
	return fmt.Errorf("node %s not found", nodeID)
}

// RestartNode respawns a killed node on its original port with the same
// peer list and waits for it to answer Health again.
func (c *Cluster) RestartNode(ctx context.Context, nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var node *Node
	for _, n := range c.nodes {
		if n.ID == nodeID {
			node = n
			break
		}
	}
	if node == nil {
		return fmt.Errorf("node %s not found", nodeID)
	}

	if node.cmd != nil && node.cmd.Process != nil {
		node.cmd.Process.Kill()
		node.cmd.Wait()
	}
	if node.logFile != nil {
		node.logFile.Close()
	}

	logPath := filepath.Join(c.logDir, fmt.Sprintf("%s.log", nodeID))
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to recreate log file: %w", err)
	}

	peerStr := ""
	for i, n := range c.nodes {
		if i > 0 {
			peerStr += ","
		}
		peerStr += fmt.Sprintf("%s=%s", n.ID, n.Addr)
	}

	cmd := exec.CommandContext(ctx, c.binaryPath,
		"--node-id", nodeID,
		"--listen", node.Addr,
		"--peers", peerStr,
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to restart node %s: %w", nodeID, err)
	}

	node.cmd = cmd
	node.logFile = logFile

	if err := c.waitForReady(ctx, node, 10*time.Second); err != nil {
		return fmt.Errorf("node %s failed to become ready after restart: %w", nodeID, err)
	}
	return nil
}
