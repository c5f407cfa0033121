package node

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/wire"
)

// ClientManager manages gRPC connections to peer nodes. Connections are
// created lazily and cached per address.
type ClientManager struct {
	mu    sync.RWMutex
	conns map[string]*grpc.ClientConn
}

// NewClientManager creates a new client manager.
func NewClientManager() *ClientManager {
	return &ClientManager{conns: make(map[string]*grpc.ClientConn)}
}

func (cm *ClientManager) conn(addr string) (*grpc.ClientConn, error) {
	cm.mu.RLock()
	conn, exists := cm.conns[addr]
	cm.mu.RUnlock()

	if exists {
		return conn, nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Double-check after acquiring write lock
	if conn, exists := cm.conns[addr]; exists {
		return conn, nil
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	cm.conns[addr] = conn
	return conn, nil
}

// Acceptor returns an acceptor-service client for addr.
func (cm *ClientManager) Acceptor(addr string) (*wire.AcceptorClient, error) {
	conn, err := cm.conn(addr)
	if err != nil {
		return nil, err
	}
	return wire.NewAcceptorClient(conn), nil
}

// Register returns a register-service client for addr.
func (cm *ClientManager) Register(addr string) (*wire.RegisterClient, error) {
	conn, err := cm.conn(addr)
	if err != nil {
		return nil, err
	}
	return wire.NewRegisterClient(conn), nil
}

// Learner returns a learner-service client for addr.
func (cm *ClientManager) Learner(addr string) (*wire.LearnerClient, error) {
	conn, err := cm.conn(addr)
	if err != nil {
		return nil, err
	}
	return wire.NewLearnerClient(conn), nil
}

// Node returns a node-service client for addr.
func (cm *ClientManager) Node(addr string) (*wire.NodeClient, error) {
	conn, err := cm.conn(addr)
	if err != nil {
		return nil, err
	}
	return wire.NewNodeClient(conn), nil
}

// Close closes all cached connections.
func (cm *ClientManager) Close() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, conn := range cm.conns {
		conn.Close()
	}
	cm.conns = make(map[string]*grpc.ClientConn)
}

// remoteAcceptor adapts the wire acceptor client to the proposer's seam.
type remoteAcceptor struct {
	cm   *ClientManager
	addr string
}

func (r remoteAcceptor) Prepare(ctx context.Context, b ballot.Ballot) (bool, *ballot.Proposal, error) {
	c, err := r.cm.Acceptor(r.addr)
	if err != nil {
		return false, nil, err
	}
	resp, err := c.Prepare(ctx, &wire.PrepareRequest{N: b})
	if err != nil {
		return false, nil, err
	}
	return resp.Granted, resp.Prior, nil
}

func (r remoteAcceptor) Accept(ctx context.Context, p ballot.Proposal) (bool, error) {
	c, err := r.cm.Acceptor(r.addr)
	if err != nil {
		return false, err
	}
	resp, err := c.Accept(ctx, &wire.AcceptRequest{Proposal: p})
	if err != nil {
		return false, err
	}
	return resp.Acked, nil
}

// remoteStorage adapts the wire register client to the writer's seam.
type remoteStorage struct {
	cm   *ClientManager
	addr string
}

func (r remoteStorage) ReadAndAdvance(ctx context.Context, b ballot.Ballot) (bool, *ballot.Proposal, error) {
	c, err := r.cm.Register(r.addr)
	if err != nil {
		return false, nil, err
	}
	resp, err := c.Read(ctx, &wire.ReadRequest{N: b})
	if err != nil {
		return false, nil, err
	}
	return resp.Exact, resp.Latest, nil
}

func (r remoteStorage) Write(ctx context.Context, w ballot.Proposal) (bool, error) {
	c, err := r.cm.Register(r.addr)
	if err != nil {
		return false, err
	}
	resp, err := c.Write(ctx, &wire.WriteRequest{Write: w})
	if err != nil {
		return false, err
	}
	return resp.Acked, nil
}
