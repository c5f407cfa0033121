package node

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/lorin/paxos-fizzbee/internal/acceptor"
	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/config"
	"github.com/lorin/paxos-fizzbee/internal/learner"
	"github.com/lorin/paxos-fizzbee/internal/proposer"
	"github.com/lorin/paxos-fizzbee/internal/register"
	"github.com/lorin/paxos-fizzbee/internal/storage"
	"github.com/lorin/paxos-fizzbee/internal/transport/inmem"
	"github.com/lorin/paxos-fizzbee/internal/wire"
)

const fanoutTimeout = 2 * time.Second

// Node is one member of the cluster. It hosts every role: an acceptor
// and storage node answering peers, a learner and reader receiving
// fan-out, and a proposer serving client Propose calls against the whole
// cluster.
type Node struct {
	nodeID     string
	listenAddr string
	cluster    map[string]string

	grpcServer *grpc.Server
	clientMgr  *ClientManager

	acc  *acceptor.Acceptor
	reg  *register.StorageNode
	lrn  *learner.Learner
	rdr  *register.Reader
	prop *proposer.Proposer
}

// New assembles a node from its configuration. Membership is static for
// the node's lifetime; the quorum size derives from the cluster map.
func New(cfg *config.Config) (*Node, error) {
	n := &Node{
		nodeID:     cfg.NodeID,
		listenAddr: cfg.ListenAddr,
		cluster:    cfg.Cluster(),
		clientMgr:  NewClientManager(),
	}

	n.lrn = learner.New(cfg.NodeID, len(n.cluster))
	n.rdr = register.NewReader(cfg.NodeID, len(n.cluster))

	acc, err := acceptor.New(cfg.NodeID, storage.NewInMemoryStore(), n.fanoutNotify)
	if err != nil {
		return nil, fmt.Errorf("init acceptor: %w", err)
	}
	n.acc = acc

	reg, err := register.NewStorageNode(cfg.NodeID, storage.NewInMemoryStore(), n.fanoutPublish)
	if err != nil {
		return nil, fmt.Errorf("init storage node: %w", err)
	}
	n.reg = reg

	// The proposer talks to every acceptor in the cluster; the local one
	// is wired in-process, peers go over gRPC.
	clients := make(map[string]proposer.AcceptorClient, len(n.cluster))
	for id, addr := range n.cluster {
		if id == cfg.NodeID {
			clients[id] = inmem.NewAcceptorConn(n.acc)
			continue
		}
		clients[id] = remoteAcceptor{cm: n.clientMgr, addr: addr}
	}
	n.prop = proposer.New(cfg.NodeID, clients)

	return n, nil
}

// Writer returns a register writer driving this node's cluster, for
// clients embedding the node in-process.
func (n *Node) Writer(writerID string) *register.Writer {
	clients := make(map[string]register.Client, len(n.cluster))
	for id, addr := range n.cluster {
		if id == n.nodeID {
			clients[id] = inmem.NewStorageConn(n.reg)
			continue
		}
		clients[id] = remoteStorage{cm: n.clientMgr, addr: addr}
	}
	return register.NewWriter(writerID, clients)
}

// Start listens and serves until Stop is called. It blocks.
func (n *Node) Start() error {
	lis, err := net.Listen("tcp", n.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", n.listenAddr, err)
	}

	n.grpcServer = grpc.NewServer(grpc.ForceServerCodec(wire.Codec{}))
	server := NewServer(n.nodeID, n.acc, n.reg, n.lrn, n.rdr, n.prop)
	wire.RegisterAcceptorServer(n.grpcServer, server)
	wire.RegisterRegisterServer(n.grpcServer, server)
	wire.RegisterLearnerServer(n.grpcServer, server)
	wire.RegisterNodeServer(n.grpcServer, server)

	log.Printf("[%s] starting node on %s (cluster size %d, quorum %d)",
		n.nodeID, n.listenAddr, len(n.cluster), len(n.cluster)/2+1)

	if err := n.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the node.
func (n *Node) Stop() {
	if n.grpcServer != nil {
		log.Printf("[%s] stopping node", n.nodeID)
		n.grpcServer.GracefulStop()
	}
	n.clientMgr.Close()
}

// fanoutNotify pushes an accepted proposal to every learner in the
// cluster. Delivery is best effort: a learner that misses a
// notification simply stays undecided until a later accept reaches it.
func (n *Node) fanoutNotify(responderID string, p ballot.Proposal) {
	n.lrn.Observe(responderID, p)

	for id, addr := range n.cluster {
		if id == n.nodeID {
			continue
		}
		go func(peerID, addr string) {
			ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
			defer cancel()

			c, err := n.clientMgr.Learner(addr)
			if err == nil {
				_, err = c.Notify(ctx, &wire.NotifyRequest{ResponderID: responderID, Proposal: p})
			}
			if err != nil {
				log.Printf("[%s] notify %s failed: %v", n.nodeID, peerID, err)
			}
		}(id, addr)
	}
}

// fanoutPublish pushes an applied register write to every reader.
func (n *Node) fanoutPublish(nodeID string, w ballot.Proposal) {
	n.rdr.Publish(nodeID, w)

	for id, addr := range n.cluster {
		if id == n.nodeID {
			continue
		}
		go func(peerID, addr string) {
			ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
			defer cancel()

			c, err := n.clientMgr.Learner(addr)
			if err == nil {
				_, err = c.Publish(ctx, &wire.NotifyRequest{ResponderID: nodeID, Proposal: w})
			}
			if err != nil {
				log.Printf("[%s] publish %s failed: %v", n.nodeID, peerID, err)
			}
		}(id, addr)
	}
}
