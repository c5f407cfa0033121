package node

import (
	"context"
	"log"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lorin/paxos-fizzbee/internal/acceptor"
	"github.com/lorin/paxos-fizzbee/internal/learner"
	"github.com/lorin/paxos-fizzbee/internal/proposer"
	"github.com/lorin/paxos-fizzbee/internal/register"
	"github.com/lorin/paxos-fizzbee/internal/wire"
)

// Server implements the node's gRPC services over the local role
// instances. Requests mutate only this node's own state; the proposer is
// the sole component that reaches out to peers.
type Server struct {
	nodeID string
	acc    *acceptor.Acceptor
	reg    *register.StorageNode
	lrn    *learner.Learner
	rdr    *register.Reader
	prop   *proposer.Proposer
}

// NewServer wires the role instances into one service surface.
func NewServer(nodeID string, acc *acceptor.Acceptor, reg *register.StorageNode,
	lrn *learner.Learner, rdr *register.Reader, prop *proposer.Proposer) *Server {
	return &Server{nodeID: nodeID, acc: acc, reg: reg, lrn: lrn, rdr: rdr, prop: prop}
}

// Prepare handles a phase-1 request against the local acceptor.
func (s *Server) Prepare(ctx context.Context, req *wire.PrepareRequest) (*wire.PrepareResponse, error) {
	granted, prior := s.acc.Prepare(req.N)
	log.Printf("[%s] prepare %v: granted=%v", s.nodeID, req.N, granted)
	return &wire.PrepareResponse{Granted: granted, Prior: prior}, nil
}

// Accept handles a phase-2 request against the local acceptor.
func (s *Server) Accept(ctx context.Context, req *wire.AcceptRequest) (*wire.AcceptResponse, error) {
	acked := s.acc.Accept(req.Proposal)
	log.Printf("[%s] accept %s: acked=%v", s.nodeID, req.Proposal, acked)
	return &wire.AcceptResponse{Acked: acked}, nil
}

// Read handles the register clock handshake against the local node.
func (s *Server) Read(ctx context.Context, req *wire.ReadRequest) (*wire.ReadResponse, error) {
	exact, latest := s.reg.ReadAndAdvance(req.N)
	return &wire.ReadResponse{Exact: exact, Latest: latest}, nil
}

// Write applies a register write on the local node.
func (s *Server) Write(ctx context.Context, req *wire.WriteRequest) (*wire.WriteResponse, error) {
	acked := s.reg.Write(req.Write)
	return &wire.WriteResponse{Acked: acked}, nil
}

// Notify feeds a consensus fan-out notification to the local learner.
func (s *Server) Notify(ctx context.Context, req *wire.NotifyRequest) (*wire.NotifyResponse, error) {
	s.lrn.Observe(req.ResponderID, req.Proposal)
	return &wire.NotifyResponse{}, nil
}

// Publish feeds a register fan-out notification to the local reader.
func (s *Server) Publish(ctx context.Context, req *wire.NotifyRequest) (*wire.NotifyResponse, error) {
	s.rdr.Publish(req.ResponderID, req.Proposal)
	return &wire.NotifyResponse{}, nil
}

// Propose drives a value to consensus on behalf of a client. The chosen
// value may differ from the request's when an earlier proposal had to be
// adopted.
func (s *Server) Propose(ctx context.Context, req *wire.ProposeRequest) (*wire.ProposeResponse, error) {
	log.Printf("[%s] propose request: %d bytes", s.nodeID, len(req.Value))

	chosen, err := s.prop.Propose(ctx, req.Value)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &wire.ProposeResponse{Chosen: chosen}, nil
}

// Chosen reports the local learner's decision, if any.
func (s *Server) Chosen(ctx context.Context, req *wire.ChosenRequest) (*wire.ChosenResponse, error) {
	v, ok := s.lrn.ChosenValue()
	return &wire.ChosenResponse{Decided: ok, Value: v}, nil
}

// Health answers readiness probes.
func (s *Server) Health(ctx context.Context, req *wire.HealthRequest) (*wire.HealthResponse, error) {
	return &wire.HealthResponse{NodeID: s.nodeID}, nil
}
