package wire

import (
	"context"

	"google.golang.org/grpc"
)

// Full method names, shared by clients and interceptor metadata.
const (
	MethodPrepare = "/paxos.Acceptor/Prepare"
	MethodAccept  = "/paxos.Acceptor/Accept"
	MethodRead    = "/paxos.Register/Read"
	MethodWrite   = "/paxos.Register/Write"
	MethodNotify  = "/paxos.Learner/Notify"
	MethodPublish = "/paxos.Learner/Publish"
	MethodPropose = "/paxos.Node/Propose"
	MethodChosen  = "/paxos.Node/Chosen"
	MethodHealth  = "/paxos.Node/Health"
)

// AcceptorServer is the consensus responder service.
type AcceptorServer interface {
	Prepare(ctx context.Context, req *PrepareRequest) (*PrepareResponse, error)
	Accept(ctx context.Context, req *AcceptRequest) (*AcceptResponse, error)
}

// RegisterServer is the register-variant responder service.
type RegisterServer interface {
	Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error)
	Write(ctx context.Context, req *WriteRequest) (*WriteResponse, error)
}

// LearnerServer receives responder fan-out: Notify carries consensus
// accepts for the learner, Publish carries register writes for the
// reader.
type LearnerServer interface {
	Notify(ctx context.Context, req *NotifyRequest) (*NotifyResponse, error)
	Publish(ctx context.Context, req *NotifyRequest) (*NotifyResponse, error)
}

// NodeServer is the client-facing API of a node.
type NodeServer interface {
	Propose(ctx context.Context, req *ProposeRequest) (*ProposeResponse, error)
	Chosen(ctx context.Context, req *ChosenRequest) (*ChosenResponse, error)
	Health(ctx context.Context, req *HealthRequest) (*HealthResponse, error)
}

func unaryHandler[Req, Resp any](method string, call func(context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(ctx, req.(*Req))
		})
	}
}

// RegisterAcceptorServer registers srv on s.
func RegisterAcceptorServer(s *grpc.Server, srv AcceptorServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "paxos.Acceptor",
		HandlerType: (*AcceptorServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Prepare", Handler: unaryHandler(MethodPrepare, srv.Prepare)},
			{MethodName: "Accept", Handler: unaryHandler(MethodAccept, srv.Accept)},
		},
		Streams: []grpc.StreamDesc{},
	}, srv)
}

// RegisterRegisterServer registers srv on s.
func RegisterRegisterServer(s *grpc.Server, srv RegisterServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "paxos.Register",
		HandlerType: (*RegisterServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Read", Handler: unaryHandler(MethodRead, srv.Read)},
			{MethodName: "Write", Handler: unaryHandler(MethodWrite, srv.Write)},
		},
		Streams: []grpc.StreamDesc{},
	}, srv)
}

// RegisterLearnerServer registers srv on s.
func RegisterLearnerServer(s *grpc.Server, srv LearnerServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "paxos.Learner",
		HandlerType: (*LearnerServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Notify", Handler: unaryHandler(MethodNotify, srv.Notify)},
			{MethodName: "Publish", Handler: unaryHandler(MethodPublish, srv.Publish)},
		},
		Streams: []grpc.StreamDesc{},
	}, srv)
}

// RegisterNodeServer registers srv on s.
func RegisterNodeServer(s *grpc.Server, srv NodeServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "paxos.Node",
		HandlerType: (*NodeServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Propose", Handler: unaryHandler(MethodPropose, srv.Propose)},
			{MethodName: "Chosen", Handler: unaryHandler(MethodChosen, srv.Chosen)},
			{MethodName: "Health", Handler: unaryHandler(MethodHealth, srv.Health)},
		},
		Streams: []grpc.StreamDesc{},
	}, srv)
}

func invoke[Req, Resp any](ctx context.Context, cc *grpc.ClientConn, method string, req *Req, resp *Resp) (*Resp, error) {
	if err := cc.Invoke(ctx, method, req, resp, grpc.ForceCodec(Codec{})); err != nil {
		return nil, err
	}
	return resp, nil
}

// AcceptorClient calls the paxos.Acceptor service over cc.
type AcceptorClient struct {
	cc *grpc.ClientConn
}

// NewAcceptorClient wraps cc.
func NewAcceptorClient(cc *grpc.ClientConn) *AcceptorClient {
	return &AcceptorClient{cc: cc}
}

func (c *AcceptorClient) Prepare(ctx context.Context, req *PrepareRequest) (*PrepareResponse, error) {
	return invoke(ctx, c.cc, MethodPrepare, req, new(PrepareResponse))
}

func (c *AcceptorClient) Accept(ctx context.Context, req *AcceptRequest) (*AcceptResponse, error) {
	return invoke(ctx, c.cc, MethodAccept, req, new(AcceptResponse))
}

// RegisterClient calls the paxos.Register service over cc.
type RegisterClient struct {
	cc *grpc.ClientConn
}

// NewRegisterClient wraps cc.
func NewRegisterClient(cc *grpc.ClientConn) *RegisterClient {
	return &RegisterClient{cc: cc}
}

func (c *RegisterClient) Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error) {
	return invoke(ctx, c.cc, MethodRead, req, new(ReadResponse))
}

func (c *RegisterClient) Write(ctx context.Context, req *WriteRequest) (*WriteResponse, error) {
	return invoke(ctx, c.cc, MethodWrite, req, new(WriteResponse))
}

// LearnerClient calls the paxos.Learner service over cc.
type LearnerClient struct {
	cc *grpc.ClientConn
}

// NewLearnerClient wraps cc.
func NewLearnerClient(cc *grpc.ClientConn) *LearnerClient {
	return &LearnerClient{cc: cc}
}

func (c *LearnerClient) Notify(ctx context.Context, req *NotifyRequest) (*NotifyResponse, error) {
	return invoke(ctx, c.cc, MethodNotify, req, new(NotifyResponse))
}

func (c *LearnerClient) Publish(ctx context.Context, req *NotifyRequest) (*NotifyResponse, error) {
	return invoke(ctx, c.cc, MethodPublish, req, new(NotifyResponse))
}

// NodeClient calls the paxos.Node service over cc.
type NodeClient struct {
	cc *grpc.ClientConn
}

// NewNodeClient wraps cc.
func NewNodeClient(cc *grpc.ClientConn) *NodeClient {
	return &NodeClient{cc: cc}
}

func (c *NodeClient) Propose(ctx context.Context, req *ProposeRequest) (*ProposeResponse, error) {
	return invoke(ctx, c.cc, MethodPropose, req, new(ProposeResponse))
}

func (c *NodeClient) Chosen(ctx context.Context, req *ChosenRequest) (*ChosenResponse, error) {
	return invoke(ctx, c.cc, MethodChosen, req, new(ChosenResponse))
}

func (c *NodeClient) Health(ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
	return invoke(ctx, c.cc, MethodHealth, req, new(HealthResponse))
}
