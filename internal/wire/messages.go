package wire

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
)

// message is implemented by every wire type; the codec dispatches on it.
type message interface {
	marshal() []byte
	unmarshal(data []byte) error
}

// Ballot wire format: 1=round(varint), 2=proposer_id(bytes).

func appendBallot(buf []byte, num protowire.Number, b ballot.Ballot) []byte {
	var inner []byte
	if b.Round != 0 {
		inner = protowire.AppendTag(inner, 1, protowire.VarintType)
		inner = protowire.AppendVarint(inner, b.Round)
	}
	if b.ProposerID != "" {
		inner = protowire.AppendTag(inner, 2, protowire.BytesType)
		inner = protowire.AppendString(inner, b.ProposerID)
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, inner)
}

func parseBallot(data []byte) (ballot.Ballot, error) {
	var b ballot.Ballot
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return b, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return b, protowire.ParseError(n)
			}
			b.Round = v
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return b, protowire.ParseError(n)
			}
			b.ProposerID = s
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return b, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return b, nil
}

// Proposal wire format: 1=ballot(message), 2=value(bytes).

func appendProposal(buf []byte, num protowire.Number, p ballot.Proposal) []byte {
	var inner []byte
	inner = appendBallot(inner, 1, p.N)
	if len(p.Value) > 0 {
		inner = protowire.AppendTag(inner, 2, protowire.BytesType)
		inner = protowire.AppendBytes(inner, p.Value)
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, inner)
}

func parseProposal(data []byte) (ballot.Proposal, error) {
	var p ballot.Proposal
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return p, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			b, err := parseBallot(v)
			if err != nil {
				return p, err
			}
			p.N = b
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			p.Value = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return p, nil
}

func appendBool(buf []byte, num protowire.Number, v bool) []byte {
	if !v {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, 1)
}

func appendBytesField(buf []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, v)
}

func appendStringField(buf []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendString(buf, v)
}

// walkFields iterates the fields of data, dispatching each to fn. A fn
// that does not recognize a field returns 0 and the field is skipped, so
// unknown fields stay compatible.
func walkFields(data []byte, fn func(num protowire.Number, typ protowire.Type, field []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		consumed, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if consumed == 0 {
			consumed = protowire.ConsumeFieldValue(num, typ, data)
			if consumed < 0 {
				return protowire.ParseError(consumed)
			}
		}
		data = data[consumed:]
	}
	return nil
}

func consumeBoolField(data []byte) (bool, int, error) {
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return false, 0, protowire.ParseError(n)
	}
	return v != 0, n, nil
}

func consumeBytesField(data []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// PrepareRequest asks an acceptor to promise ballot N.
type PrepareRequest struct {
	N ballot.Ballot
}

func (m *PrepareRequest) marshal() []byte {
	return appendBallot(nil, 1, m.N)
}

func (m *PrepareRequest) unmarshal(data []byte) error {
	*m = PrepareRequest{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytesField(field)
			if err != nil {
				return 0, err
			}
			b, err := parseBallot(v)
			if err != nil {
				return 0, err
			}
			m.N = b
			return n, nil
		}
		return 0, nil
	})
}

// PrepareResponse is the promise or rejection.
type PrepareResponse struct {
	Granted bool
	Prior   *ballot.Proposal
}

func (m *PrepareResponse) marshal() []byte {
	buf := appendBool(nil, 1, m.Granted)
	if m.Prior != nil {
		buf = appendProposal(buf, 2, *m.Prior)
	}
	return buf
}

func (m *PrepareResponse) unmarshal(data []byte) error {
	*m = PrepareResponse{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n, err := consumeBoolField(field)
			if err != nil {
				return 0, err
			}
			m.Granted = v
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytesField(field)
			if err != nil {
				return 0, err
			}
			p, err := parseProposal(v)
			if err != nil {
				return 0, err
			}
			m.Prior = &p
			return n, nil
		}
		return 0, nil
	})
}

// AcceptRequest carries a full proposal for phase 2.
type AcceptRequest struct {
	Proposal ballot.Proposal
}

func (m *AcceptRequest) marshal() []byte {
	return appendProposal(nil, 1, m.Proposal)
}

func (m *AcceptRequest) unmarshal(data []byte) error {
	*m = AcceptRequest{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytesField(field)
			if err != nil {
				return 0, err
			}
			p, err := parseProposal(v)
			if err != nil {
				return 0, err
			}
			m.Proposal = p
			return n, nil
		}
		return 0, nil
	})
}

// AcceptResponse acknowledges an applied accept. A superseded acceptor
// answers with Acked=false rather than an error.
type AcceptResponse struct {
	Acked bool
}

func (m *AcceptResponse) marshal() []byte {
	return appendBool(nil, 1, m.Acked)
}

func (m *AcceptResponse) unmarshal(data []byte) error {
	*m = AcceptResponse{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n, err := consumeBoolField(field)
			if err != nil {
				return 0, err
			}
			m.Acked = v
			return n, nil
		}
		return 0, nil
	})
}

// ReadRequest is the register-variant clock handshake.
type ReadRequest struct {
	N ballot.Ballot
}

func (m *ReadRequest) marshal() []byte {
	return appendBallot(nil, 1, m.N)
}

func (m *ReadRequest) unmarshal(data []byte) error {
	var req PrepareRequest
	if err := req.unmarshal(data); err != nil {
		return err
	}
	m.N = req.N
	return nil
}

// ReadResponse reports whether the clock landed exactly on the request
// and the previously latest write, which is sent regardless of the
// grant outcome.
type ReadResponse struct {
	Exact  bool
	Latest *ballot.Proposal
}

func (m *ReadResponse) marshal() []byte {
	buf := appendBool(nil, 1, m.Exact)
	if m.Latest != nil {
		buf = appendProposal(buf, 2, *m.Latest)
	}
	return buf
}

func (m *ReadResponse) unmarshal(data []byte) error {
	var resp PrepareResponse
	if err := resp.unmarshal(data); err != nil {
		return err
	}
	m.Exact, m.Latest = resp.Granted, resp.Prior
	return nil
}

// WriteRequest applies a timestamped write.
type WriteRequest struct {
	Write ballot.Proposal
}

func (m *WriteRequest) marshal() []byte {
	return appendProposal(nil, 1, m.Write)
}

func (m *WriteRequest) unmarshal(data []byte) error {
	var req AcceptRequest
	if err := req.unmarshal(data); err != nil {
		return err
	}
	m.Write = req.Proposal
	return nil
}

// WriteResponse acknowledges an applied write.
type WriteResponse struct {
	Acked bool
}

func (m *WriteResponse) marshal() []byte {
	return appendBool(nil, 1, m.Acked)
}

func (m *WriteResponse) unmarshal(data []byte) error {
	var resp AcceptResponse
	if err := resp.unmarshal(data); err != nil {
		return err
	}
	m.Acked = resp.Acked
	return nil
}

// NotifyRequest is the fan-out of an accepted proposal to a learner.
type NotifyRequest struct {
	ResponderID string
	Proposal    ballot.Proposal
}

func (m *NotifyRequest) marshal() []byte {
	buf := appendStringField(nil, 1, m.ResponderID)
	return appendProposal(buf, 2, m.Proposal)
}

func (m *NotifyRequest) unmarshal(data []byte) error {
	*m = NotifyRequest{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n, err := consumeBytesField(field)
			if err != nil {
				return 0, err
			}
			m.ResponderID = string(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytesField(field)
			if err != nil {
				return 0, err
			}
			p, err := parseProposal(v)
			if err != nil {
				return 0, err
			}
			m.Proposal = p
			return n, nil
		}
		return 0, nil
	})
}

// NotifyResponse is empty; notification delivery is best effort.
type NotifyResponse struct{}

func (m *NotifyResponse) marshal() []byte        { return nil }
func (m *NotifyResponse) unmarshal([]byte) error { return nil }

// ProposeRequest asks a node to drive a value to consensus.
type ProposeRequest struct {
	Value []byte
}

func (m *ProposeRequest) marshal() []byte {
	return appendBytesField(nil, 1, m.Value)
}

func (m *ProposeRequest) unmarshal(data []byte) error {
	*m = ProposeRequest{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytesField(field)
			if err != nil {
				return 0, err
			}
			m.Value = append([]byte(nil), v...)
			return n, nil
		}
		return 0, nil
	})
}

// ProposeResponse returns the chosen value, which differs from the
// request's value when an earlier proposal had to be adopted.
type ProposeResponse struct {
	Chosen []byte
}

func (m *ProposeResponse) marshal() []byte {
	return appendBytesField(nil, 1, m.Chosen)
}

func (m *ProposeResponse) unmarshal(data []byte) error {
	var req ProposeRequest
	if err := req.unmarshal(data); err != nil {
		return err
	}
	m.Chosen = req.Value
	return nil
}

// ChosenRequest queries a node's learner.
type ChosenRequest struct{}

func (m *ChosenRequest) marshal() []byte        { return nil }
func (m *ChosenRequest) unmarshal([]byte) error { return nil }

// ChosenResponse reports the learner's decision, if any.
type ChosenResponse struct {
	Decided bool
	Value   []byte
}

func (m *ChosenResponse) marshal() []byte {
	buf := appendBool(nil, 1, m.Decided)
	return appendBytesField(buf, 2, m.Value)
}

func (m *ChosenResponse) unmarshal(data []byte) error {
	*m = ChosenResponse{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n, err := consumeBoolField(field)
			if err != nil {
				return 0, err
			}
			m.Decided = v
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n, err := consumeBytesField(field)
			if err != nil {
				return 0, err
			}
			m.Value = append([]byte(nil), v...)
			return n, nil
		}
		return 0, nil
	})
}

// HealthRequest probes a node for readiness.
type HealthRequest struct{}

func (m *HealthRequest) marshal() []byte        { return nil }
func (m *HealthRequest) unmarshal([]byte) error { return nil }

// HealthResponse identifies the answering node.
type HealthResponse struct {
	NodeID string
}

func (m *HealthResponse) marshal() []byte {
	return appendStringField(nil, 1, m.NodeID)
}

func (m *HealthResponse) unmarshal(data []byte) error {
	*m = HealthResponse{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n, err := consumeBytesField(field)
			if err != nil {
				return 0, err
			}
			m.NodeID = string(v)
			return n, nil
		}
		return 0, nil
	})
}
