// Command demo runs an in-process cluster and exercises both protocol
// variants: single-decree consensus with competing proposers, then the
// replicated register with one replica down.
package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lorin/paxos-fizzbee/internal/acceptor"
	"github.com/lorin/paxos-fizzbee/internal/ballot"
	"github.com/lorin/paxos-fizzbee/internal/learner"
	"github.com/lorin/paxos-fizzbee/internal/proposer"
	"github.com/lorin/paxos-fizzbee/internal/register"
	"github.com/lorin/paxos-fizzbee/internal/storage"
	"github.com/lorin/paxos-fizzbee/internal/transport/inmem"
)

const numNodes = 3

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	consensusDemo()
	fmt.Println()
	registerDemo()
}

func consensusDemo() {
	fmt.Printf("=== consensus: %d acceptors, quorum %d ===\n", numNodes, numNodes/2+1)

	learners := make([]*learner.Learner, numNodes)
	for i := range learners {
		learners[i] = learner.New(fmt.Sprintf("l%d", i+1), numNodes)
	}
	notify := func(responderID string, p ballot.Proposal) {
		for _, l := range learners {
			l.Observe(responderID, p)
		}
	}

	conns := make(map[string]proposer.AcceptorClient, numNodes)
	for i := 1; i <= numNodes; i++ {
		id := fmt.Sprintf("a%d", i)
		acc, err := acceptor.New(id, storage.NewInMemoryStore(), notify)
		if err != nil {
			log.Fatalf("create acceptor %s: %v", id, err)
		}
		conns[id] = inmem.NewAcceptorConn(acc)
	}

	// Two proposers race; exactly one value must win.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i, val := range []string{"value A", "value B"} {
		wg.Add(1)
		go func(id string, value []byte) {
			defer wg.Done()
			chosen, err := proposer.New(id, conns).Propose(ctx, value)
			if err != nil {
				log.Printf("[%s] propose failed: %v", id, err)
				return
			}
			log.Printf("[%s] proposed %q, chosen %q", id, value, chosen)
		}(fmt.Sprintf("p%d", i+1), []byte(val))
	}
	wg.Wait()

	for _, l := range learners {
		v, ok := l.ChosenValue()
		fmt.Printf("learner decided=%v value=%q\n", ok, v)
	}
}

func registerDemo() {
	fmt.Printf("=== register: %d storage nodes, one down ===\n", numNodes)

	reader := register.NewReader("r1", numNodes)
	publish := func(nodeID string, w ballot.Proposal) {
		reader.Publish(nodeID, w)
	}

	conns := make(map[string]register.Client, numNodes)
	var down *inmem.StorageConn
	for i := 1; i <= numNodes; i++ {
		id := fmt.Sprintf("s%d", i)
		sn, err := register.NewStorageNode(id, storage.NewInMemoryStore(), publish)
		if err != nil {
			log.Fatalf("create storage node %s: %v", id, err)
		}
		conn := inmem.NewStorageConn(sn)
		conns[id] = conn
		if i == numNodes {
			down = conn
		}
	}

	// A minority outage must not block writes.
	down.SetDown(true)
	log.Printf("[demo] s%d marked down", numNodes)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w := register.NewWriter("w1", conns)
	stored, err := w.Write(ctx, []byte("register payload"))
	if err != nil {
		log.Fatalf("write failed: %v", err)
	}
	log.Printf("[w1] write complete, stored %q", stored)

	v, ok := reader.Value()
	fmt.Printf("reader decided=%v value=%q\n", ok, v)
}
