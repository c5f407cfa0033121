package quorum

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lorin/paxos-fizzbee/internal/ballot"
)

const (
	// DefaultPerReplicaTimeout is the default timeout for each replica call.
	DefaultPerReplicaTimeout = 2 * time.Second
)

// Size returns the majority threshold for a cluster of n replicas.
func Size(n int) int {
	return n/2 + 1
}

// Met reports whether count responses constitute a majority of n replicas.
// Any two majorities of the same replica set intersect.
func Met(count, n int) bool {
	return count > n/2
}

// Grant is one favorable prepare/read response: the replica that granted
// and the highest-ballot proposal it had previously accepted, if any.
type Grant struct {
	NodeID string
	Prior  *ballot.Proposal
}

// GatherResult represents the outcome of a prepare/read fan-out.
type GatherResult struct {
	Success      bool
	Grants       []Grant
	Required     int
	Replicas     int
	Rejected     int
	ErrorMessage string
}

// CommitResult represents the outcome of an accept/write fan-out.
type CommitResult struct {
	Success      bool
	Acks         int
	Required     int
	Replicas     int
	ErrorMessage string
}

// GrantFunc performs a prepare/read against a single replica. It returns
// whether the replica granted and the replica's prior proposal, if any.
type GrantFunc func(ctx context.Context, nodeID string) (bool, *ballot.Proposal, error)

// AckFunc performs an accept/write against a single replica. It returns
// whether the replica acknowledged the request.
type AckFunc func(ctx context.Context, nodeID string) (bool, error)

// Gather fans a prepare/read out to all replicas in parallel and returns
// once required grants are in, every replica has responded, or ctx is done.
// If required <= 0 it defaults to a majority of the replicas.
func Gather(ctx context.Context, replicas []string, required int, fn GrantFunc) GatherResult {
	if len(replicas) == 0 {
		return GatherResult{ErrorMessage: "no replicas provided"}
	}
	if required <= 0 {
		required = Size(len(replicas))
	}
	if required > len(replicas) {
		return GatherResult{
			Required:     required,
			Replicas:     len(replicas),
			ErrorMessage: fmt.Sprintf("required grants=%d exceeds replica count=%d", required, len(replicas)),
		}
	}

	var (
		mu       sync.Mutex
		grants   []Grant
		rejected int
		errs     []error
		wg       sync.WaitGroup
	)
	reached := make(chan struct{})

	replicaCtx, cancel := context.WithTimeout(ctx, DefaultPerReplicaTimeout)
	defer cancel()

	for _, nodeID := range replicas {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			granted, prior, err := fn(replicaCtx, id)
			mu.Lock()
			defer mu.Unlock()

			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("replica %s: %w", id, err))
			case granted:
				grants = append(grants, Grant{NodeID: id, Prior: prior})
				if len(grants) == required {
					close(reached)
				}
			default:
				rejected++
			}
		}(nodeID)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-reached:
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()

	result := GatherResult{
		Grants:   append([]Grant(nil), grants...),
		Required: required,
		Replicas: len(replicas),
		Rejected: rejected,
	}
	if len(grants) >= required {
		result.Success = true
		return result
	}

	result.ErrorMessage = fmt.Sprintf("quorum not met: grants=%d rejected=%d required=%d replicas=%d",
		len(grants), rejected, required, len(replicas))
	if len(errs) > 0 {
		result.ErrorMessage += fmt.Sprintf(" errors=%v", errs[:min(3, len(errs))])
	}
	if ctx.Err() != nil {
		result.ErrorMessage += fmt.Sprintf(" ctx=%v", ctx.Err())
	}
	return result
}

// Commit fans an accept/write out to the given replicas in parallel and
// returns once required acks are in, every replica has responded, or ctx
// is done. Replicas that moved on to a higher ballot drop the request
// silently, so missing acks are the only signal of a superseded round.
func Commit(ctx context.Context, replicas []string, required int, fn AckFunc) CommitResult {
	if len(replicas) == 0 {
		return CommitResult{ErrorMessage: "no replicas provided"}
	}
	if required <= 0 {
		required = Size(len(replicas))
	}
	if required > len(replicas) {
		return CommitResult{
			Required:     required,
			Replicas:     len(replicas),
			ErrorMessage: fmt.Sprintf("required acks=%d exceeds replica count=%d", required, len(replicas)),
		}
	}

	var (
		mu   sync.Mutex
		acks int
		errs []error
		wg   sync.WaitGroup
	)
	reached := make(chan struct{})

	replicaCtx, cancel := context.WithTimeout(ctx, DefaultPerReplicaTimeout)
	defer cancel()

	for _, nodeID := range replicas {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			acked, err := fn(replicaCtx, id)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, fmt.Errorf("replica %s: %w", id, err))
				return
			}
			if acked {
				acks++
				if acks == required {
					close(reached)
				}
			}
		}(nodeID)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-reached:
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()

	result := CommitResult{
		Acks:     acks,
		Required: required,
		Replicas: len(replicas),
	}
	if acks >= required {
		result.Success = true
		return result
	}

	result.ErrorMessage = fmt.Sprintf("quorum not met: acks=%d required=%d replicas=%d",
		acks, required, len(replicas))
	if len(errs) > 0 {
		result.ErrorMessage += fmt.Sprintf(" errors=%v", errs[:min(3, len(errs))])
	}
	if ctx.Err() != nil {
		result.ErrorMessage += fmt.Sprintf(" ctx=%v", ctx.Err())
	}
	return result
}
