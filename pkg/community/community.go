// Package community clusters the stored knowledge graph and keeps one LLM
// summary per cluster for answering questions.
package community

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/logger"
	"github.com/scilab-ai/scilab/backend/pkg/store"
)

const DefaultMaxClusterSize = 5

// Stats describes the published snapshot.
type Stats struct {
	Communities int
	Entities    int
	BuiltAt     time.Time
}

type snapshot struct {
	membership map[string][]int
	summaries  map[int]string
	builtAt    time.Time
}

// Store is a GraphStorage that also owns the entity to community membership
// and the community summaries. Both are replaced together by each build.
type Store struct {
	store.GraphStorage

	aiClient       ai.GraphAIClient
	partitioner    Partitioner
	maxClusterSize int
	onBuild        func(Stats, time.Duration)

	mu       sync.Mutex
	inflight *buildCall
	snap     atomic.Pointer[snapshot]
}

// buildCall is one shared build. Its context is cancelled once every
// caller waiting on it has gone away.
type buildCall struct {
	done    chan struct{}
	err     error
	cancel  context.CancelFunc
	waiters int
}

type NewStoreParams struct {
	Storage        store.GraphStorage
	AIClient       ai.GraphAIClient
	Partitioner    Partitioner // defaults to NewLouvainPartitioner()
	MaxClusterSize int         // defaults to DefaultMaxClusterSize
	OnBuild        func(Stats, time.Duration)
}

func NewStore(params NewStoreParams) *Store {
	if params.Partitioner == nil {
		params.Partitioner = NewLouvainPartitioner()
	}
	if params.MaxClusterSize <= 0 {
		params.MaxClusterSize = DefaultMaxClusterSize
	}
	s := &Store{
		GraphStorage:   params.Storage,
		aiClient:       params.AIClient,
		partitioner:    params.Partitioner,
		maxClusterSize: params.MaxClusterSize,
		onBuild:        params.OnBuild,
	}
	s.snap.Store(&snapshot{
		membership: map[string][]int{},
		summaries:  map[int]string{},
	})
	return s
}

// BuildCommunities rebuilds membership and summaries from every stored
// triplet. Concurrent calls share one build. A caller that gives up only
// stops waiting; the build is cancelled when the last waiter leaves. An
// empty graph leaves the current state untouched.
func (s *Store) BuildCommunities(ctx context.Context) error {
	s.mu.Lock()
	call := s.inflight
	if call == nil {
		buildCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &buildCall{done: make(chan struct{}), cancel: cancel}
		s.inflight = call
		go s.run(buildCtx, call)
	} else {
		logger.Debug("[Community] Joined in-flight build")
	}
	call.waiters++
	s.mu.Unlock()

	select {
	case <-call.done:
		s.mu.Lock()
		call.waiters--
		s.mu.Unlock()
		return call.err
	case <-ctx.Done():
		s.mu.Lock()
		call.waiters--
		if call.waiters == 0 {
			call.cancel()
			if s.inflight == call {
				s.inflight = nil
			}
		}
		s.mu.Unlock()
		return ctx.Err()
	}
}

func (s *Store) run(ctx context.Context, call *buildCall) {
	err := s.build(ctx)

	s.mu.Lock()
	if s.inflight == call {
		s.inflight = nil
	}
	s.mu.Unlock()

	call.err = err
	call.cancel()
	close(call.done)
}

func (s *Store) build(ctx context.Context) error {
	start := time.Now()

	triplets, err := s.GetTriplets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load triplets: %w", err)
	}

	g := NewGraph()
	for _, t := range triplets {
		g.SetEdge(t.Relation.Source, t.Relation.Target, EdgeAttr{
			Label:       t.Relation.Label,
			Description: t.Relation.EdgeDescription(),
		})
	}
	if g.Len() == 0 {
		logger.Info("[Community] Graph is empty, nothing to build")
		return nil
	}

	clusters, err := s.partitioner.Partition(g, s.maxClusterSize)
	if err != nil {
		return fmt.Errorf("failed to partition graph: %w", err)
	}

	membership := make(map[string][]int)
	info := make(map[int][]string)
	for _, c := range clusters {
		if !slices.Contains(membership[c.Node], c.ClusterID) {
			membership[c.Node] = append(membership[c.Node], c.ClusterID)
		}
		for _, n := range g.Neighbors(c.Node) {
			attr, _ := g.Edge(c.Node, n)
			info[c.ClusterID] = append(info[c.ClusterID],
				fmt.Sprintf("%s -> %s -> %s -> %s", c.Node, n, attr.Label, attr.Description))
		}
	}

	summaries, err := s.summarize(ctx, info)
	if err != nil {
		return err
	}
	// abandoned builds never publish
	if err := ctx.Err(); err != nil {
		return err
	}

	next := &snapshot{membership: membership, summaries: summaries, builtAt: time.Now()}
	s.snap.Store(next)

	stats := next.stats()
	logger.Info("[Community] Built communities",
		"nodes", g.Len(), "clusters", len(info), "summaries", stats.Communities, "took", time.Since(start))
	if s.onBuild != nil {
		s.onBuild(stats, time.Since(start))
	}
	return nil
}

// summarize asks for one summary per cluster, in cluster id order. A failed
// cluster is logged and left out; a cancelled context aborts the build.
func (s *Store) summarize(ctx context.Context, info map[int][]string) (map[int]string, error) {
	ids := make([]int, 0, len(info))
	for id := range info {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	summaries := make(map[int]string, len(ids))
	for _, id := range ids {
		text := strings.Join(info[id], "\n") + "."
		res, err := s.aiClient.GenerateChat(ctx, []ai.ChatMessage{
			ai.SystemMessage(ai.CommunitySummaryPrompt),
			ai.UserMessage(text),
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Error("[Community] Failed to summarize community", "community", id, "err", err)
			continue
		}
		summaries[id] = ai.StripAssistantPrefix(res)
	}
	return summaries, nil
}

// GetCommunitySummaries returns the summary cache, building it first when
// it is empty.
func (s *Store) GetCommunitySummaries(ctx context.Context) (map[int]string, error) {
	if len(s.snap.Load().summaries) == 0 {
		if err := s.BuildCommunities(ctx); err != nil {
			return nil, err
		}
	}
	return maps.Clone(s.snap.Load().summaries), nil
}

// EntityCommunities returns the membership of the current snapshot.
func (s *Store) EntityCommunities() map[string][]int {
	return maps.Clone(s.snap.Load().membership)
}

func (s *Store) Stats() Stats {
	return s.snap.Load().stats()
}

// HasCommunities reports whether a build has published any summaries.
func (s *Store) HasCommunities() bool {
	return len(s.snap.Load().summaries) > 0
}

func (sn *snapshot) stats() Stats {
	return Stats{
		Communities: len(sn.summaries),
		Entities:    len(sn.membership),
		BuiltAt:     sn.builtAt,
	}
}
