package ceg

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/finradar/finradar/internal/models"
)

// Direction selects which causal edges a chain traversal follows.
type Direction string

const (
	Forward       Direction = "forward"
	Backward      Direction = "backward"
	Bidirectional Direction = "both"
)

// Chain traversal defaults.
const (
	defaultMaxDepth   = 3
	defaultTimeWindow = 168 * time.Hour
	maxChains         = 100
	minEdgeConfidence = 0.3
)

// Edge time-factor shape: a Gaussian around the optimal cause → effect
// delay, floored so slow links are dampened, not erased.
const (
	optimalEdgeDelay = 2 * time.Hour
	minEdgeDelay     = 5 * time.Minute
	maxEdgeDelay     = 72 * time.Hour
	minTimeFactor    = 0.3
)

// Effective edge confidence blend weights.
const (
	chWeightStored     = 0.4
	chWeightTime       = 0.25
	chWeightImportance = 0.2
	chWeightEvidence   = 0.15
)

// GraphReader serves stored causal links and events for traversal.
type GraphReader interface {
	OutgoingLinks(ctx context.Context, eventID string) ([]*models.CausalLink, error)
	IncomingLinks(ctx context.Context, eventID string) ([]*models.CausalLink, error)
	EventByID(ctx context.Context, eventID string) (*models.Event, error)
}

// ImportanceReader serves the latest importance total per event, 0 when
// the event was never scored.
type ImportanceReader interface {
	Importance(ctx context.Context, eventID string) (float64, error)
}

// ChainOptions tune one discovery run. Zero values take the defaults.
type ChainOptions struct {
	MaxDepth      int
	TimeWindow    time.Duration
	MinConfidence float64
}

// Chain is one discovered causal path, root first.
type Chain struct {
	EventIDs      []string
	Links         []*models.CausalLink
	AvgConfidence float64
}

// ChainFinder discovers causal chains by bounded BFS over stored edges.
type ChainFinder struct {
	graph      GraphReader
	importance ImportanceReader
}

// NewChainFinder builds a finder. The importance reader may be nil, in
// which case the importance factor contributes zero.
func NewChainFinder(graph GraphReader, importance ImportanceReader) *ChainFinder {
	return &ChainFinder{graph: graph, importance: importance}
}

// Discover returns up to 100 chains rooted at rootID, ranked by average
// effective edge confidence.
func (f *ChainFinder) Discover(ctx context.Context, rootID string, dir Direction, opts ChainOptions) ([]Chain, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	if opts.TimeWindow <= 0 {
		opts.TimeWindow = defaultTimeWindow
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = minEdgeConfidence
	}

	root, err := f.graph.EventByID(ctx, rootID)
	if err != nil {
		return nil, err
	}

	var chains []Chain
	type frame struct {
		eventID string
		path    []string
		links   []*models.CausalLink
		confs   []float64
	}
	queue := []frame{{eventID: rootID, path: []string{rootID}}}

	for len(queue) > 0 && len(chains) < maxChains {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.links) >= opts.MaxDepth {
			continue
		}

		links, err := f.neighbors(ctx, cur.eventID, dir)
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			next := link.EffectID
			if next == cur.eventID {
				next = link.CauseID
			}
			if contains(cur.path, next) {
				continue
			}

			nextEvent, err := f.graph.EventByID(ctx, next)
			if err != nil {
				return nil, err
			}
			if absDuration(nextEvent.Timestamp.Sub(root.Timestamp)) > opts.TimeWindow {
				continue
			}

			conf, err := f.effectiveConfidence(ctx, link)
			if err != nil {
				return nil, err
			}
			if conf < opts.MinConfidence {
				continue
			}

			path := append(append([]string(nil), cur.path...), next)
			pathLinks := append(append([]*models.CausalLink(nil), cur.links...), link)
			confs := append(append([]float64(nil), cur.confs...), conf)

			chains = append(chains, Chain{
				EventIDs:      path,
				Links:         pathLinks,
				AvgConfidence: mean(confs),
			})
			if len(chains) >= maxChains {
				break
			}
			queue = append(queue, frame{eventID: next, path: path, links: pathLinks, confs: confs})
		}
	}

	sort.SliceStable(chains, func(i, j int) bool { return chains[i].AvgConfidence > chains[j].AvgConfidence })
	return chains, nil
}

func (f *ChainFinder) neighbors(ctx context.Context, eventID string, dir Direction) ([]*models.CausalLink, error) {
	var links []*models.CausalLink
	if dir == Forward || dir == Bidirectional {
		out, err := f.graph.OutgoingLinks(ctx, eventID)
		if err != nil {
			return nil, err
		}
		links = append(links, out...)
	}
	if dir == Backward || dir == Bidirectional {
		in, err := f.graph.IncomingLinks(ctx, eventID)
		if err != nil {
			return nil, err
		}
		links = append(links, in...)
	}
	return links, nil
}

// effectiveConfidence blends the stored total with time proximity,
// endpoint importance and evidence support.
func (f *ChainFinder) effectiveConfidence(ctx context.Context, link *models.CausalLink) (float64, error) {
	causeEvent, err := f.graph.EventByID(ctx, link.CauseID)
	if err != nil {
		return 0, err
	}
	effectEvent, err := f.graph.EventByID(ctx, link.EffectID)
	if err != nil {
		return 0, err
	}

	timeFactor := edgeTimeFactor(effectEvent.Timestamp.Sub(causeEvent.Timestamp))

	var importanceFactor float64
	if f.importance != nil {
		ci, err := f.importance.Importance(ctx, link.CauseID)
		if err != nil {
			return 0, err
		}
		ei, err := f.importance.Importance(ctx, link.EffectID)
		if err != nil {
			return 0, err
		}
		importanceFactor = math.Min(1, ci*ei*2)
	}

	evidenceFactor := math.Min(1, float64(len(link.EvidenceIDs))/3)

	conf := chWeightStored*link.ConfTotal +
		chWeightTime*timeFactor +
		chWeightImportance*importanceFactor +
		chWeightEvidence*evidenceFactor
	return math.Max(0, math.Min(1, conf)), nil
}

// edgeTimeFactor is a floored Gaussian around the optimal delay, with
// sigma at half the maximum delay.
func edgeTimeFactor(delta time.Duration) float64 {
	if delta < minEdgeDelay || delta > maxEdgeDelay {
		return minTimeFactor
	}
	sigma := maxEdgeDelay.Seconds() / 2
	d := delta.Seconds() - optimalEdgeDelay.Seconds()
	return math.Max(minTimeFactor, math.Exp(-d*d/(2*sigma*sigma)))
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
