// Defines the immutable network topology: platform and switch nodes connected
// by directed line segments. Built once from a TopologySpec and frozen; all
// lookups afterwards are by dense integer handle.

package sim

import (
	"fmt"

	"github.com/samber/lo"
)

// NodeID and EdgeID are dense handles into the topology arenas.
type (
	NodeID int
	EdgeID int
)

// NoNode and NoEdge mark the absence of a node or edge reference.
const (
	NoNode NodeID = -1
	NoEdge EdgeID = -1
)

// NodeKind classifies a node in the network.
type NodeKind string

const (
	// NodePlatform is a stop where trains dwell. At most one outgoing edge
	// per travel direction.
	NodePlatform NodeKind = "platform"
	// NodeSwitch is a routing point with multiple outgoing edges. The first
	// declared outgoing edge is the default route.
	NodeSwitch NodeKind = "switch"
)

// Point is a 2D layout coordinate. It exists for external renderers only and
// plays no role in the simulation itself.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Node is a point in the network. Frozen after BuildTopology returns.
type Node struct {
	ID         NodeID
	Name       string
	Kind       NodeKind
	Pos        Point
	DwellTicks int // default dwell duration for platforms, in ticks

	// In and Out hold edge handles in declaration order. For switches the
	// order of Out is the routing priority order.
	In  []EdgeID
	Out []EdgeID
}

// Edge is a directed line segment. Frozen after BuildTopology returns.
type Edge struct {
	ID         EdgeID
	Name       string
	From       NodeID
	To         NodeID
	Length     float64 // must be > 0
	SpeedLimit float64 // must be > 0
	Capacity   int     // max concurrent trains, default 1
	Direction  string  // travel direction label matched by route resolution
}

// NodeSpec is the serialisable input form of a node.
type NodeSpec struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Pos        Point  `yaml:"pos,omitempty"`
	DwellTicks int    `yaml:"dwell_ticks,omitempty"`
}

// EdgeSpec is the serialisable input form of a line segment.
type EdgeSpec struct {
	Name       string  `yaml:"name,omitempty"` // defaults to "<from>-<to>"
	From       string  `yaml:"from"`
	To         string  `yaml:"to"`
	Length     float64 `yaml:"length"`
	SpeedLimit float64 `yaml:"speed_limit"`
	Capacity   int     `yaml:"capacity,omitempty"` // defaults to 1
	Direction  string  `yaml:"direction,omitempty"`
}

// TopologySpec is the raw build input: platforms plus line segments.
type TopologySpec struct {
	Nodes []NodeSpec `yaml:"nodes"`
	Edges []EdgeSpec `yaml:"edges"`
}

// Topology owns the complete node and edge arenas. It is immutable after
// BuildTopology returns; no component may mutate nodes or edges afterwards.
type Topology struct {
	nodes  []Node
	edges  []Edge
	byName map[string]NodeID
}

// DefaultDwellTicks is the platform dwell applied when a node spec leaves
// dwell_ticks unset.
const DefaultDwellTicks = 2

// BuildTopology validates a TopologySpec and freezes it into a Topology.
// All validation failures are reported as a BuildError: duplicate names,
// unknown endpoint references, non-positive lengths or speed limits, and
// platform nodes that are not mutually reachable.
func BuildTopology(spec TopologySpec) (*Topology, error) {
	if len(spec.Nodes) == 0 {
		return nil, &BuildError{Detail: "no nodes in spec"}
	}

	t := &Topology{
		nodes:  make([]Node, 0, len(spec.Nodes)),
		edges:  make([]Edge, 0, len(spec.Edges)),
		byName: make(map[string]NodeID, len(spec.Nodes)),
	}

	for _, ns := range spec.Nodes {
		if ns.Name == "" {
			return nil, &BuildError{Detail: "node with empty name"}
		}
		if _, exists := t.byName[ns.Name]; exists {
			return nil, &BuildError{Detail: fmt.Sprintf("duplicate node %q", ns.Name)}
		}
		kind := NodeKind(ns.Kind)
		switch kind {
		case NodePlatform, NodeSwitch:
		default:
			return nil, &BuildError{Detail: fmt.Sprintf("node %q: unknown kind %q", ns.Name, ns.Kind)}
		}
		dwell := ns.DwellTicks
		if dwell == 0 && kind == NodePlatform {
			dwell = DefaultDwellTicks
		}
		id := NodeID(len(t.nodes))
		t.nodes = append(t.nodes, Node{
			ID:         id,
			Name:       ns.Name,
			Kind:       kind,
			Pos:        ns.Pos,
			DwellTicks: dwell,
		})
		t.byName[ns.Name] = id
	}

	for _, es := range spec.Edges {
		from, ok := t.byName[es.From]
		if !ok {
			return nil, &BuildError{Detail: fmt.Sprintf("edge %q-%q: unknown source node %q", es.From, es.To, es.From)}
		}
		to, ok := t.byName[es.To]
		if !ok {
			return nil, &BuildError{Detail: fmt.Sprintf("edge %q-%q: unknown target node %q", es.From, es.To, es.To)}
		}
		if es.Length <= 0 {
			return nil, &BuildError{Detail: fmt.Sprintf("edge %q-%q: length %v is not positive", es.From, es.To, es.Length)}
		}
		if es.SpeedLimit <= 0 {
			return nil, &BuildError{Detail: fmt.Sprintf("edge %q-%q: speed limit %v is not positive", es.From, es.To, es.SpeedLimit)}
		}
		capacity := es.Capacity
		if capacity == 0 {
			capacity = 1
		}
		if capacity < 0 {
			return nil, &BuildError{Detail: fmt.Sprintf("edge %q-%q: negative capacity %d", es.From, es.To, es.Capacity)}
		}
		name := es.Name
		if name == "" {
			name = es.From + "-" + es.To
		}
		id := EdgeID(len(t.edges))
		t.edges = append(t.edges, Edge{
			ID:         id,
			Name:       name,
			From:       from,
			To:         to,
			Length:     es.Length,
			SpeedLimit: es.SpeedLimit,
			Capacity:   capacity,
			Direction:  es.Direction,
		})
		t.nodes[from].Out = append(t.nodes[from].Out, id)
		t.nodes[to].In = append(t.nodes[to].In, id)
	}

	// A platform serves at most one outgoing edge per travel direction.
	for _, n := range t.nodes {
		if n.Kind != NodePlatform {
			continue
		}
		seen := make(map[string]bool, len(n.Out))
		for _, eid := range n.Out {
			dir := t.edges[eid].Direction
			if seen[dir] {
				return nil, &BuildError{Detail: fmt.Sprintf(
					"platform %q has multiple outgoing edges for direction %q", n.Name, dir)}
			}
			seen[dir] = true
		}
	}

	if err := t.checkPlatformConnectivity(); err != nil {
		return nil, err
	}
	return t, nil
}

// checkPlatformConnectivity verifies that every platform can both reach and
// be reached from a reference platform, which together imply all platforms
// are mutually connected. Unreachable platforms are a build-time error.
func (t *Topology) checkPlatformConnectivity() error {
	platforms := lo.Filter(t.nodes, func(n Node, _ int) bool { return n.Kind == NodePlatform })
	if len(platforms) < 2 {
		return nil
	}
	root := platforms[0].ID

	forward := t.reachableFrom(root, false)
	backward := t.reachableFrom(root, true)
	for _, p := range platforms {
		if !forward[p.ID] {
			return &BuildError{Detail: fmt.Sprintf("platform %q unreachable from %q", t.nodes[p.ID].Name, t.nodes[root].Name)}
		}
		if !backward[p.ID] {
			return &BuildError{Detail: fmt.Sprintf("platform %q cannot reach %q", t.nodes[p.ID].Name, t.nodes[root].Name)}
		}
	}
	return nil
}

// reachableFrom runs a BFS from root over the directed graph, following
// incoming edges instead of outgoing ones when reverse is set.
func (t *Topology) reachableFrom(root NodeID, reverse bool) map[NodeID]bool {
	visited := map[NodeID]bool{root: true}
	frontier := []NodeID{root}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		links := t.nodes[cur].Out
		if reverse {
			links = t.nodes[cur].In
		}
		for _, eid := range links {
			next := t.edges[eid].To
			if reverse {
				next = t.edges[eid].From
			}
			if !visited[next] {
				visited[next] = true
				frontier = append(frontier, next)
			}
		}
	}
	return visited
}

// NumNodes returns the number of nodes in the topology.
func (t *Topology) NumNodes() int { return len(t.nodes) }

// NumEdges returns the number of edges in the topology.
func (t *Topology) NumEdges() int { return len(t.edges) }

// Node returns the node for the given handle. The returned pointer is
// read-only: the topology is frozen after build.
func (t *Topology) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Edge returns the edge for the given handle. Read-only, as for Node.
func (t *Topology) Edge(id EdgeID) *Edge {
	if id < 0 || int(id) >= len(t.edges) {
		return nil
	}
	return &t.edges[id]
}

// NodeByName resolves a node name to its handle.
func (t *Topology) NodeByName(name string) (NodeID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// NeighborsOut returns the outgoing edge handles of a node in stable priority
// order. The slice is a copy; callers may retain it.
func (t *Topology) NeighborsOut(id NodeID) []EdgeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	out := make([]EdgeID, len(n.Out))
	copy(out, n.Out)
	return out
}

// ResolveRoute selects the outgoing edge at node matching the desired travel
// direction. An empty direction selects the default route (highest priority
// outgoing edge). A NoRouteError is returned when no outgoing edge matches;
// callers recover by falling back to DefaultRoute.
func (t *Topology) ResolveRoute(id NodeID, direction string) (EdgeID, error) {
	n := t.Node(id)
	if n == nil || len(n.Out) == 0 {
		return NoEdge, &NoRouteError{Node: id, Direction: direction}
	}
	if direction == "" {
		return n.Out[0], nil
	}
	for _, eid := range n.Out {
		if t.edges[eid].Direction == direction {
			return eid, nil
		}
	}
	return NoEdge, &NoRouteError{Node: id, Direction: direction}
}

// DefaultRoute returns the highest priority outgoing edge of a node, or
// NoEdge if the node has none.
func (t *Topology) DefaultRoute(id NodeID) EdgeID {
	n := t.Node(id)
	if n == nil || len(n.Out) == 0 {
		return NoEdge
	}
	return n.Out[0]
}
