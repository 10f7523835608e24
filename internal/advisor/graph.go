// Package advisor walks the insurance assistant question graph to a
// recommended product.
package advisor

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/espasatel/espasatel/internal/catalog"
)

//go:embed flow.yaml
var defaultFlow []byte

// Start is the entry node of every walk.
const Start NodeID = "start"

// MaxDepth bounds the number of answers between Start and any result.
const MaxDepth = 4

var (
	// ErrInvalidGraph wraps every configuration error found while building a graph.
	ErrInvalidGraph = eris.New("advisor: invalid graph")
	// ErrUnknownNode is returned when a node id is not in the graph.
	ErrUnknownNode = eris.New("advisor: unknown node")
	// ErrUnknownAnswer is returned when an answer is not an option of the current question.
	ErrUnknownAnswer = eris.New("advisor: unknown answer")
	// ErrNotQuestion is returned when advancing from a result node.
	ErrNotQuestion = eris.New("advisor: node is not a question")
	// ErrIncomplete is returned when a walk runs out of answers before a result.
	ErrIncomplete = eris.New("advisor: walk ended before a result")
	// ErrExtraAnswers is returned when answers remain after a result was reached.
	ErrExtraAnswers = eris.New("advisor: answers left after result")
)

// NodeID names a node in the graph.
type NodeID string

// Node is either a *Question or a *Result.
type Node interface {
	NodeID() NodeID
	isNode()
}

// Option is one answer to a question and the node it leads to.
type Option struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
	Next  NodeID `yaml:"next" json:"next"`
}

// Question asks the user to pick one of its options.
type Question struct {
	ID      NodeID   `yaml:"-" json:"id"`
	Text    string   `yaml:"text" json:"text"`
	Options []Option `yaml:"options" json:"options"`
}

// Result is a terminal recommendation.
type Result struct {
	ID        NodeID              `yaml:"-" json:"id"`
	Product   catalog.ProductCode `yaml:"product" json:"product"`
	Title     string              `yaml:"title" json:"title"`
	Rationale string              `yaml:"rationale" json:"rationale"`
}

// NodeID implements Node.
func (q *Question) NodeID() NodeID { return q.ID }

func (*Question) isNode() {}

// NodeID implements Node.
func (r *Result) NodeID() NodeID { return r.ID }

func (*Result) isNode() {}

// option returns the option with the given value.
func (q *Question) option(value string) (Option, bool) {
	for _, o := range q.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// Graph is a validated, immutable question graph. Safe for concurrent use.
type Graph struct {
	nodes map[NodeID]Node
}

type flowDoc struct {
	Questions map[NodeID]*Question `yaml:"questions"`
	Results   map[NodeID]*Result   `yaml:"results"`
}

// Default returns the compiled-in assistant graph. It panics if the embedded
// flow fails validation.
func Default() *Graph {
	g, err := Load(bytes.NewReader(defaultFlow))
	if err != nil {
		panic(err)
	}
	return g
}

// LoadFile reads and validates a graph from a YAML file.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "advisor: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Load(f)
}

// Load decodes a YAML flow document and validates it.
func Load(r io.Reader) (*Graph, error) {
	var doc flowDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "advisor: decode flow")
	}

	nodes := make(map[NodeID]Node, len(doc.Questions)+len(doc.Results))
	for id, q := range doc.Questions {
		if q == nil {
			return nil, eris.Wrapf(ErrInvalidGraph, "question %q is empty", id)
		}
		q.ID = id
		nodes[id] = q
	}
	for id, r := range doc.Results {
		if r == nil {
			return nil, eris.Wrapf(ErrInvalidGraph, "result %q is empty", id)
		}
		if _, dup := nodes[id]; dup {
			return nil, eris.Wrapf(ErrInvalidGraph, "node %q is both a question and a result", id)
		}
		r.ID = id
		nodes[id] = r
	}
	return NewGraph(nodes)
}

// NewGraph validates nodes and returns a graph over them. Validation rejects
// dangling references, cycles, paths longer than MaxDepth, nodes unreachable
// from Start, unknown product codes and ambiguous options.
func NewGraph(nodes map[NodeID]Node) (*Graph, error) {
	g := &Graph{nodes: nodes}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) validate() error {
	if _, ok := g.nodes[Start].(*Question); !ok {
		return eris.Wrapf(ErrInvalidGraph, "start node %q missing or not a question", Start)
	}

	for id, n := range g.nodes {
		if n.NodeID() != id {
			return eris.Wrapf(ErrInvalidGraph, "node keyed %q reports id %q", id, n.NodeID())
		}
		switch n := n.(type) {
		case *Question:
			if len(n.Options) == 0 {
				return eris.Wrapf(ErrInvalidGraph, "question %q has no options", id)
			}
			values := make(map[string]bool, len(n.Options))
			for _, o := range n.Options {
				if values[o.Value] {
					return eris.Wrapf(ErrInvalidGraph, "question %q repeats option %q", id, o.Value)
				}
				values[o.Value] = true
				if _, ok := g.nodes[o.Next]; !ok {
					return eris.Wrapf(ErrInvalidGraph, "question %q option %q points to missing node %q", id, o.Value, o.Next)
				}
			}
		case *Result:
			if !n.Product.Valid() {
				return eris.Wrapf(ErrInvalidGraph, "result %q has unknown product %q", id, n.Product)
			}
		}
	}

	reached := make(map[NodeID]bool, len(g.nodes))
	onPath := make(map[NodeID]bool)
	if err := g.visit(Start, 0, onPath, reached); err != nil {
		return err
	}
	for id := range g.nodes {
		if !reached[id] {
			return eris.Wrapf(ErrInvalidGraph, "node %q is unreachable from %q", id, Start)
		}
	}
	return nil
}

func (g *Graph) visit(id NodeID, depth int, onPath, reached map[NodeID]bool) error {
	if onPath[id] {
		return eris.Wrapf(ErrInvalidGraph, "cycle through %q", id)
	}
	reached[id] = true

	q, ok := g.nodes[id].(*Question)
	if !ok {
		return nil
	}
	if depth >= MaxDepth {
		return eris.Wrapf(ErrInvalidGraph, "question %q sits beyond depth %d", id, MaxDepth)
	}

	onPath[id] = true
	defer delete(onPath, id)
	for _, o := range q.Options {
		if err := g.visit(o.Next, depth+1, onPath, reached); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the node with the given id.
func (g *Graph) Resolve(id NodeID) (Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownNode, "%q", id)
	}
	return n, nil
}

// Advance returns the node that answer leads to from question id.
func (g *Graph) Advance(id NodeID, answer string) (NodeID, error) {
	n, err := g.Resolve(id)
	if err != nil {
		return "", err
	}
	q, ok := n.(*Question)
	if !ok {
		return "", eris.Wrapf(ErrNotQuestion, "%q", id)
	}
	o, ok := q.option(answer)
	if !ok {
		return "", eris.Wrapf(ErrUnknownAnswer, "%q for question %q", answer, id)
	}
	return o.Next, nil
}

// Walk answers questions from Start in order and returns the result reached
// together with the visited node ids. All answers must be consumed.
func (g *Graph) Walk(answers ...string) (*Result, []NodeID, error) {
	id := Start
	path := []NodeID{id}
	for i := 0; ; i++ {
		n, err := g.Resolve(id)
		if err != nil {
			return nil, path, err
		}
		if r, ok := n.(*Result); ok {
			if i < len(answers) {
				return nil, path, eris.Wrapf(ErrExtraAnswers, "%d unused", len(answers)-i)
			}
			return r, path, nil
		}
		if i >= len(answers) {
			return nil, path, eris.Wrapf(ErrIncomplete, "waiting at %q", id)
		}
		id, err = g.Advance(id, answers[i])
		if err != nil {
			return nil, path, err
		}
		path = append(path, id)
	}
}

// Path is one complete walk from Start to a result.
type Path struct {
	Answers []string
	Result  NodeID
}

// Paths enumerates every answer sequence from Start, depth first in option
// order.
func (g *Graph) Paths() []Path {
	var out []Path
	var walk func(id NodeID, answers []string)
	walk = func(id NodeID, answers []string) {
		switch n := g.nodes[id].(type) {
		case *Result:
			out = append(out, Path{Answers: slices.Clone(answers), Result: id})
		case *Question:
			for _, o := range n.Options {
				walk(o.Next, append(answers, o.Value))
			}
		}
	}
	walk(Start, nil)
	return out
}

// Results returns every result node, sorted by id.
func (g *Graph) Results() []*Result {
	var out []*Result
	for _, n := range g.nodes {
		if r, ok := n.(*Result); ok {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b *Result) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out
}
