// Package testutil provides tree payload fixtures for tests.
// The seeded generators are deterministic; the rapid generators drive
// property tests.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/goccy/go-json"
	"pgregory.net/rapid"
)

// TreeFixture is a payload node before encoding.
type TreeFixture struct {
	Name     string
	Attrs    map[string]string
	Children []*TreeFixture
}

// MarshalJSON encodes the fixture in the payload shape: name, children and
// the attributes as sibling keys.
func (f *TreeFixture) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(f.Attrs)+2)
	for k, v := range f.Attrs {
		obj[k] = v
	}
	obj["name"] = f.Name
	if len(f.Children) > 0 {
		obj["children"] = f.Children
	}
	return json.Marshal(obj)
}

// Payload encodes the fixture. Fixtures are always encodable.
func (f *TreeFixture) Payload() []byte {
	data, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	return data
}

// Size counts the nodes in the fixture.
func (f *TreeFixture) Size() int {
	n := 1
	for _, c := range f.Children {
		n += c.Size()
	}
	return n
}

// Leaf is a childless fixture node with a file_analysis attribute.
func Leaf(name, analysis string) *TreeFixture {
	return &TreeFixture{Name: name, Attrs: map[string]string{"file_analysis": analysis}}
}

// Dir is a fixture node with children and no attributes.
func Dir(name string, children ...*TreeFixture) *TreeFixture {
	return &TreeFixture{Name: name, Children: children}
}

// Scenario is the four node tree used throughout the tests:
//
//	root
//	├── a
//	└── b
//	    └── c
func Scenario() *TreeFixture {
	return Dir("root",
		Leaf("a", "first leaf"),
		Dir("b", Leaf("c", "nested leaf")),
	)
}

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed        int64  // 0 uses the current time
	NamePrefix  string // default "node"
	AnalysisPct int    // percentage of nodes given a file_analysis
}

// DefaultConfig is deterministic with half of the nodes annotated.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{Seed: 42, NamePrefix: "node", AnalysisPct: 50}
}

// Generator builds fixtures of various shapes.
type Generator struct {
	cfg  GeneratorConfig
	rng  *rand.Rand
	next int
}

// New creates a Generator.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "node"
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

func (g *Generator) node(children ...*TreeFixture) *TreeFixture {
	name := fmt.Sprintf("%s-%d", g.cfg.NamePrefix, g.next)
	g.next++
	f := &TreeFixture{Name: name, Children: children}
	if g.rng.Intn(100) < g.cfg.AnalysisPct {
		f.Attrs = map[string]string{"file_analysis": "analysis of " + name}
	}
	return f
}

// Chain is a single path of the given length.
func (g *Generator) Chain(length int) *TreeFixture {
	root := g.node()
	cur := root
	for i := 1; i < length; i++ {
		child := g.node()
		cur.Children = []*TreeFixture{child}
		cur = child
	}
	return root
}

// Star is a root with spokes leaf children.
func (g *Generator) Star(spokes int) *TreeFixture {
	root := g.node()
	for i := 0; i < spokes; i++ {
		root.Children = append(root.Children, g.node())
	}
	return root
}

// Balanced is a complete tree of the given depth and fan-out.
func (g *Generator) Balanced(depth, breadth int) *TreeFixture {
	root := g.node()
	if depth <= 1 {
		return root
	}
	for i := 0; i < breadth; i++ {
		root.Children = append(root.Children, g.Balanced(depth-1, breadth))
	}
	return root
}

// Random grows a tree of size nodes by attaching each new node under a
// uniformly chosen existing one.
func (g *Generator) Random(size int) *TreeFixture {
	root := g.node()
	all := []*TreeFixture{root}
	for i := 1; i < size; i++ {
		parent := all[g.rng.Intn(len(all))]
		child := g.node()
		parent.Children = append(parent.Children, child)
		all = append(all, child)
	}
	return root
}

// RapidTree generates fixtures of up to maxNodes nodes for property tests.
// Names are drawn from a small alphabet so substring queries hit often.
func RapidTree(maxNodes int) *rapid.Generator[*TreeFixture] {
	return rapid.Custom(func(t *rapid.T) *TreeFixture {
		size := rapid.IntRange(1, maxNodes).Draw(t, "size")
		name := rapid.StringMatching(`[a-cA-C]{1,3}`)
		all := make([]*TreeFixture, 0, size)
		for i := 0; i < size; i++ {
			f := &TreeFixture{Name: name.Draw(t, "name")}
			if rapid.Bool().Draw(t, "annotated") {
				f.Attrs = map[string]string{"file_analysis": name.Draw(t, "analysis")}
			}
			if i > 0 {
				parent := all[rapid.IntRange(0, i-1).Draw(t, "parent")]
				parent.Children = append(parent.Children, f)
			}
			all = append(all, f)
		}
		return all[0]
	})
}
