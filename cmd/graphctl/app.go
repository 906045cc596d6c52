package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"git.canoozie.net/riddling/propgraph/pkg/config"
	"git.canoozie.net/riddling/propgraph/pkg/graph"
	"git.canoozie.net/riddling/propgraph/pkg/model"
	"git.canoozie.net/riddling/propgraph/pkg/query"
)

// env holds what Before resolved for the subcommands.
type env struct {
	out    io.Writer
	cfg    config.Config
	logger *logrus.Logger
}

func newApp(out io.Writer) *cli.App {
	e := &env{out: out}
	return &cli.App{
		Name:      "graphctl",
		Usage:     "inspect and maintain a property graph",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "graph location, overrides the configuration",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "logrus level name, overrides the configuration",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if p := c.String("path"); p != "" {
				cfg.Path = p
			}
			if l := c.String("log-level"); l != "" {
				cfg.LogLevel = l
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}
			e.cfg, e.logger = cfg, logger
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "demo",
				Usage:  "create a small social graph and query it",
				Action: e.demo,
			},
			{
				Name:   "dump",
				Usage:  "print every node and edge as JSON lines",
				Action: e.dump,
			},
			{
				Name:   "stats",
				Usage:  "print object counts and durable state",
				Action: e.stats,
			},
			{
				Name:   "checkpoint",
				Usage:  "fold the write-ahead log into the checkpoint",
				Action: e.checkpoint,
			},
			{
				Name:      "index",
				Usage:     "create a property index",
				ArgsUsage: "<nodes|edges> <key>",
				Action:    e.index,
			},
			{
				Name:      "query",
				Usage:     "run a query, e.g. FIND_NODES(tag: \"Person\", key: \"Age\", op: \"ge\", value: \"int:26\")",
				ArgsUsage: "<query>",
				Action:    e.query,
			},
		},
	}
}

func (e *env) open(mode graph.Mode) (*graph.Graph, error) {
	opts, err := e.cfg.Options(e.logger)
	if err != nil {
		return nil, err
	}
	return graph.Open(e.cfg.Path, mode, opts...)
}

// withGraph opens the configured graph, runs fn and closes it, keeping the
// first error.
func (e *env) withGraph(mode graph.Mode, fn func(*graph.Graph) error) (err error) {
	g, err := e.open(mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := g.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(g)
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	return enc.Encode(v)
}

type person struct {
	name string
	age  int64
}

func (e *env) demo(c *cli.Context) error {
	return e.withGraph(graph.ReadWrite|graph.Create, func(g *graph.Graph) error {
		tx, err := g.Begin(c.Context, graph.TxOptions{Exclusive: true})
		if err != nil {
			return err
		}
		defer tx.Abort()

		var people []graph.Node
		for _, p := range []person{{"katelin", 26}, {"philip", 31}, {"alain", 44}, {"vishakha", 29}} {
			n, err := tx.AddNode("Person")
			if err != nil {
				return err
			}
			if err := n.SetProperty(tx, "Name", model.NewString(p.name)); err != nil {
				return err
			}
			if err := n.SetProperty(tx, "Age", model.NewInt(p.age)); err != nil {
				return err
			}
			people = append(people, n)
		}
		for i := 1; i < len(people); i++ {
			edge, err := tx.AddEdge(people[i-1], people[i], "KNOWS")
			if err != nil {
				return err
			}
			if err := edge.SetProperty(tx, "Since", model.NewInt(int64(2010+i))); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		e.logger.WithField("action", "demo").Infof("created %d people", len(people))

		rtx, err := g.Begin(c.Context, graph.TxOptions{ReadOnly: true})
		if err != nil {
			return err
		}
		defer rtx.Abort()

		between, err := model.GtLt("Name", model.NewString("f"), model.NewString("s"))
		if err != nil {
			return err
		}
		if err := e.printNodes(rtx, graph.QueryOptions{Tag: "Person", Predicate: &between}); err != nil {
			return err
		}

		path, err := graph.ShortestPath(rtx, people[0], people[len(people)-1], graph.WalkOptions{Direction: graph.Outgoing, Tag: "KNOWS"})
		if err != nil {
			return err
		}
		ids := make([]uint64, len(path))
		for i, n := range path {
			ids[i] = n.ID()
		}
		return e.print(map[string]any{"path": ids})
	})
}

func (e *env) printNodes(tx *graph.Tx, opts graph.QueryOptions) error {
	it, err := tx.Nodes(opts)
	if err != nil {
		return err
	}
	return it.ForEach(func(n graph.Node) error {
		rec, err := nodeRecord(tx, n)
		if err != nil {
			return err
		}
		return e.print(rec)
	})
}

type objectRecord struct {
	Kind        string         `json:"kind"`
	ID          uint64         `json:"id"`
	Tag         string         `json:"tag,omitempty"`
	Source      uint64         `json:"source,omitempty"`
	Destination uint64         `json:"destination,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

func properties(it *graph.Iterator[graph.PropertyEntry], err error) (map[string]any, error) {
	entries, err := graph.Collect(it, err)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	props := make(map[string]any, len(entries))
	for _, p := range entries {
		props[p.Key] = p.Value.Interface()
	}
	return props, nil
}

func nodeRecord(tx *graph.Tx, n graph.Node) (objectRecord, error) {
	tag, err := n.Tag(tx)
	if err != nil {
		return objectRecord{}, err
	}
	props, err := properties(n.Properties(tx))
	if err != nil {
		return objectRecord{}, err
	}
	return objectRecord{Kind: "node", ID: n.ID(), Tag: tag, Properties: props}, nil
}

func edgeRecord(tx *graph.Tx, edge graph.Edge) (objectRecord, error) {
	tag, err := edge.Tag(tx)
	if err != nil {
		return objectRecord{}, err
	}
	src, err := edge.Source(tx)
	if err != nil {
		return objectRecord{}, err
	}
	dst, err := edge.Destination(tx)
	if err != nil {
		return objectRecord{}, err
	}
	props, err := properties(edge.Properties(tx))
	if err != nil {
		return objectRecord{}, err
	}
	return objectRecord{
		Kind:        "edge",
		ID:          edge.ID(),
		Tag:         tag,
		Source:      src.ID(),
		Destination: dst.ID(),
		Properties:  props,
	}, nil
}

func (e *env) dump(c *cli.Context) error {
	return e.withGraph(graph.ReadOnly, func(g *graph.Graph) error {
		tx, err := g.Begin(c.Context, graph.TxOptions{ReadOnly: true})
		if err != nil {
			return err
		}
		defer tx.Abort()

		if err := e.printNodes(tx, graph.QueryOptions{}); err != nil {
			return err
		}
		edges, err := tx.Edges(graph.QueryOptions{})
		if err != nil {
			return err
		}
		return edges.ForEach(func(edge graph.Edge) error {
			rec, err := edgeRecord(tx, edge)
			if err != nil {
				return err
			}
			return e.print(rec)
		})
	})
}

func (e *env) stats(c *cli.Context) error {
	return e.withGraph(graph.ReadOnly, func(g *graph.Graph) error {
		st, err := g.Stats(c.Context)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "uuid:     %s\n", st.UUID)
		fmt.Fprintf(e.out, "nodes:    %d\n", st.Nodes)
		fmt.Fprintf(e.out, "edges:    %d\n", st.Edges)
		fmt.Fprintf(e.out, "last seq: %d\n", st.LastSeq)
		fmt.Fprintf(e.out, "wal:      %d bytes\n", st.WALBytes)
		printTags(e.out, "node tag", st.NodeTags)
		printTags(e.out, "edge tag", st.EdgeTags)
		for _, k := range st.NodeIndexes {
			fmt.Fprintf(e.out, "index:    nodes.%s\n", k)
		}
		for _, k := range st.EdgeIndexes {
			fmt.Fprintf(e.out, "index:    edges.%s\n", k)
		}
		return nil
	})
}

func printTags(w io.Writer, label string, tags map[string]uint64) {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %q %d\n", label, name, tags[name])
	}
}

func (e *env) checkpoint(c *cli.Context) error {
	return e.withGraph(graph.ReadWrite, func(g *graph.Graph) error {
		return g.Checkpoint(c.Context)
	})
}

func (e *env) index(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("%w: index takes <nodes|edges> <key>", model.ErrInvalidArgument)
	}
	var target model.IndexTarget
	switch c.Args().Get(0) {
	case "nodes", "node":
		target = model.IndexNodes
	case "edges", "edge":
		target = model.IndexEdges
	default:
		return fmt.Errorf("%w: unknown index target %q", model.ErrInvalidArgument, c.Args().Get(0))
	}
	return e.withGraph(graph.ReadWrite, func(g *graph.Graph) error {
		return g.CreateIndex(c.Context, target, c.Args().Get(1))
	})
}

func (e *env) query(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("%w: query takes one argument", model.ErrInvalidArgument)
	}
	q, err := query.Parse(c.Args().First())
	if err != nil {
		return err
	}
	return e.withGraph(graph.ReadOnly, func(g *graph.Graph) error {
		tx, err := g.Begin(c.Context, graph.TxOptions{ReadOnly: true})
		if err != nil {
			return err
		}
		defer tx.Abort()
		res, err := tx.Execute(q)
		if err != nil {
			return err
		}
		return e.print(res)
	})
}
