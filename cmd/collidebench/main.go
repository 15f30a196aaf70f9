// Package main builds a synthetic scene and times collision queries against it.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/gekko3d/collide"
	"github.com/gekko3d/collide/rt/core"
)

const (
	flagBoxes   = "boxes"
	flagQueries = "queries"
	flagSeed    = "seed"
	flagConfig  = "config"
	flagDebug   = "debug"
	flagStats   = "stats"

	arenaSize = 200.0
)

func main() {
	app := &cli.App{
		Name:  "collidebench",
		Usage: "time BVH builds and movement queries on a synthetic scene",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: flagBoxes, Value: 2000, Usage: "number of obstacle boxes"},
			&cli.IntFlag{Name: flagQueries, Value: 100000, Usage: "queries per measurement"},
			&cli.Int64Flag{Name: flagSeed, Value: 42, Usage: "scene and query seed"},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load collision configuration from `FILE`",
			},
			&cli.BoolFlag{Name: flagDebug, Usage: "enable debug logging"},
			&cli.BoolFlag{Name: flagStats, Usage: "print build statistics"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Int(flagBoxes) < 0 || c.Int(flagQueries) <= 0 {
		return errors.New("boxes must not be negative and queries must be positive")
	}

	cfg := collide.NewConfig()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = collide.ReadConfig(path); err != nil {
			return err
		}
	}
	logger := collide.NewDefaultLogger("collidebench", c.Bool(flagDebug))
	defer func() { _ = logger.Sync() }()

	world, err := collide.NewWorld(cfg, collide.WithLogger(logger))
	if err != nil {
		return err
	}
	defer world.Dispose()

	rng := rand.New(rand.NewSource(c.Int64(flagSeed)))
	meshes := scene(rng, c.Int(flagBoxes))

	report, err := world.Build(c.Context, meshes)
	if err != nil {
		return errors.Wrap(err, "building scene")
	}
	if c.Bool(flagStats) {
		fmt.Println(report.Debug.StatsString())
	}

	n := c.Int(flagQueries)
	rows := []measurement{
		measure("resolve_movement", n, func(i int) {
			p := randomFeet(rng)
			v := randomStep(rng)
			world.ResolveMovement(p, v, 0.4, 1.8)
		}),
		measure("resolve_ground", n, func(i int) {
			p := randomFeet(rng)
			world.ResolveGround(p, p.Y())
		}),
		measure("raycast_all", n, func(i int) {
			origin := randomFeet(rng).Add(mgl64.Vec3{0, 1, 0})
			world.Raycast(collide.LayerAll, origin, randomStep(rng).Normalize(), 50)
		}),
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Query", "Count", "Mean", "P50", "P95", "P99", "Max"})
	for _, m := range rows {
		tw.AppendRow(table.Row{m.name, m.count, m.mean, m.p50, m.p95, m.p99, m.max})
	}
	tw.AppendFooter(table.Row{"build", len(meshes), report.Duration.Round(time.Microsecond)})
	tw.Render()
	return nil
}

// scene is a ground plane with randomly placed axis-aligned boxes. Every
// tenth box is a low platform tagged as ground.
func scene(rng *rand.Rand, boxes int) []collide.MeshInput {
	half := arenaSize / 2
	floor := collide.MeshInput{
		ID:   "floor",
		Name: "floor",
		Vertices: core.QuadSoup(
			mgl64.Vec3{-half, 0, -half},
			mgl64.Vec3{-half, 0, half},
			mgl64.Vec3{half, 0, half},
			mgl64.Vec3{half, 0, -half},
		),
		Tags: collide.TagGround,
	}

	obstacles := lo.Times(boxes, func(i int) collide.MeshInput {
		x := (rng.Float64()*2 - 1) * half
		z := (rng.Float64()*2 - 1) * half
		size := mgl64.Vec3{0.5 + rng.Float64()*3, 0.5 + rng.Float64()*4, 0.5 + rng.Float64()*3}
		tags := collide.TagCollidable
		if i%10 == 0 {
			size[1] = 0.3
			tags = collide.TagGround
		}
		return collide.MeshInput{
			ID:       fmt.Sprintf("box-%d", i),
			Name:     fmt.Sprintf("box_%d", i),
			Vertices: core.BoxSoup(mgl64.Vec3{}, size),
			World:    mgl64.Translate3D(x, 0, z),
			Tags:     tags,
		}
	})
	return append([]collide.MeshInput{floor}, obstacles...)
}

func randomFeet(rng *rand.Rand) mgl64.Vec3 {
	half := arenaSize / 2
	return mgl64.Vec3{(rng.Float64()*2 - 1) * half, rng.Float64() * 0.5, (rng.Float64()*2 - 1) * half}
}

func randomStep(rng *rand.Rand) mgl64.Vec3 {
	return mgl64.Vec3{rng.Float64()*2 - 1, 0, rng.Float64()*2 - 1}.Mul(0.5)
}

type measurement struct {
	name                     string
	count                    int
	mean, p50, p95, p99, max time.Duration
}

func measure(name string, n int, query func(i int)) measurement {
	samples := make(stats.Float64Data, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		query(i)
		samples[i] = float64(time.Since(start).Nanoseconds())
	}

	ns := func(f func(stats.Float64Data) (float64, error)) time.Duration {
		v, err := f(samples)
		if err != nil {
			return 0
		}
		return time.Duration(v)
	}
	pct := func(p float64) func(stats.Float64Data) (float64, error) {
		return func(d stats.Float64Data) (float64, error) { return d.Percentile(p) }
	}
	return measurement{
		name:  name,
		count: n,
		mean:  ns(stats.Float64Data.Mean),
		p50:   ns(pct(50)),
		p95:   ns(pct(95)),
		p99:   ns(pct(99)),
		max:   ns(stats.Float64Data.Max),
	}
}
