package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/vueparty/petite"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	itersKey   = "iters"
	profileKey = "profile"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Propagation benchmarks for the petite reactive core",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "Number of timed writes per graph shape",
				Value: 100,
			},
			&cli.BoolFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to default.pgo",
				Value: false,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

var (
	ww = []int{1, 10, 100, 1_000}
	hh = []int{1, 10, 100, 1_000}
)

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool(profileKey) {
		f, err := os.Create("default.pgo")
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")
	iters := int(cmd.Uint(itersKey))

	benchmarkPropagate(iters, true)
	benchmarkBatched(iters, true)
	return nil
}

// w chains of h computeds hang off one store key; every write walks the
// whole graph down to the leaf watchers.
func benchmarkPropagate(iters int, shouldRender bool) {
	tbl := table.NewWriter()
	tbl.SetTitle("petite propagate")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rt := petite.NewRuntime(petite.WithErrorReporter(func(from any, err error) {
				log.Panic(err)
			}))
			store := petite.NewStore(rt, map[string]any{"src": 1})

			for i := 0; i < w; i++ {
				read := func() any {
					v, _ := store.Get("src")
					return v.(int) + 1
				}
				for j := 0; j < h; j++ {
					prev := read
					c := petite.NewComputed(rt, fmt.Sprintf("c%d_%d", i, j), func() any {
						return prev().(int) + 1
					})
					read = c.Value
				}
				last := read
				petite.NewWatcher(rt, func() any {
					return last()
				}, nil, petite.WatchOptions{})
			}

			for i := 0; i < iters; i++ {
				v, _ := store.Peek("src")
				start := time.Now()
				if err := store.Set("src", v.(int)+1); err != nil {
					log.Panic(err)
				}
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("propagate: %d * %d", w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
				},
			})
		}
	}

	if shouldRender {
		tbl.Render()
	}
}

// same graphs, but each timed tick batches 10 writes so the scheduler's
// coalescing shows up against the unbatched numbers.
func benchmarkBatched(iters int, shouldRender bool) {
	const writesPerTick = 10

	tbl := table.NewWriter()
	tbl.SetTitle("petite batched writes")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rt := petite.NewRuntime(petite.WithErrorReporter(func(from any, err error) {
				log.Panic(err)
			}))
			store := petite.NewStore(rt, map[string]any{"src": 1})

			for i := 0; i < w; i++ {
				read := func() any {
					v, _ := store.Get("src")
					return v.(int) + 1
				}
				for j := 0; j < h; j++ {
					prev := read
					c := petite.NewComputed(rt, fmt.Sprintf("c%d_%d", i, j), func() any {
						return prev().(int) + 1
					})
					read = c.Value
				}
				last := read
				petite.NewWatcher(rt, func() any {
					return last()
				}, nil, petite.WatchOptions{})
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				rt.Batch(func() {
					for j := 0; j < writesPerTick; j++ {
						v, _ := store.Peek("src")
						if err := store.Set("src", v.(int)+1); err != nil {
							log.Panic(err)
						}
					}
				})
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("batch %d: %d * %d", writesPerTick, w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
				},
			})
		}
	}

	if shouldRender {
		tbl.Render()
	}
}
