package main

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yaoapp/signals/config"
	"github.com/yaoapp/signals/dispatch"
	"github.com/yaoapp/signals/signal"
	"github.com/yaoapp/signals/types"
)

type benchOptions struct {
	Workers   int
	Signals   int
	Slots     int
	Emits     int
	FailEvery int
	Priority  string
}

type benchResult struct {
	Tasks      int64
	Failures   int64
	Rejected   int
	Workers    int
	Duration   time.Duration
	Throughput float64
}

var runOpts = benchOptions{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Emit a synthetic load and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := bench(runOpts)
		if err != nil {
			return err
		}
		summary(cmd.OutOrStdout(), runOpts, res)
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.IntVarP(&runOpts.Workers, "workers", "w", config.Conf.Workers, "Maximum worker goroutines")
	f.IntVarP(&runOpts.Signals, "signals", "s", 4, "Number of signals")
	f.IntVarP(&runOpts.Slots, "slots", "n", 8, "Slots connected to each signal")
	f.IntVarP(&runOpts.Emits, "emits", "m", 1000, "Emissions per signal")
	f.IntVar(&runOpts.FailEvery, "fail-every", 0, "Make every Nth slot invocation fail (0 disables)")
	f.StringVarP(&runOpts.Priority, "priority", "p", config.Conf.Priority, "Signal priority, by name or number")
}

func bench(o benchOptions) (*benchResult, error) {
	if o.Signals < 1 || o.Slots < 1 || o.Emits < 0 {
		return nil, fmt.Errorf("sigbench: signals and slots must be positive, emits must not be negative")
	}
	priority, err := types.LookupPriority(o.Priority)
	if err != nil {
		return nil, err
	}

	var calls, failures atomic.Int64
	hub := dispatch.NewHub(
		dispatch.MaxWorkers(o.Workers),
		dispatch.WorkerPrefix("sigbench"),
		dispatch.WithReporter(dispatch.ReporterFunc(func(*types.Failure) { failures.Add(1) })),
	)
	defer hub.Shutdown()

	sig := types.Sig(types.TypeOf[int](), types.TypeOf[string]())
	signals := make([]*signal.Signal, o.Signals)
	for i := range signals {
		s, err := signal.New([]types.Signature{sig},
			signal.Named(fmt.Sprintf("bench.%d", i)),
			signal.WithHub(hub),
			signal.WithPriority(priority),
		)
		if err != nil {
			return nil, err
		}
		for j := 0; j < o.Slots; j++ {
			slot := signal.Func2(func(n int, _ string) error {
				c := calls.Add(1)
				if o.FailEvery > 0 && c%int64(o.FailEvery) == 0 {
					return fmt.Errorf("sigbench: synthetic failure %d", c)
				}
				return nil
			})
			if err := s.Connect(slot); err != nil {
				return nil, err
			}
		}
		signals[i] = s
	}

	rejected := 0
	start := time.Now()
	for n := 0; n < o.Emits; n++ {
		for _, s := range signals {
			if err := s.Emit(n, s.Name()); err != nil {
				rejected++
			}
		}
	}
	hub.Join()
	elapsed := time.Since(start)

	res := &benchResult{
		Tasks:    calls.Load(),
		Failures: failures.Load(),
		Rejected: rejected,
		Workers:  hub.Stats().Workers,
		Duration: elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		res.Throughput = float64(res.Tasks) / secs
	}
	return res, nil
}

func summary(w io.Writer, o benchOptions, r *benchResult) {
	title := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	title.Fprintln(w, "sigbench")
	fmt.Fprintf(w, "  signals      %d x %d slots, %d emits each\n", o.Signals, o.Slots, o.Emits)
	fmt.Fprintf(w, "  workers      %d started (max %d)\n", r.Workers, o.Workers)
	ok.Fprintf(w, "  tasks        %d\n", r.Tasks)
	if r.Failures > 0 {
		bad.Fprintf(w, "  failures     %d\n", r.Failures)
	} else {
		ok.Fprintf(w, "  failures     0\n")
	}
	if r.Rejected > 0 {
		bad.Fprintf(w, "  rejected     %d\n", r.Rejected)
	}
	fmt.Fprintf(w, "  duration     %s\n", r.Duration.Round(time.Microsecond))
	fmt.Fprintf(w, "  throughput   %.0f tasks/s\n", r.Throughput)
}
