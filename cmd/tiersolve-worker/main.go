// Command tiersolve-worker is the §4.K CLI: a single binary exposing the
// tier solver core as solve/solve-all/probe/status subcommands, and as the
// coordinator protocol's subprocess half in distributed mode.
//
// Grounded on the teacher's cmd/pk dispatcher (a flag.FlagSet per
// subcommand registered through pkg/cmdmain) and on cmd/pk/packblobs.go's
// shape for a subcommand that drives a long-running operation and reports
// progress via -verbose.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"tiersolve.dev/pkg/buildinfo"
	"tiersolve.dev/pkg/cmdutil"
	"tiersolve.dev/pkg/coordinator"
	"tiersolve.dev/pkg/database"
	"tiersolve.dev/pkg/gameapi"
	"tiersolve.dev/pkg/manager"
	"tiersolve.dev/pkg/probe"
	"tiersolve.dev/pkg/record"
	"tiersolve.dev/pkg/worker"
)

func main() {
	if err := cmdutil.Main(os.Args[1:]); err != nil {
		fmt.Fprintln(cmdutil.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cmdutil.RegisterCommand("solve", newSolveCmd)
	cmdutil.RegisterCommand("solve-all", newSolveAllCmd)
	cmdutil.RegisterCommand("probe", newProbeCmd)
	cmdutil.RegisterCommand("status", newStatusCmd)
	cmdutil.RegisterCommand("serve", newServeCmd)
	cmdutil.RegisterCommand("version", newVersionCmd)
}

// commonFlags are the connection parameters every subcommand needs to open
// a database.Manager against a registered Game API implementation.
type commonFlags struct {
	game      *string
	dataRoot  *string
	variantID *string
	dbName    *string
	verbose   *int
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		game:      fs.String("game", "", "registered Game API implementation name"),
		dataRoot:  fs.String("data-root", ".", "data root directory"),
		variantID: fs.String("variant", "default", "game variant id"),
		dbName:    fs.String("db", "solved", "database name under the variant directory"),
		verbose:   fs.Int("verbose", 0, "log verbosity (0, 1, or 2)"),
	}
}

func (c *commonFlags) openManager() (*gameapi.Capabilities, *database.Manager, error) {
	g, ok := gameapi.Lookup(*c.game)
	if !ok {
		return nil, nil, fmt.Errorf("tiersolve-worker: unknown -game %q", *c.game)
	}
	caps := gameapi.Build(g, gameapi.Options{PositionSymmetry: true, TierSymmetry: true})
	db, err := database.New(database.Config{
		DataRoot:  *c.dataRoot,
		GameName:  g.Name(),
		VariantID: *c.variantID,
		DBName:    *c.dbName,
	})
	if err != nil {
		return nil, nil, err
	}
	return caps, db, nil
}

type solveCmd struct {
	*commonFlags
	tier     *int64
	force    *bool
	memLimit *int64
}

func newSolveCmd(fs *flag.FlagSet) cmdutil.Command {
	return &solveCmd{
		commonFlags: addCommonFlags(fs),
		tier:        fs.Int64("tier", 0, "tier id to solve"),
		force:       fs.Bool("force", false, "re-solve even if already solved"),
		memLimit:    fs.Int64("memlimit", 0, "byte budget; 0 = unlimited"),
	}
}

func (c *solveCmd) Describe() string { return "solve a single tier and exit" }
func (c *solveCmd) Usage()           { fmt.Fprintln(cmdutil.Stderr, "Usage: tiersolve-worker solve -game NAME -tier N [flags]") }

func (c *solveCmd) RunCommand(args []string) error {
	caps, db, err := c.openManager()
	if err != nil {
		return err
	}
	defer db.Close()
	m := manager.New(caps, db)
	t := record.Tier(*c.tier)
	statuses, err := m.Solve(context.Background(), t, manager.Options{
		Worker: worker.Options{Force: *c.force, Verbose: *c.verbose, MemLimit: *c.memLimit},
	})
	logStatuses(*c.verbose, statuses)
	return err
}

type solveAllCmd struct {
	*commonFlags
	root     *int64
	workers  *int
	force    *bool
	memLimit *int64
}

func newSolveAllCmd(fs *flag.FlagSet) cmdutil.Command {
	return &solveAllCmd{
		commonFlags: addCommonFlags(fs),
		root:        fs.Int64("root", 0, "root tier id to discover the tier graph from"),
		workers:     fs.Int("workers", 1, "maximum tiers solved concurrently"),
		force:       fs.Bool("force", false, "re-solve even if already solved"),
		memLimit:    fs.Int64("memlimit", 0, "per-tier byte budget; 0 = unlimited"),
	}
}

func (c *solveAllCmd) Describe() string { return "solve every tier reachable from a root tier" }
func (c *solveAllCmd) Usage() {
	fmt.Fprintln(cmdutil.Stderr, "Usage: tiersolve-worker solve-all -game NAME [flags]")
}

func (c *solveAllCmd) RunCommand(args []string) error {
	caps, db, err := c.openManager()
	if err != nil {
		return err
	}
	defer db.Close()
	m := manager.New(caps, db)
	statuses, err := m.Solve(context.Background(), record.Tier(*c.root), manager.Options{
		Worker:  worker.Options{Force: *c.force, Verbose: *c.verbose, MemLimit: *c.memLimit},
		Workers: *c.workers,
	})
	logStatuses(*c.verbose, statuses)
	return err
}

type probeCmd struct {
	*commonFlags
	tier *int64
	pos  *int64
}

func newProbeCmd(fs *flag.FlagSet) cmdutil.Command {
	return &probeCmd{
		commonFlags: addCommonFlags(fs),
		tier:        fs.Int64("tier", 0, "tier id"),
		pos:         fs.Int64("pos", 0, "position within the tier"),
	}
}

func (c *probeCmd) Describe() string { return "print a position's solved value and remoteness" }
func (c *probeCmd) Usage() {
	fmt.Fprintln(cmdutil.Stderr, "Usage: tiersolve-worker probe -game NAME -tier N -pos P")
}

func (c *probeCmd) RunCommand(args []string) error {
	caps, db, err := c.openManager()
	if err != nil {
		return err
	}
	defer db.Close()
	p := probe.New(probe.Config{
		Capabilities: caps,
		PathOf:       db.TierPath,
		TierNameOf: func(t record.Tier) string {
			if name, ok := caps.TierName(t); ok {
				return name
			}
			return database.DecimalTierName(t)
		},
	})
	defer p.Close()
	tp := record.TierPosition{Tier: record.Tier(*c.tier), Position: record.Position(*c.pos)}
	v, err := p.Value(tp)
	if err != nil {
		return err
	}
	r, err := p.Remoteness(tp)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmdutil.Stdout, "%s %d\n", v, r)
	return nil
}

type statusCmd struct {
	*commonFlags
}

func newStatusCmd(fs *flag.FlagSet) cmdutil.Command {
	return &statusCmd{commonFlags: addCommonFlags(fs)}
}

func (c *statusCmd) Describe() string { return "print the tier-status table" }
func (c *statusCmd) Usage()           { fmt.Fprintln(cmdutil.Stderr, "Usage: tiersolve-worker status -game NAME [tier ...]") }

func (c *statusCmd) RunCommand(args []string) error {
	caps, db, err := c.openManager()
	if err != nil {
		return err
	}
	defer db.Close()
	for _, name := range args {
		st, err := db.Status(name)
		if err != nil {
			fmt.Fprintf(cmdutil.Stdout, "%s\terror: %v\n", name, err)
			continue
		}
		fmt.Fprintf(cmdutil.Stdout, "%s\t%s\n", name, st)
	}
	_ = caps
	return nil
}

func logStatuses(verbose int, statuses []manager.Status) {
	if verbose <= 0 {
		return
	}
	for _, st := range statuses {
		switch {
		case st.Solved:
			log.Printf("tier %s: solved", st.Name)
		case st.Skipped:
			log.Printf("tier %s: skipped (%v)", st.Name, st.Err)
		case st.Err != nil:
			log.Printf("tier %s: failed (%v)", st.Name, st.Err)
		}
	}
}

type serveCmd struct {
	*commonFlags
	memLimit *int64
}

func newServeCmd(fs *flag.FlagSet) cmdutil.Command {
	return &serveCmd{
		commonFlags: addCommonFlags(fs),
		memLimit:    fs.Int64("memlimit", 0, "per-tier byte budget; 0 = unlimited"),
	}
}

func (c *serveCmd) Describe() string {
	return "run as a coordinator/worker subprocess over stdin/stdout"
}
func (c *serveCmd) Usage() { fmt.Fprintln(cmdutil.Stderr, "Usage: tiersolve-worker serve -game NAME [flags]") }

func (c *serveCmd) RunCommand(args []string) error {
	caps, db, err := c.openManager()
	if err != nil {
		return err
	}
	defer db.Close()
	return runWorkerSubprocess(caps, db, worker.Options{Verbose: *c.verbose, MemLimit: *c.memLimit})
}

type versionCmd struct{}

func newVersionCmd(fs *flag.FlagSet) cmdutil.Command { return versionCmd{} }

func (versionCmd) Describe() string { return "print build version info" }
func (versionCmd) Usage()           { fmt.Fprintln(cmdutil.Stderr, "Usage: tiersolve-worker version") }

func (versionCmd) RunCommand(args []string) error {
	fmt.Fprintln(cmdutil.Stdout, buildinfo.Summary())
	return nil
}

// runWorkerSubprocess drives the coordinator/worker protocol over stdin and
// stdout (§4.J/§6), used when tiersolve-worker is launched as a distributed
// subprocess rather than invoked for a single tier: a deployment's own
// supervisor execs "tiersolve-worker serve" with stdin/stdout connected to
// the coordinator.
func runWorkerSubprocess(caps *gameapi.Capabilities, db *database.Manager, opts worker.Options) error {
	wk := coordinator.NewWorker(os.Stdin, os.Stdout)
	m := manager.New(caps, db)
	for {
		directive, err := wk.Check()
		if err != nil {
			return err
		}
		if directive.Terminate {
			return nil
		}
		if directive.Sleep || directive.Tier == "" {
			continue
		}
		var tierID int64
		if _, err := fmt.Sscanf(directive.Tier, "%d", &tierID); err != nil {
			continue
		}
		_, solveErr := m.Solve(context.Background(), record.Tier(tierID), manager.Options{Worker: opts})
		if _, err := wk.ReportDone(directive.Tier, solveErr); err != nil {
			return err
		}
	}
}
