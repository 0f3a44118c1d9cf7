// grindstone drives a stateless generative worker through a flat backlog of
// content tasks, one iteration at a time, checkpointing every completed task
// into version control.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"grindstone/internal/checkpoint"
	"grindstone/internal/config"
	"grindstone/internal/events"
	"grindstone/internal/harness"
	"grindstone/internal/journal"
	"grindstone/internal/ledger"
	"grindstone/internal/logging"
	"grindstone/internal/manifest"
	"grindstone/internal/selector"
	"grindstone/internal/sentinel"
	"grindstone/internal/tui"
	"grindstone/internal/worker"
)

// Exit codes. Startup and integrity failures exit 1; the two soft-failure
// terminal states get distinct codes so wrappers can tell them apart.
const (
	exitOK         = 0
	exitFatal      = 1
	exitCapReached = 2
	exitStalled    = 3
)

func main() {
	os.Exit(run())
}

// cliFlags holds the flag overrides applied on top of the merged config.
type cliFlags struct {
	manifestPath   string
	ledgerPath     string
	journalPath    string
	artifactDir    string
	repoPath       string
	maxIterations  int
	stallThreshold int
	timeout        time.Duration
	taskSentinel   string
	allSentinel    string
	workerName     string
	withTUI        bool
	verbose        bool
}

func run() int {
	var flags cliFlags
	exitCode := exitOK

	rootCmd := &cobra.Command{
		Use:   "grindstone",
		Short: "Iteration harness for a stateless generative worker",
		Long: `grindstone repeatedly invokes an external generative worker against a task
manifest, committing one checkpoint per completed task, until the backlog is
exhausted or an iteration bound is hit.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runHarness(cmd, flags)
			exitCode = code
			return err
		},
	}

	fs := rootCmd.Flags()
	fs.StringVar(&flags.manifestPath, "manifest", "", "path to the task manifest (YAML)")
	fs.StringVar(&flags.ledgerPath, "ledger", "", "path to the progress ledger")
	fs.StringVar(&flags.journalPath, "journal", "", "path to the iteration log database")
	fs.StringVar(&flags.artifactDir, "artifacts", "", "directory for produced artifacts")
	fs.StringVar(&flags.repoPath, "repo", "", "path to the version-controlled working tree")
	fs.IntVar(&flags.maxIterations, "max-iterations", 0, "hard bound on iterations for this run")
	fs.IntVar(&flags.stallThreshold, "stall-threshold", 0, "consecutive failed iterations before giving up")
	fs.DurationVar(&flags.timeout, "timeout", 0, "per-invocation worker timeout")
	fs.StringVar(&flags.taskSentinel, "task-sentinel", "", "task completion token template (one %s for the task id)")
	fs.StringVar(&flags.allSentinel, "all-sentinel", "", "run completion token")
	fs.StringVar(&flags.workerName, "worker", "", "worker provider name from the config")
	fs.BoolVar(&flags.withTUI, "tui", false, "show the live monitor")
	fs.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		if exitCode == exitOK {
			exitCode = exitFatal
		}
	}
	return exitCode
}

// runHarness wires the stores, worker, and controller together and runs the
// loop. It returns the process exit code alongside any fatal error.
func runHarness(cmd *cobra.Command, flags cliFlags) (int, error) {
	logger, err := logging.New(flags.verbose)
	if err != nil {
		return exitFatal, fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadDefault()
	if err != nil {
		return exitFatal, fmt.Errorf("loading config: %w", err)
	}
	applyFlags(cmd, cfg, flags)

	// The worker credential is read exactly once, at startup. A missing
	// credential is a fatal configuration error, not something to rediscover
	// on every iteration.
	credential := os.Getenv(cfg.CredentialEnv)
	if credential == "" {
		return exitFatal, fmt.Errorf("environment variable %s is not set", cfg.CredentialEnv)
	}

	repoPath, err := filepath.Abs(cfg.RepoPath)
	if err != nil {
		return exitFatal, fmt.Errorf("resolving repo path: %w", err)
	}

	store, err := manifest.Load(resolve(repoPath, cfg.ManifestPath))
	if err != nil {
		return exitFatal, err
	}
	lgr, err := ledger.Load(resolve(repoPath, cfg.LedgerPath))
	if err != nil {
		return exitFatal, err
	}

	// The cross-consistency invariant is validated before the first iteration
	// so a corrupted state never reaches the worker.
	if err := selector.CheckIntegrity(store, lgr); err != nil {
		return exitFatal, err
	}

	// Signal-aware context for graceful shutdown; interrupts are honored at
	// iteration boundaries.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jrnl, err := journal.Open(ctx, resolve(repoPath, cfg.JournalPath))
	if err != nil {
		return exitFatal, err
	}
	defer jrnl.Close()

	parser, err := sentinel.New(cfg.TaskSentinel, cfg.AllSentinel)
	if err != nil {
		return exitFatal, err
	}

	provider, ok := cfg.Providers[cfg.Worker]
	if !ok {
		return exitFatal, fmt.Errorf("no provider configured for worker %q", cfg.Worker)
	}

	pm := worker.NewProcessManager()
	defer func() {
		if err := pm.KillAll(); err != nil {
			logger.Warn("failed to kill worker subprocesses", zap.Error(err))
		}
	}()

	w, err := worker.New(worker.Config{
		Type:       provider.Type,
		Command:    provider.Command,
		Model:      provider.Model,
		WorkDir:    repoPath,
		Credential: credential,
	}, pm)
	if err != nil {
		return exitFatal, fmt.Errorf("creating worker: %w", err)
	}
	defer w.Close()

	committer := checkpoint.New(checkpoint.Config{
		RepoPath:    repoPath,
		ArtifactDir: cfg.ArtifactDir,
	}, store, lgr, logger)

	bus := events.NewBus()
	defer bus.Close()

	controller := harness.New(harness.Config{
		MaxIterations:  cfg.MaxIterations,
		StallThreshold: cfg.StallThreshold,
		InvokeTimeout:  time.Duration(cfg.InvokeTimeout) * time.Second,
		LedgerTail:     cfg.LedgerTail,
		JournalTail:    cfg.JournalTail,
		OutputCap:      cfg.OutputCapBytes,
		WorkerType:     provider.Type,
	}, store, lgr, jrnl, w, parser, committer, bus, logger)

	summary, runErr := superviseRun(ctx, controller, bus, flags.withTUI, logger)

	if runErr != nil {
		var integrityErr *selector.IntegrityError
		if errors.As(runErr, &integrityErr) {
			return exitFatal, runErr
		}
		if errors.Is(runErr, context.Canceled) {
			report(summary, "interrupted")
			return exitFatal, nil
		}
		return exitFatal, runErr
	}

	report(summary, summary.Reason)
	code, ok := exitCodeFor(summary.Reason)
	if !ok {
		return exitFatal, fmt.Errorf("unknown exit reason %q", summary.Reason)
	}
	return code, nil
}

// exitCodeFor maps a terminal run reason onto the process exit code.
func exitCodeFor(reason string) (int, bool) {
	switch reason {
	case harness.ReasonExhausted:
		return exitOK, true
	case harness.ReasonCapReached:
		return exitCapReached, true
	case harness.ReasonStalled:
		return exitStalled, true
	default:
		return exitFatal, false
	}
}

// superviseRun executes the controller, optionally alongside the TUI monitor.
// The controller always runs to its own conclusion; closing the monitor early
// does not stop the loop.
func superviseRun(ctx context.Context, controller *harness.Controller, bus *events.Bus, withTUI bool, logger *zap.Logger) (*harness.Summary, error) {
	var summary *harness.Summary

	g, gctx := errgroup.WithContext(ctx)

	var program *tea.Program
	if withTUI {
		program = tea.NewProgram(tui.New(bus), tea.WithAltScreen())
		g.Go(func() error {
			if _, err := program.Run(); err != nil {
				logger.Warn("monitor exited with error", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		var err error
		summary, err = controller.Run(gctx)
		if program != nil {
			// Give the monitor a moment to render the final event, then close it.
			time.Sleep(200 * time.Millisecond)
			program.Quit()
		}
		return err
	})

	err := g.Wait()
	return summary, err
}

// applyFlags overlays explicitly set CLI flags onto the merged config.
func applyFlags(cmd *cobra.Command, cfg *config.HarnessConfig, flags cliFlags) {
	set := cmd.Flags().Changed

	if set("manifest") {
		cfg.ManifestPath = flags.manifestPath
	}
	if set("ledger") {
		cfg.LedgerPath = flags.ledgerPath
	}
	if set("journal") {
		cfg.JournalPath = flags.journalPath
	}
	if set("artifacts") {
		cfg.ArtifactDir = flags.artifactDir
	}
	if set("repo") {
		cfg.RepoPath = flags.repoPath
	}
	if set("max-iterations") {
		cfg.MaxIterations = flags.maxIterations
	}
	if set("stall-threshold") {
		cfg.StallThreshold = flags.stallThreshold
	}
	if set("timeout") {
		cfg.InvokeTimeout = int(flags.timeout.Seconds())
	}
	if set("task-sentinel") {
		cfg.TaskSentinel = flags.taskSentinel
	}
	if set("all-sentinel") {
		cfg.AllSentinel = flags.allSentinel
	}
	if set("worker") {
		cfg.Worker = flags.workerName
	}
}

// resolve joins a possibly-relative state path to the repo root.
func resolve(repoPath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoPath, p)
}

// report prints the final run report to stdout: how much was done, what
// remains, and why the process is exiting.
func report(summary *harness.Summary, reason string) {
	if summary == nil {
		return
	}

	fmt.Printf("grindstone: %s after %d iteration(s)\n", reason, summary.Iterations)
	fmt.Printf("  committed this run: %d\n", summary.Committed)
	fmt.Printf("  completed total:    %d\n", summary.Completed)
	if len(summary.Remaining) == 0 {
		fmt.Println("  remaining:          none")
	} else {
		fmt.Printf("  remaining:          %d (%s)\n", len(summary.Remaining), joinMax(summary.Remaining, 10))
	}
}

// joinMax joins up to n items, eliding the rest.
func joinMax(items []string, n int) string {
	if len(items) <= n {
		out := ""
		for i, it := range items {
			if i > 0 {
				out += ", "
			}
			out += it
		}
		return out
	}
	return joinMax(items[:n], n) + fmt.Sprintf(", ... %d more", len(items)-n)
}
