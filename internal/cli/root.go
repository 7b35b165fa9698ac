// Package cli implements the interfold command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/interfold/internal/logger"
	"github.com/mesh-intelligence/interfold/internal/paths"
	"github.com/mesh-intelligence/interfold/internal/sqlite"
	"github.com/mesh-intelligence/interfold/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errUsage marks malformed command lines.
var errUsage = errors.New("usage error")

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	user      string
	logLevel  string
	jsonMode  bool
}

// app is the state shared by one invocation's commands.
type app struct {
	flags     rootFlags
	configDir string
	config    *viper.Viper
	log       *logger.Log
}

// NewRootCmd creates the top-level "interfold" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "interfold",
		Short: "Hypergraph notes: atomic sets, intersections and an outline",
		Long: "Interfold stores named concepts (atomic sets), the combinations a user\n" +
			"writes about (intersections), and an editable outline of notes.",
		Version:            Version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: ./.interfold or the platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: ./.interfold-db)")
	pf.StringVar(&a.flags.user, "user", "", "user whose data to operate on (env INTERFOLD_USER)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default warn)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newSetCmd(a))
	root.AddCommand(newIntersectionCmd(a))
	root.AddCommand(newOutlineCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newImportCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes one command line and returns its exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// exitCode maps caller mistakes to 1 and everything else to 2.
func exitCode(err error) int {
	for _, userErr := range []error{
		errUsage,
		types.ErrNotFound,
		types.ErrValidation,
		types.ErrCycle,
		types.ErrInvalidMove,
		types.ErrUserRequired,
		types.ErrConstraintViolation,
	} {
		if errors.Is(err, userErr) {
			return exitUserError
		}
	}
	return exitSysError
}

// setup resolves directories, reads config.yaml and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	a.configDir = configDir

	a.config, err = loadConfig(configDir, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}

	build := logger.New().
		FromWriter(cmd.ErrOrStderr()).
		WithConsole().
		WithLevel(a.config.GetString(cfgKeyLogLevel)).
		With("cmd", cmd.Name())
	if path := a.config.GetString(cfgKeyLogFile); path != "" {
		abs, err := paths.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve log file: %w", err)
		}
		build = build.FromPath(abs)
	}
	a.log, err = build.Make()
	if err != nil {
		return err
	}
	a.log.Logger.Debug().Str("config_dir", configDir).Msg("configuration loaded")
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.log == nil {
		return nil
	}
	return a.log.Close()
}

func (a *app) logger() zerolog.Logger {
	if a.log == nil {
		return zerolog.Nop()
	}
	return a.log.Logger
}

// dataDir applies the data directory precedence chain.
func (a *app) dataDir() (string, error) {
	return paths.ResolveDataDir(a.flags.dataDir, a.config.GetString(cfgKeyDataDir))
}

// attach opens the backend. The caller must Detach it.
func (a *app) attach() (*sqlite.Backend, error) {
	dataDir, err := a.dataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	backend := sqlite.NewBackend(sqlite.WithLogger(a.logger()))
	cfg := types.Config{
		Backend: a.config.GetString(cfgKeyBackend),
		DataDir: dataDir,
	}
	if err := backend.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}
	return backend, nil
}

// withScope attaches the backend, scopes it to the configured user and runs
// fn, detaching afterwards.
func (a *app) withScope(cmd *cobra.Command, fn func(ctx context.Context, sc types.Scope) error) error {
	user := a.config.GetString(cfgKeyUser)
	if user == "" {
		return fmt.Errorf("%w: pass --user, set INTERFOLD_USER, or set user in %s",
			types.ErrUserRequired, paths.ConfigFile(a.configDir))
	}

	backend, err := a.attach()
	if err != nil {
		return err
	}
	defer backend.Detach()

	ctx := cmd.Context()
	sc, err := backend.Scope(ctx, user)
	if err != nil {
		return err
	}
	return fn(ctx, sc)
}

// exactArgs is cobra.ExactArgs with usage-error classification.
func exactArgs(n int) cobra.PositionalArgs {
	return classify(cobra.ExactArgs(n))
}

func minArgs(n int) cobra.PositionalArgs {
	return classify(cobra.MinimumNArgs(n))
}

func rangeArgs(lo, hi int) cobra.PositionalArgs {
	return classify(cobra.RangeArgs(lo, hi))
}

func classify(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}
