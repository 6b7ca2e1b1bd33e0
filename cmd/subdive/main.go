// subdive - DNS reconnaissance toolkit: wildcard detection, mass resolution,
// reverse lookups, connect scanning and ownership aggregation
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jhaxce/subdive/internal/colors"
	"github.com/jhaxce/subdive/internal/logging"
	"github.com/jhaxce/subdive/internal/version"
	"github.com/jhaxce/subdive/pkg/core"
	"github.com/jhaxce/subdive/pkg/output"
	"github.com/jhaxce/subdive/pkg/scanner"
	"github.com/jhaxce/subdive/pkg/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit statuses
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

// usageError marks errors caused by invalid flags, arguments or configuration
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// app carries state shared by every subcommand
type app struct {
	cli        *core.Config
	configPath string
	input      string

	config    *core.Config
	logger    *logrus.Logger
	formatter *output.Formatter
	writer    *output.Writer
	progress  *output.Progress
	useColors bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cli: core.DefaultConfig()}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()

	code := exitCode(err)
	if err != nil {
		if code == exitInterrupted {
			fmt.Fprintln(os.Stderr, colors.Red.Sprint("\n[*]-Received keyboard interrupt! Shutting down..."))
		} else {
			fmt.Fprintln(os.Stderr, colors.Red.Sprintf("Error: %s", err))
		}
	}
	os.Exit(code)
}

func exitCode(err error) int {
	var ue usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, core.ErrInterrupted), errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.As(err, &ue):
		return exitUsage
	default:
		return exitFailure
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           version.AppName,
		Short:         "DNS reconnaissance toolkit",
		Long:          "subdive detects wildcard DNS zones, mass-resolves candidate subdomains and probes the discovered addresses.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})
	root.SetVersionTemplate(fmt.Sprintf("%s v{{.Version}}\nGo version: %s\nOS/Arch: %s/%s\n",
		version.AppName, runtime.Version(), runtime.GOOS, runtime.GOARCH))

	cli := a.cli
	fs := root.PersistentFlags()
	fs.StringVar(&a.configPath, "config", "", "Config file path (YAML)")
	fs.StringVarP(&a.input, "input", "i", "", "Input file (default: arguments or stdin)")
	fs.StringVarP(&cli.Domain, "domain", "d", "", "Target domain")
	fs.IntVarP(&cli.Workers, "workers", "j", cli.Workers, "Number of parallel workers")
	fs.IntVar(&cli.ChunkSize, "chunk-size", cli.ChunkSize, "Maximum tasks per chunk")
	fs.Float64Var(&cli.RateLimit, "rate", 0, "Maximum probes per second (0 = unlimited)")
	fs.DurationVar(&cli.DNSTimeout, "dns-timeout", cli.DNSTimeout, "DNS query timeout")
	fs.DurationVarP(&cli.ConnectTimeout, "connect-timeout", "c", cli.ConnectTimeout, "TCP connect timeout")
	fs.DurationVar(&cli.TLSTimeout, "tls-timeout", cli.TLSTimeout, "TLS handshake timeout")
	fs.DurationVar(&cli.RDAPTimeout, "rdap-timeout", cli.RDAPTimeout, "RDAP/WHOIS request timeout")
	fs.StringSliceVarP(&cli.Nameservers, "nameserver", "r", nil, "Nameservers to query (default: system resolver)")
	fs.IntSliceVarP(&cli.Ports, "ports", "p", cli.Ports, "Ports to connect-scan")
	fs.StringVar(&cli.ProxyURL, "proxy", "", "SOCKS5 proxy for connect scans (socks5://host:port)")
	fs.StringVar(&cli.RDAPURL, "rdap-url", cli.RDAPURL, "RDAP bootstrap service")
	fs.BoolVar(&cli.PublicOnly, "public-only", cli.PublicOnly, "Skip private and reserved addresses")
	fs.StringVar(&cli.StorePath, "store", cli.StorePath, "Wildcard store database")
	fs.StringVarP(&cli.OutputFile, "output", "o", "", "Output file")
	fs.StringVarP((*string)(&cli.Format), "format", "f", string(cli.Format), "Output format (text|json|csv)")
	fs.BoolVarP(&cli.Quiet, "quiet", "q", false, "Quiet mode")
	fs.BoolVarP(&cli.Verbose, "verbose", "v", false, "Verbose logging")
	fs.BoolVar(&cli.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&cli.NoProgress, "no-progress", false, "Disable progress bars")

	root.AddCommand(
		newWildcardsCmd(a),
		newResolveCmd(a),
		newReverseCmd(a),
		newPortsCmd(a),
		newRDAPCmd(a),
		newWhoisCmd(a),
	)
	return root
}

// setup loads the configuration file, applies explicit flags and builds the
// shared output stack
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := core.Load(a.configPath)
	if err != nil {
		return usageError{err}
	}
	cfg.MergeFlags(cmd.Flags(), a.cli)

	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}
	a.config = cfg

	a.useColors = colors.ShouldUseColors(cfg.NoColor)
	colors.Init(a.useColors)

	a.logger = logging.New(os.Stderr, cfg.Verbose, cfg.Quiet, a.useColors)
	a.formatter = output.NewFormatter(cfg.Format, a.useColors)
	a.writer, err = output.NewWriter(os.Stdout, cfg.OutputFile, a.formatter, cfg.Quiet)
	if err != nil {
		return err
	}
	a.progress = output.NewProgress(os.Stderr, !cfg.NoProgress && !cfg.Quiet, a.useColors)
	return nil
}

// newScanner builds a scanner; withStore opens the wildcard store
func (a *app) newScanner(withStore bool) (*scanner.Scanner, func(), error) {
	opts := []scanner.Option{
		scanner.WithLogger(a.logger),
		scanner.WithProgress(a.progress),
	}

	cleanup := func() {}
	if withStore {
		st, err := store.OpenSQLite(a.config.StorePath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, scanner.WithStore(st))
		cleanup = func() {
			if err := st.Close(); err != nil {
				a.logger.WithError(err).Warn("Failed to close wildcard store")
			}
		}
	}

	s, err := scanner.New(a.config, opts...)
	if err != nil {
		cleanup()
		return nil, nil, usageError{err}
	}
	return s, cleanup, nil
}

func (a *app) printBanner(operation string) {
	if a.config.Quiet || a.config.Format != core.FormatText {
		return
	}
	line := "════════════════════════════════════════════════════════════════"
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, colors.Cyan.Sprint(line))
	fmt.Fprintln(os.Stderr, colors.Bold.Sprintf("%s v%s - %s", version.AppName, version.Version, operation))
	fmt.Fprintln(os.Stderr, colors.Cyan.Sprint(line))
	if a.config.Domain != "" {
		fmt.Fprintf(os.Stderr, "%s Domain: %s\n", colors.Cyan.Sprint("[*]"), a.config.Domain)
	}
	fmt.Fprintf(os.Stderr, "%s Workers: %d\n", colors.Cyan.Sprint("[*]"), a.config.Workers)
	fmt.Fprintf(os.Stderr, "%s Started: %s\n", colors.Cyan.Sprint("[*]"), time.Now().Format(time.RFC3339))
	fmt.Fprintln(os.Stderr)
}

func (a *app) close() {
	if a.writer != nil {
		a.writer.Close()
	}
}
