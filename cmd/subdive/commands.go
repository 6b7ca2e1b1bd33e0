package main

import (
	"fmt"

	"github.com/jhaxce/subdive/pkg/core"
	"github.com/jhaxce/subdive/pkg/ip"
	"github.com/jhaxce/subdive/pkg/output"
	"github.com/jhaxce/subdive/pkg/runner"
	"github.com/spf13/cobra"
	"go4.org/netipx"
)

func newWildcardsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "wildcards [names...]",
		Short: "Detect wildcard DNS zones among candidate subdomains",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDomain(); err != nil {
				return err
			}
			names, err := readLines(a.input, args, cmd.InOrStdin())
			if err != nil {
				return usageError{err}
			}

			s, cleanup, err := a.newScanner(true)
			if err != nil {
				return err
			}
			defer cleanup()

			a.printBanner("Wildcard detection")
			count, records, err := s.ResolveWildcards(cmd.Context(), names)
			if err != nil {
				return err
			}

			a.writer.WriteSection("Wildcards that were identified", count)
			output.WriteAll(a.writer, records)
			return nil
		},
	}
}

func newResolveCmd(a *app) *cobra.Command {
	var detect bool

	cmd := &cobra.Command{
		Use:   "resolve [labels...]",
		Short: "Mass-resolve candidate subdomains (label or label|context per line)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDomain(); err != nil {
				return err
			}
			lines, err := readLines(a.input, args, cmd.InOrStdin())
			if err != nil {
				return usageError{err}
			}
			candidates := parseCandidates(a.config.Domain, lines)

			s, cleanup, err := a.newScanner(true)
			if err != nil {
				return err
			}
			defer cleanup()

			a.printBanner("Mass resolution")

			if detect {
				names := make([]string, len(candidates))
				for i, c := range candidates {
					names[i] = c.Label
				}
				count, _, err := s.ResolveWildcards(cmd.Context(), names)
				if err != nil {
					return err
				}
				a.logger.WithField("count", count).Info("Wildcard detection finished")
			}

			results, stats, err := s.MassResolve(cmd.Context(), candidates)
			if err != nil {
				return err
			}

			matcher, err := s.Wildcards(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.WithField("zones", matcher.Len()).Debug("Loaded known wildcard zones")

			a.writer.WriteSection("Hostnames that were resolved", len(results))
			for _, r := range results {
				if matcher.Match(r.Hostname, r.Address) {
					a.writer.WriteResult(output.WildcardResolution{Resolution: r})
					continue
				}
				a.writer.WriteResult(r)
			}
			a.writeSummary("Resolved", stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&detect, "detect-wildcards", false, "Run wildcard detection before resolving")
	return cmd
}

func newReverseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reverse [targets...]",
		Short: "Reverse-resolve addresses, CIDRs or ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := a.readAddresses(args, cmd)
			if err != nil {
				return err
			}

			s, cleanup, err := a.newScanner(false)
			if err != nil {
				return err
			}
			defer cleanup()

			a.printBanner("Reverse DNS")
			records, stats, err := s.MassReverseResolve(cmd.Context(), addrs)
			if err != nil {
				return err
			}

			a.writer.WriteSection("Addresses that were reverse resolved", len(records))
			output.WriteAll(a.writer, records)
			a.writeSummary("Reverse resolved", stats)
			return nil
		},
	}
}

func newPortsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports [targets...]",
		Short: "Connect-scan the configured ports of addresses, CIDRs or ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := a.readAddresses(args, cmd)
			if err != nil {
				return err
			}

			s, cleanup, err := a.newScanner(false)
			if err != nil {
				return err
			}
			defer cleanup()

			a.printBanner("Connect scan")
			open, stats, err := s.MassPortScan(cmd.Context(), addrs, a.config.Ports)
			if err != nil {
				return err
			}

			a.writer.WriteSection("Ports that were found open", len(open))
			output.WriteAll(a.writer, open)
			a.writeSummary("Open", stats)
			return nil
		},
	}
}

func newRDAPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rdap [targets...]",
		Short: "Aggregate ASN and network ownership of addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := a.readAddresses(args, cmd)
			if err != nil {
				return err
			}

			s, cleanup, err := a.newScanner(false)
			if err != nil {
				return err
			}
			defer cleanup()

			a.printBanner("RDAP lookups")
			asns, networks, stats, err := s.MassRDAP(cmd.Context(), addrs)
			if err != nil {
				return err
			}

			a.writer.WriteSection("ASNs", len(asns))
			output.WriteAll(a.writer, asns)
			a.writer.WriteSection("Networks", len(networks))
			output.WriteAll(a.writer, networks)
			a.writeSummary("Looked up", stats)
			return nil
		},
	}
}

func newWhoisCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whois",
		Short: "Show the WHOIS registration of the target domain",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDomain(); err != nil {
				return err
			}
			registrable, err := ip.RegistrableDomain(a.config.Domain)
			if err != nil {
				return usageError{err}
			}

			s, cleanup, err := a.newScanner(false)
			if err != nil {
				return err
			}
			defer cleanup()

			info, err := s.RDAP().LookupDomain(cmd.Context(), registrable)
			if err != nil {
				return err
			}
			a.writer.WriteResult(info)
			return nil
		},
	}
}

// requireDomain sanitises and validates the configured target domain
func (a *app) requireDomain() error {
	a.config.Domain = ip.SanitizeDomain(a.config.Domain)
	if err := ip.ValidateDomain(a.config.Domain); err != nil {
		return usageError{fmt.Errorf("%w (use -d or --domain)", err)}
	}
	return nil
}

// readAddresses expands targets from arguments, the input file or stdin
func (a *app) readAddresses(args []string, cmd *cobra.Command) ([]string, error) {
	var ranges []netipx.IPRange
	var err error
	switch {
	case len(args) > 0:
		ranges, err = parseTargets(args)
	case a.input != "" && a.input != "-":
		ranges, err = ip.ParseInputFile(a.input)
	default:
		ranges, err = ip.ParseInput(cmd.InOrStdin())
	}
	if err != nil {
		return nil, usageError{err}
	}

	addrs, err := ip.Expand(ranges)
	if err != nil {
		return nil, usageError{err}
	}

	if a.config.PublicOnly {
		var dropped int
		addrs, dropped = ip.FilterPublic(addrs)
		if dropped > 0 {
			a.logger.WithField("dropped", dropped).Info("Skipped private and reserved addresses")
		}
	}
	if len(addrs) == 0 {
		return nil, usageError{fmt.Errorf("%w: no addresses to probe", core.ErrInvalidIP)}
	}
	return addrs, nil
}

func (a *app) writeSummary(operation string, stats runner.Stats) {
	a.writer.WriteSummary(a.formatter.FormatSummary(operation, stats))
}
