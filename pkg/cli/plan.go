package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/campus/pkg/plugins"
)

func newPlanCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "plan",
		Description: "Print the order plugins would be initialized in",
		Flags:       flag.NewFlagSet("plan", flag.ContinueOnError),
		Out:         out,
	}
	cmd.Run = func(args []string) error { return runPlan(out, args) }

	cmd.Flags.String("dirs", "./plugins", "Comma separated plugin directories")
	cmd.Flags.Bool("routes", false, "Also print the routes each plugin contributes")

	return cmd
}

func runPlan(out io.Writer, args []string) error {
	flags := flag.NewFlagSet("plan", flag.ContinueOnError)
	flags.SetOutput(out)
	dirs := flags.String("dirs", "./plugins", "Comma separated plugin directories")
	showRoutes := flags.Bool("routes", false, "Also print the routes each plugin contributes")

	if err := flags.Parse(args); err != nil {
		return err
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	loader := plugins.NewLoader(splitList(*dirs), log)
	manifests, err := loader.DiscoverManifests(context.Background())
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		return fmt.Errorf("no plugin manifests found in %s", *dirs)
	}

	byID := make(map[string]*plugins.Manifest, len(manifests))
	ids := make([]string, 0, len(manifests))
	deps := make(map[string][]string, len(manifests))
	for _, m := range manifests {
		byID[m.ID] = m
		ids = append(ids, m.ID)
		deps[m.ID] = m.Dependencies
	}

	order, err := plugins.ResolveOrder(ids, deps)
	if err != nil {
		return fmt.Errorf("failed to resolve plugin order: %w", err)
	}

	for i, id := range order {
		m := byID[id]
		line := fmt.Sprintf("%2d. %s (%s)", i+1, id, m.Version)
		if len(m.Dependencies) > 0 {
			line += " <- " + strings.Join(m.Dependencies, ", ")
		}
		if m.Optional {
			line += " [optional]"
		}
		fmt.Fprintln(out, line)

		if *showRoutes {
			for _, r := range m.Routes {
				fmt.Fprintf(out, "      %s -> %s\n", r.Path, r.Component)
			}
		}
	}
	return nil
}
