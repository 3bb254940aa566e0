package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/campus/pkg/plugins"
)

func newValidateCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "validate",
		Description: "Validate plugin manifests and their dependencies",
		Flags:       flag.NewFlagSet("validate", flag.ContinueOnError),
		Out:         out,
	}
	cmd.Run = func(args []string) error { return runValidate(out, args) }

	cmd.Flags.String("dirs", "./plugins", "Comma separated plugin directories")

	return cmd
}

// manifestProblem is a manifest that could not be used
type manifestProblem struct {
	Path string
	Err  error
}

func runValidate(out io.Writer, args []string) error {
	flags := flag.NewFlagSet("validate", flag.ContinueOnError)
	flags.SetOutput(out)
	dirs := flags.String("dirs", "./plugins", "Comma separated plugin directories")

	if err := flags.Parse(args); err != nil {
		return err
	}

	manifests, problems, err := scanManifests(splitList(*dirs))
	if err != nil {
		return err
	}

	if len(manifests) == 0 && len(problems) == 0 {
		return fmt.Errorf("no plugin manifests found in %s", *dirs)
	}

	ids := make([]string, 0, len(manifests))
	deps := make(map[string][]string, len(manifests))
	for _, m := range manifests {
		ids = append(ids, m.ID)
		deps[m.ID] = m.Dependencies
	}

	// Dependencies must be satisfiable by the scanned manifests alone
	if _, err := plugins.ResolveOrder(ids, deps); err != nil {
		problems = append(problems, manifestProblem{Path: "dependencies", Err: err})
	}

	for _, m := range manifests {
		fmt.Fprintf(out, "ok      %s %s\n", m.ID, m.Version)
	}
	for _, p := range problems {
		fmt.Fprintf(out, "invalid %s: %v\n", p.Path, p.Err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("validation failed: %d problem(s)", len(problems))
	}

	fmt.Fprintln(out, "All plugin manifests are valid")
	return nil
}

// scanManifests reads <dir>/<plugin>/plugin.yaml for every plugin directory
// and reports unreadable, invalid and duplicate manifests instead of
// skipping them
func scanManifests(dirs []string) ([]*plugins.Manifest, []manifestProblem, error) {
	var manifests []*plugins.Manifest
	var problems []manifestProblem
	seen := make(map[string]string)

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read plugin directory %s: %w", dir, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			path := filepath.Join(dir, entry.Name(), plugins.ManifestFile)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				continue
			}

			manifest, err := plugins.LoadManifest(path)
			if err != nil {
				problems = append(problems, manifestProblem{Path: path, Err: err})
				continue
			}
			if errs := plugins.ValidateManifest(manifest); len(errs) > 0 {
				for i := range errs {
					problems = append(problems, manifestProblem{Path: path, Err: &errs[i]})
				}
				continue
			}
			if prev, dup := seen[manifest.ID]; dup {
				problems = append(problems, manifestProblem{
					Path: path,
					Err:  fmt.Errorf("%w: %q also declared in %s", plugins.ErrDuplicateID, manifest.ID, prev),
				})
				continue
			}

			seen[manifest.ID] = path
			manifests = append(manifests, manifest)
		}
	}

	return manifests, problems, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
