// catalogcheck loads an ability catalog, validates every reference and
// prints its content fingerprint.
//
// Usage:
//
//	go run ./cmd/catalogcheck -catalog config/catalog.yaml
//	go run ./cmd/catalogcheck -catalog config/catalog.yaml -v
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/udisondev/castcore/internal/data"
)

func main() {
	path := flag.String("catalog", "config/catalog.yaml", "catalog YAML file")
	verbose := flag.Bool("v", false, "list ability and effect ids")
	flag.Parse()

	if err := check(os.Stdout, *path, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func check(w io.Writer, path string, verbose bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cat, err := data.LoadCatalog(path, logger)
	if err != nil {
		return err
	}

	abilities := cat.AbilityIDs()
	effects := cat.EffectIDs()
	fmt.Fprintf(w, "catalog:     %s\n", path)
	fmt.Fprintf(w, "abilities:   %d\n", len(abilities))
	fmt.Fprintf(w, "effects:     %d\n", len(effects))
	fmt.Fprintf(w, "fingerprint: %s\n", cat.Fingerprint())

	if verbose {
		for _, id := range abilities {
			def, err := cat.GetAbility(id, 1)
			if err != nil {
				return fmt.Errorf("ability %q: %w", id, err)
			}
			fmt.Fprintf(w, "  ability %-12s %-10s levels=%d\n", id, def.Variant, cat.MaxLevel(id))
		}
		for _, id := range effects {
			fmt.Fprintf(w, "  effect  %s\n", id)
		}
	}
	return nil
}
