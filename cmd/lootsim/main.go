// lootsim resolves a drop table many times and prints what came out.
//
// Usage:
//
//	go run ./cmd/lootsim -table monsters/goblin -runs 10000
//	go run ./cmd/lootsim -catalog config/catalog.yaml -table monsters/boss -level 40 -seed 7
package main

import (
	"cmp"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/game/loot"
	"github.com/udisondev/itemforge/internal/rng"
)

func main() {
	catalogPath := flag.String("catalog", "config/catalog.yaml", "item catalog")
	table := flag.String("table", "monsters/goblin", "drop table handle (table/row)")
	runs := flag.Int("runs", 1000, "number of drops to simulate")
	level := flag.Int("level", 10, "item level of the drop")
	magicFind := flag.Int("magic-find", 0, "magic find bonus")
	seed := flag.Uint64("seed", 1, "entropy seed")
	flag.Parse()

	if err := run(os.Stdout, *catalogPath, *table, *runs, int32(*level), int32(*magicFind), *seed); err != nil {
		fmt.Fprintf(os.Stderr, "lootsim: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, catalogPath, table string, runs int, level, magicFind int32, seed uint64) error {
	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	h, err := catalog.ParseHandle(table)
	if err != nil {
		return err
	}

	stats, err := simulate(cat, h, runs, level, magicFind, seed)
	if err != nil {
		return err
	}
	stats.print(w)
	return nil
}

type distribution struct {
	runs       int
	empty      int
	items      int
	byDef      map[string]int
	byQuality  map[string]int
	byAffixNum map[int]int
}

func simulate(cat *catalog.Catalog, h catalog.Handle, runs int, level, magicFind int32, seed uint64) (*distribution, error) {
	entropy := rng.NewSeededEntropy(seed)
	in := loot.NewInstancer(cat, loot.NewRegistry(loot.DefaultMaximumItemLevel), entropy)
	dropper := loot.NewDropper(in, loot.NewResolver(cat), nil, entropy)

	d := &distribution{
		runs:       runs,
		byDef:      make(map[string]int),
		byQuality:  make(map[string]int),
		byAffixNum: make(map[int]int),
	}
	for range runs {
		items, err := dropper.GenerateItems(loot.DropRequest{DropTable: h, ItemLevel: level, MagicFind: magicFind})
		if err != nil {
			return nil, fmt.Errorf("dropping %s: %w", h, err)
		}
		if len(items) == 0 {
			d.empty++
		}
		for _, it := range items {
			d.items++
			d.byDef[it.Definition.String()]++
			d.byQuality[it.QualityType.String()]++
			d.byAffixNum[len(it.Affixes)]++
		}
	}
	return d, nil
}

func (d *distribution) print(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "runs\t%d\n", d.runs)
	fmt.Fprintf(tw, "items\t%d\n", d.items)
	fmt.Fprintf(tw, "empty drops\t%d\t%s\n", d.empty, percent(d.empty, d.runs))

	fmt.Fprintln(tw, "\ndefinition\tcount\tshare")
	printCounts(tw, d.byDef, d.items)

	fmt.Fprintln(tw, "\nquality\tcount\tshare")
	printCounts(tw, d.byQuality, d.items)

	fmt.Fprintln(tw, "\naffixes\tcount\tshare")
	nums := make([]int, 0, len(d.byAffixNum))
	for n := range d.byAffixNum {
		nums = append(nums, n)
	}
	slices.Sort(nums)
	for _, n := range nums {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", n, d.byAffixNum[n], percent(d.byAffixNum[n], d.items))
	}
}

// printCounts prints rows by descending count, ties by name.
func printCounts(w io.Writer, counts map[string]int, total int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\t%s\n", k, counts[k], percent(counts[k], total))
	}
}

func percent(n, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(n)/float64(total))
}
