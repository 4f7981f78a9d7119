// Command fixtures writes accounts.csv, lids.csv and uvids.csv for test runs
// and can import the generated history into the configured store.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophid/internal/app"
	"github.com/dmitrijs2005/gophid/internal/config"
	"github.com/dmitrijs2005/gophid/internal/fixtures"
	"github.com/dmitrijs2005/gophid/internal/flagx"
	"github.com/dmitrijs2005/gophid/internal/logging"
)

func main() {
	var (
		rows     int
		dir      string
		seed     uint64
		doImport bool
	)

	fs := flag.NewFlagSet("fixtures", flag.ExitOnError)
	fs.IntVar(&rows, "n", 1000, "number of people")
	fs.StringVar(&dir, "o", ".", "output directory")
	fs.Uint64Var(&seed, "seed", 1, "random seed")
	fs.BoolVar(&doImport, "import", false, "import lids.csv and uvids.csv into the store")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-n", "-o", "-seed", "-import"}))

	set := fixtures.Generate(rows, seed)
	if err := set.WriteDir(dir); err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("wrote %d people to %s", rows, dir)

	if !doImport {
		return
	}

	// -import reuses the resolver configuration (-c, -d) for target sources
	// and the store
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	ctx := context.Background()
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)
	err = app.NewApp(cfg, logger).ImportHistory(ctx,
		filepath.Join(dir, fixtures.LIDsFile), filepath.Join(dir, fixtures.UVIDsFile))
	if err != nil {
		log.Fatalf("%v", err)
	}
}
