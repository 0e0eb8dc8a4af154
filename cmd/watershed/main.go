// Command watershed runs the offline hydrology pipeline over a grayscale
// heightmap: D8 flow directions, depression resolution, flow accumulation,
// watershed delineation, river extraction and terrain metrics, with all
// results written to an output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/openterra/watershed/internal/fetch"
	"github.com/openterra/watershed/internal/pipeline"
	"github.com/openterra/watershed/pkg/dem"
)

func main() {
	cfg := pipeline.DefaultConfig()

	var (
		outDir     string
		configPath string
		verbose    bool
	)

	flag.UintVar(&cfg.RiverThreshold, "t", cfg.RiverThreshold, "min flow accumulation to call a cell river")
	flag.UintVar(&cfg.RiverThreshold, "threshold", cfg.RiverThreshold, "min flow accumulation to call a cell river")
	flag.UintVar(&cfg.SeaLevel, "s", cfg.SeaLevel, "sea level as a raw 16-bit height code")
	flag.UintVar(&cfg.SeaLevel, "sea-level", cfg.SeaLevel, "sea level as a raw 16-bit height code")
	flag.UintVar(&cfg.MinBasinArea, "m", cfg.MinBasinArea, "merge basins smaller than this cell count (0 = off)")
	flag.UintVar(&cfg.MinBasinArea, "min-area", cfg.MinBasinArea, "merge basins smaller than this cell count (0 = off)")
	flag.IntVar(&cfg.Resolution, "r", cfg.Resolution, "max processing dimension (0 = full resolution)")
	flag.IntVar(&cfg.Resolution, "resolution", cfg.Resolution, "max processing dimension (0 = full resolution)")
	flag.IntVar(&cfg.MetricsResolution, "metrics-resolution", cfg.MetricsResolution, "output resolution of the metrics rasters")
	flag.Float64Var(&cfg.TerrainSize, "terrain-size", cfg.TerrainSize, "world extent in meters")
	flag.Float64Var(&cfg.MinAltitude, "min-altitude", cfg.MinAltitude, "altitude in meters at height code 0")
	flag.Float64Var(&cfg.MaxAltitude, "max-altitude", cfg.MaxAltitude, "altitude in meters at height code 65535")
	flag.StringVar(&outDir, "o", "", "output directory (default: derived from the input filename)")
	flag.StringVar(&outDir, "output", "", "output directory (default: derived from the input filename)")
	flag.StringVar(&configPath, "c", "", "JSON config file; CLI flags take precedence")
	flag.StringVar(&configPath, "config", "", "JSON config file; CLI flags take precedence")
	flag.BoolVar(&verbose, "v", false, "enable debug logging")
	flag.BoolVar(&verbose, "verbose", false, "enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <heightmap.png|.tiff|URL>\n\nflags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if flag.NArg() < 1 {
		flag.Usage()
		log.Error("missing required input file argument")
		os.Exit(1)
	}
	input := flag.Arg(0)

	if configPath != "" {
		fileCfg, err := pipeline.LoadConfig(configPath)
		if err != nil {
			log.Error("load config", "path", configPath, "error", err)
			os.Exit(1)
		}
		if fileCfg != nil {
			explicit := map[string]bool{}
			flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
			pipeline.Merge(cfg, fileCfg, explicit)
		}
	}

	localPath, err := fetch.Input(context.Background(), input, filepath.Join(os.TempDir(), "watershed-fetch"), log)
	if err != nil {
		log.Error("fetch input", "error", err)
		os.Exit(1)
	}

	grid, err := dem.DecodeFile(localPath)
	if err != nil {
		log.Error("decode heightmap", "error", err)
		os.Exit(1)
	}
	log.Info("loaded heightmap", "path", localPath, "width", grid.Width, "height", grid.Height)

	if outDir == "" {
		outDir = strings.TrimSuffix(localPath, filepath.Ext(localPath))
	}

	res, err := pipeline.New(cfg, log).Run(grid, outDir)
	if err != nil {
		log.Error("pipeline failed", "error", err)
		os.Exit(1)
	}

	log.Info("done",
		"basins", res.Watershed.Count,
		"rivers", len(res.Rivers),
		"output", outDir,
	)
}
