// clipctl is a small CLI against a running clip server.
//
//	clipctl -server http://localhost:8000 health
//	clipctl info glim
//	clipctl clip -format shapefile -out glim.zip glim aoi.geojson
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/geoglim/clipserver/pkg/client"
)

func main() {
	os.Exit(run())
}

func run() int {
	serverFlag := flag.String("server", "http://localhost:8000", "clip server base URL")
	timeoutFlag := flag.Duration("timeout", 5*time.Minute, "request timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()
	c := client.New(*serverFlag)

	switch args[0] {
	case "health":
		return health(ctx, c)
	case "info":
		if len(args) != 2 {
			usage()
			return 2
		}
		return info(ctx, c, args[1])
	case "clip":
		return clipCmd(ctx, c, args[1:])
	default:
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  clipctl [-server URL] health
  clipctl [-server URL] info <dataset>
  clipctl [-server URL] clip [-format geojson|shapefile|gpkg] [-out FILE] <dataset> <aoi.geojson>`)
}

func health(ctx context.Context, c *client.Client) int {
	h, err := c.Health(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "health:", err)
		return 1
	}
	fmt.Printf("status: %s (api %s)\n", h.Status, h.APIVersion)
	for name, ok := range h.DatasetsAvailable {
		fmt.Printf("  %s: available=%v\n", name, ok)
	}
	return 0
}

func info(ctx context.Context, c *client.Client, dataset string) int {
	i, err := c.DatasetInfo(ctx, dataset)
	if err != nil {
		fmt.Fprintln(os.Stderr, "info:", err)
		return 1
	}
	fmt.Printf("dataset: %s\ncrs: %s\ngeometry: %s\ncolumns: %v\n", i.Dataset, i.CRS, i.GeometryType, i.Columns)
	return 0
}

func clipCmd(ctx context.Context, c *client.Client, args []string) int {
	fs := flag.NewFlagSet("clip", flag.ContinueOnError)
	format := fs.String("format", "", "output format: geojson, shapefile or gpkg")
	out := fs.String("out", "", "destination file (default: server-suggested name)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) != 2 {
		usage()
		return 2
	}
	dataset, aoiPath := rest[0], rest[1]

	f, err := os.Open(aoiPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "clip:", err)
		return 1
	}
	defer f.Close()

	res, err := c.Clip(ctx, dataset, f, *format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "clip:", err)
		return 1
	}
	defer res.Body.Close()

	dest := *out
	if dest == "" {
		dest = res.Filename
	}
	if dest == "" {
		dest = dataset + "_clipped.out"
	}

	df, err := os.Create(dest)
	if err != nil {
		fmt.Fprintln(os.Stderr, "clip:", err)
		return 1
	}
	if _, err := df.ReadFrom(res.Body); err != nil {
		df.Close()
		fmt.Fprintln(os.Stderr, "clip:", err)
		return 1
	}
	if err := df.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "clip:", err)
		return 1
	}

	fmt.Printf("wrote %s (%d features)\n", dest, res.FeatureCount)
	return 0
}
