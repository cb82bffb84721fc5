// Command ply-convert rewrites an ASCII ray cloud as packed
// binary_little_endian PLY.
//
//	ply-convert [-layout a|b] input_file output_file
//
// Layout "a" keeps the ray origins; layout "b" stores the ray vector
// (origin minus end point) instead.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/raycheck/internal/convert"
	"github.com/banshee-data/raycheck/internal/monitoring"
	"github.com/banshee-data/raycheck/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ply-convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	layout := fs.String("layout", "a", "binary layout: a (origins) or b (ray vectors)")
	verbose := fs.Bool("v", false, "verbose logging")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: ply-convert [-layout a|b] input_file output_file")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String("ply-convert"))
		return 0
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}
	in, out := fs.Arg(0), fs.Arg(1)

	logger := log.New(stderr, "", log.LstdFlags)
	if *verbose {
		monitoring.SetLogger(logger.Printf)
		monitoring.SetVerbose(true)
	} else {
		monitoring.SetLogger(nil)
	}

	schema, err := convert.SchemaFor(*layout)
	if err != nil {
		logger.Printf("Error: %v", err)
		return 1
	}

	n, err := convert.New().Convert(in, out, schema)
	if err != nil {
		logger.Printf("Error during conversion of %s: %v", in, err)
		fmt.Fprintln(stderr, "Conversion failed.")
		return 1
	}
	fmt.Fprintf(stdout, "Successfully converted %s to %s (binary_little_endian, layout %s, %d records).\n", in, out, *layout, n)
	return 0
}
