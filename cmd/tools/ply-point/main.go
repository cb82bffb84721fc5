// Command ply-point prints the uncertainty values of one point of a binary
// PLY file written by raynoise.
//
//	ply-point [-fields f1,f2,...] ply_file point_index
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/raycheck/internal/ply"
	"github.com/banshee-data/raycheck/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ply-point", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fields := fs.String("fields", strings.Join(ply.UncertaintyFields, ","), "comma-separated properties to print")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: ply-point [-fields f1,f2,...] ply_file point_index")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String("ply-point"))
		return 0
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}

	path := fs.Arg(0)
	index, err := strconv.Atoi(fs.Arg(1))
	if err != nil || index < 0 {
		fmt.Fprintf(stderr, "Error: point_index must be a non-negative integer, got %q\n", fs.Arg(1))
		return 1
	}

	names := strings.Split(*fields, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}

	values, err := ply.LookupFile(path, index, names)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var fnf *ply.FieldNotFoundError
		if errors.As(err, &fnf) {
			fmt.Fprintf(stderr, "Available fields: %s\n", strings.Join(fnf.Available, ", "))
		}
		return 1
	}
	fmt.Fprintln(stdout, strings.Join(ply.FormatValues(values), " "))
	return 0
}
