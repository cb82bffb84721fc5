// Package convert drives text-to-binary ray-cloud conversion.
package convert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/raycheck/internal/fsutil"
	"github.com/banshee-data/raycheck/internal/monitoring"
	"github.com/banshee-data/raycheck/internal/ply"
)

// ErrUnknownLayout is returned by SchemaFor for an unrecognised layout name.
var ErrUnknownLayout = errors.New("unknown layout")

// Layouts lists the names SchemaFor accepts.
var Layouts = []string{"a", "b"}

// SchemaFor maps a layout name to its binary schema: "a" keeps origins,
// "b" stores the derived ray vector.
func SchemaFor(layout string) (*ply.Schema, error) {
	switch strings.ToLower(layout) {
	case "a":
		return ply.RaySampleA, nil
	case "b":
		return ply.RaySampleB, nil
	}
	return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownLayout, layout, strings.Join(Layouts, ", "))
}

// Converter reads ray clouds and writes them back as packed binary.
type Converter struct {
	FS fsutil.FileSystem
}

// New returns a Converter over the real filesystem.
func New() *Converter {
	return &Converter{FS: fsutil.OSFileSystem{}}
}

// Convert reads in (ASCII or binary) and writes out laid out per schema.
// The result is staged in out+".tmp" and renamed into place, so a failed
// conversion never leaves a partial file at out. It returns the number of
// records written.
func (c *Converter) Convert(in, out string, schema *ply.Schema) (int, error) {
	data, err := c.FS.ReadFile(in)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", in, err)
	}

	cloud, err := ply.Load(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", in, err)
	}
	if err := schema.CheckInputs(cloud.Layout); err != nil {
		return 0, fmt.Errorf("%s: %w", in, err)
	}
	monitoring.Debugf("convert: %s has %d records, writing schema %s", in, cloud.Len(), schema.Name())

	tmp := out + ".tmp"
	if err := c.write(tmp, schema, cloud); err != nil {
		if rmErr := c.FS.Remove(tmp); rmErr != nil && c.FS.Exists(tmp) {
			monitoring.Logf("convert: failed to remove %s: %v", tmp, rmErr)
		}
		return 0, fmt.Errorf("write %s: %w", out, err)
	}
	if err := c.FS.Rename(tmp, out); err != nil {
		_ = c.FS.Remove(tmp)
		return 0, fmt.Errorf("rename %s: %w", tmp, err)
	}

	monitoring.Logf("convert: wrote %d records to %s", cloud.Len(), out)
	return cloud.Len(), nil
}

func (c *Converter) write(path string, schema *ply.Schema, cloud *ply.Cloud) error {
	f, err := c.FS.Create(path)
	if err != nil {
		return err
	}
	if err := ply.Encode(f, schema, cloud); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
