package inspect

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rzbill/ringlog/internal/collector"
	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/record"
)

// Filter selects records to print. Nil prints all.
type Filter interface {
	Match(record.Record) bool
}

// Expand turns the arguments into a file list: directories contribute their
// .log and .log.zst files in name order.
func Expand(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, a)
			continue
		}
		entries, err := os.ReadDir(a)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			n := e.Name()
			if e.Type().IsRegular() && (strings.HasSuffix(n, ".log") || strings.HasSuffix(n, ".log.zst")) {
				names = append(names, n)
			}
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, filepath.Join(a, n))
		}
	}
	return out, nil
}

// Dump prints every record of the given files, one line each, with a header
// line per file when there is more than one.
func Dump(w io.Writer, paths []string, table *events.Table, filter Filter) error {
	if table == nil {
		table = events.Default()
	}
	bw := bufio.NewWriter(w)
	defer bw.Flush()
	for _, p := range paths {
		if len(paths) > 1 {
			fmt.Fprintf(bw, "== %s ==\n", p)
		}
		if err := dumpFile(bw, p, table, filter); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func dumpFile(w io.Writer, path string, table *events.Table, filter Filter) error {
	ur, err := collector.OpenUpload(path)
	if err != nil {
		return err
	}
	defer ur.Close()
	for {
		r, err := ur.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, record.ErrPartial) {
			fmt.Fprintln(w, "(truncated record at end of file)")
			return nil
		}
		if err != nil {
			return err
		}
		if filter != nil && !filter.Match(r) {
			continue
		}
		if err := events.Fprint(w, table, r.Timestamp, r.Event, r.Parameter); err != nil {
			return err
		}
	}
}
