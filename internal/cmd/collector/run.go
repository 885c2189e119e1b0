package collectorrun

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/rzbill/ringlog/internal/collector"
	cfgpkg "github.com/rzbill/ringlog/internal/config"
	logpkg "github.com/rzbill/ringlog/pkg/log"
)

type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// dirAndDSN fills in the collector directory and the default SQLite index
// location inside it.
func dirAndDSN(cfg cfgpkg.Collector) (string, string) {
	dir := cfg.Dir
	if dir == "" {
		dir = cfgpkg.DefaultUploadDir()
	}
	dsn := cfg.IndexDSN
	if dsn == "" && cfg.IndexDriver == "sqlite" {
		dsn = filepath.Join(dir, "index.db")
	}
	return dir, dsn
}

// Run serves uploads on Config.Collector.Addr until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	cc := opts.Config.Collector
	dir, dsn := dirAndDSN(cc)

	var idx *collector.Index
	if cc.IndexDriver != "" {
		var err error
		idx, err = collector.OpenIndex(ctx, cc.IndexDriver, dsn)
		if err != nil {
			return err
		}
		defer idx.Close()
	}
	srv, err := collector.NewServer(collector.Config{Dir: dir, Compress: cc.Compress}, idx, logger)
	if err != nil {
		return err
	}
	logger.Info("Starting ringlog collector",
		logpkg.Str("addr", cc.Addr), logpkg.Str("dir", dir),
		logpkg.Bool("compress", cc.Compress), logpkg.Str("index", cc.IndexDriver))
	return srv.ListenAndServe(ctx, cc.Addr)
}

// List prints the newest uploads recorded in the index.
func List(ctx context.Context, cfg cfgpkg.Config, limit int, w io.Writer) error {
	if cfg.Collector.IndexDriver == "" {
		return fmt.Errorf("collector index is disabled")
	}
	_, dsn := dirAndDSN(cfg.Collector)
	idx, err := collector.OpenIndex(ctx, cfg.Collector.IndexDriver, dsn)
	if err != nil {
		return err
	}
	defer idx.Close()
	ups, err := idx.List(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECEIVED\tID\tPEER\tBYTES\tRECORDS\tPARTIAL\tFILE")
	for _, u := range ups {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\t%s\n",
			u.ReceivedAt.Format("2006-01-02T15:04:05Z"), u.ID, u.Peer, u.Bytes, u.Records, u.Partial, u.File)
	}
	return tw.Flush()
}
