package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/rzbill/ringlog/internal/record"
	"github.com/rzbill/ringlog/pkg/log"
)

// Config configures a collector Server.
type Config struct {
	// Dir receives one file per upload.
	Dir string
	// Compress stores uploads zstd-compressed as <id>.log.zst.
	Compress bool
	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration
}

// Server accepts uploads: every connection carries one raw log file,
// terminated by the client closing its side. Nothing is sent back.
type Server struct {
	cfg    Config
	index  *Index
	logger log.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewServer returns a Server writing into cfg.Dir. index may be nil.
func NewServer(cfg Config, index *Index, logger log.Logger) (*Server, error) {
	if cfg.Dir == "" {
		return nil, errors.New("collector: empty directory")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("collector: create %s: %w", cfg.Dir, err)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Server{cfg: cfg, index: index, logger: logger.WithComponent("collector")}, nil
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then waits for
// in-flight uploads.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.logger.Info("collector listening", log.Str("addr", ln.Addr().String()), log.Str("dir", s.cfg.Dir))

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if _, err := s.receive(ctx, conn); err != nil {
				s.logger.Error("upload failed", log.Str("peer", conn.RemoteAddr().String()), log.Err(err))
			}
		}()
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// idleReader extends the read deadline before each read.
type idleReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r idleReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.conn.Read(p)
}

// receive stores one upload and indexes it.
func (s *Server) receive(ctx context.Context, conn net.Conn) (Upload, error) {
	defer conn.Close()
	u := Upload{ID: uuid.NewString(), Peer: conn.RemoteAddr().String()}
	u.File = u.ID + ".log"
	if s.cfg.Compress {
		u.File += ".zst"
	}
	path := filepath.Join(s.cfg.Dir, u.File)

	f, err := os.Create(path)
	if err != nil {
		return u, err
	}
	var w io.Writer = f
	var enc *zstd.Encoder
	if s.cfg.Compress {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return u, err
		}
		w = enc
	}

	n, cerr := io.Copy(w, idleReader{conn: conn, timeout: s.cfg.IdleTimeout})
	if enc != nil {
		cerr = errors.Join(cerr, enc.Close())
	}
	cerr = errors.Join(cerr, f.Close())

	u.Bytes = n
	u.Records = n / record.Size
	u.Partial = n%record.Size != 0 || cerr != nil
	u.ReceivedAt = time.Now().UTC()
	s.logger.Info("upload received",
		log.Str("id", u.ID), log.Str("peer", u.Peer), log.Int64("bytes", n), log.Bool("partial", u.Partial))

	if s.index != nil {
		if err := s.index.Insert(context.WithoutCancel(ctx), u); err != nil {
			return u, errors.Join(cerr, err)
		}
	}
	return u, cerr
}
