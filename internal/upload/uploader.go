package upload

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

	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/record"
	"github.com/rzbill/ringlog/pkg/log"
)

// ChunkSize is the number of bytes read and sent per step: 20 records.
const ChunkSize = 20 * record.Size

var ErrAlreadyRunning = errors.New("upload: already running")

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Dialer opens stream connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// EventLog receives pipeline events. *logstore.Store satisfies it.
type EventLog interface {
	LogX(event events.Code, param int32)
}

// Config configures an Uploader.
type Config struct {
	// Dir is the log file directory.
	Dir string
	// ServerURL is host[:port] of the collector.
	ServerURL   string
	DefaultPort int
	// ConnectTimeout bounds each dial (default 10s).
	ConnectTimeout time.Duration
	// SendTimeout bounds each chunk write (default 10s).
	SendTimeout time.Duration
	// Current names the file being written, which is never uploaded.
	Current func() string

	Resolver Resolver
	Dialer   Dialer
}

// Result summarises an upload run.
type Result struct {
	Target   string    `json:"target"`
	Files    []string  `json:"files"`
	Sent     int       `json:"sent"`
	Bytes    int64     `json:"bytes"`
	Skipped  []string  `json:"skipped,omitempty"`
	Failed   string    `json:"failed,omitempty"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Uploader ships completed log files to the collector one at a time from a
// background goroutine and deletes each file once it has been sent to EOF.
// At most one run is active.
type Uploader struct {
	cfg    Config
	events EventLog
	logger log.Logger

	mu       sync.Mutex
	running  bool
	starting bool
	// stops counts Stop calls, to cancel a start still resolving
	stops  uint64
	cancel context.CancelFunc
	done   chan struct{}
	last   Result
}

// New creates an idle Uploader.
func New(cfg Config, ev EventLog, logger log.Logger) *Uploader {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Resolver == nil {
		cfg.Resolver = net.DefaultResolver
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{}
	}
	if cfg.Current == nil {
		cfg.Current = func() string { return "" }
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Uploader{cfg: cfg, events: ev, logger: logger.WithComponent("upload")}
}

// Start enumerates the files to send and resolves the server, then spawns
// the transfer and returns. An empty directory is a success with nothing
// started. ctx bounds only the synchronous part; use Stop to end a run.
//
// The lock is not held while listing and resolving, so Running and Result
// answer at once during a slow lookup. A Stop that lands meanwhile cancels
// the pending start.
func (u *Uploader) Start(ctx context.Context) (err error) {
	u.mu.Lock()
	if u.running || u.starting {
		u.mu.Unlock()
		return ErrAlreadyRunning
	}
	u.starting = true
	gen := u.stops
	u.mu.Unlock()
	defer func() {
		if err != nil {
			u.mu.Lock()
			u.starting = false
			u.mu.Unlock()
		}
	}()

	target, err := ParseServerURL(u.cfg.ServerURL)
	if err != nil {
		return err
	}
	if !target.HasPort {
		u.logger.Warn("server URL has no port, using default",
			log.Str("server", u.cfg.ServerURL), log.Int("port", u.cfg.DefaultPort))
	}

	files, err := Enumerate(u.cfg.Dir, u.cfg.Current())
	if err != nil {
		u.events.LogX(events.DirOpenFailure, 0)
		return fmt.Errorf("upload: list %s: %w", u.cfg.Dir, err)
	}
	u.events.LogX(events.DirOpen, 0)
	u.events.LogX(events.LogFilesToUpload, int32(len(files)))
	if len(files) == 0 {
		u.mu.Lock()
		u.starting = false
		u.mu.Unlock()
		return nil
	}

	u.events.LogX(events.DNSLookup, 0)
	addrs, err := u.cfg.Resolver.LookupHost(ctx, target.Host)
	if err == nil && len(addrs) == 0 {
		err = fmt.Errorf("no addresses for %s", target.Host)
	}
	if err != nil {
		u.events.LogX(events.DNSLookupFailure, 0)
		u.logger.Error("resolve failed", log.Str("host", target.Host), log.Err(err))
		return fmt.Errorf("upload: resolve %s: %w", target.Host, err)
	}
	addr := target.Addr(addrs[0], u.cfg.DefaultPort)

	u.mu.Lock()
	if u.stops != gen {
		u.mu.Unlock()
		return fmt.Errorf("upload: stopped while starting: %w", context.Canceled)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	u.starting = false
	u.running = true
	u.cancel = cancel
	u.done = make(chan struct{})
	u.last = Result{Target: addr, Files: files, Started: time.Now()}
	done := u.done
	u.mu.Unlock()

	u.events.LogX(events.LogUploadStarting, int32(len(files)))
	u.logger.Info("upload starting", log.Str("target", addr), log.Int("files", len(files)))
	go u.run(runCtx, addr, files, done)
	return nil
}

func (u *Uploader) run(ctx context.Context, addr string, files []string, done chan struct{}) {
	defer close(done)

	res := Result{}
	for _, name := range files {
		if ctx.Err() != nil {
			break
		}
		n, err := u.sendFile(ctx, addr, name)
		if errors.Is(err, errSkip) {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		if err != nil {
			res.Failed = name
			res.Error = err.Error()
			u.logger.Error("upload aborted", log.Str("file", name), log.Err(err))
			break
		}
		res.Sent++
		res.Bytes += n
	}

	u.events.LogX(events.LogUploadTaskCompleted, int32(res.Sent))
	u.logger.Info("upload completed", log.Int("sent", res.Sent), log.Int64("bytes", res.Bytes))

	u.mu.Lock()
	u.last.Sent, u.last.Bytes = res.Sent, res.Bytes
	u.last.Skipped, u.last.Failed, u.last.Error = res.Skipped, res.Failed, res.Error
	u.last.Finished = time.Now()
	u.running = false
	u.cancel()
	u.cancel = nil
	u.mu.Unlock()
}

// errSkip marks a per-file failure after which the run moves on.
var errSkip = errors.New("upload: file skipped")

// sendFile streams one file over a fresh connection and deletes it on
// success. Connection and open failures return errSkip; send failures end
// the run.
func (u *Uploader) sendFile(ctx context.Context, addr, name string) (int64, error) {
	path := filepath.Join(u.cfg.Dir, name)

	u.events.LogX(events.SocketOpening, 0)
	u.events.LogX(events.TCPConnecting, 0)
	dctx, cancel := context.WithTimeout(ctx, u.cfg.ConnectTimeout)
	conn, err := u.cfg.Dialer.DialContext(dctx, "tcp", addr)
	cancel()
	if err != nil {
		u.events.LogX(events.TCPConnectFailure, 0)
		u.logger.Warn("connect failed", log.Str("target", addr), log.Str("file", name), log.Err(err))
		return 0, errSkip
	}
	defer conn.Close()
	u.events.LogX(events.TCPConnected, 0)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	f, err := os.Open(path)
	if err != nil {
		u.events.LogX(events.FileOpenFailure, 0)
		u.logger.Warn("open failed", log.Str("file", name), log.Err(err))
		return 0, errSkip
	}
	u.events.LogX(events.FileOpen, 0)

	u.events.LogX(events.SendStart, 0)
	sent, err := u.copyChunks(ctx, conn, f)
	f.Close()
	u.events.LogX(events.FileClose, 0)
	if err != nil {
		return sent, err
	}
	u.events.LogX(events.SendStop, 0)
	u.events.LogX(events.LogFileByteCount, int32(sent))
	u.events.LogX(events.LogFileUploadCompleted, 0)

	if err := os.Remove(path); err != nil {
		u.events.LogX(events.FileDeleteFailure, 0)
		u.logger.Error("delete failed", log.Str("file", name), log.Err(err))
	} else {
		u.events.LogX(events.FileDeleted, 0)
	}
	u.logger.Debug("file uploaded", log.Str("file", name), log.Int64("bytes", sent))
	return sent, nil
}

func (u *Uploader) copyChunks(ctx context.Context, conn net.Conn, f io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	var sent int64
	for {
		n, rerr := io.ReadFull(f, buf)
		if n > 0 {
			if err := u.sendAll(ctx, conn, buf[:n]); err != nil {
				return sent, err
			}
			sent += int64(n)
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			return sent, nil
		}
		if rerr != nil {
			u.events.LogX(events.SendFailure, 0)
			return sent, fmt.Errorf("read: %w", rerr)
		}
	}
}

// sendAll writes b completely, each write bounded by the send timeout.
func (u *Uploader) sendAll(ctx context.Context, conn net.Conn, b []byte) error {
	for len(b) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.SetWriteDeadline(time.Now().Add(u.cfg.SendTimeout)); err != nil {
			u.events.LogX(events.SendFailure, 0)
			return err
		}
		n, err := conn.Write(b)
		b = b[n:]
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			u.events.LogX(events.TCPSendTimeout, 0)
			return fmt.Errorf("send timeout: %w", err)
		}
		u.events.LogX(events.SendFailure, 0)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Stop cancels the active run, if any, and waits for it to finish. A Start
// still resolving is abandoned.
func (u *Uploader) Stop() {
	u.mu.Lock()
	u.stops++
	cancel, done := u.cancel, u.done
	running := u.running
	u.mu.Unlock()
	if !running {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the active run, if any, finishes.
func (u *Uploader) Wait() {
	u.mu.Lock()
	done, running := u.done, u.running
	u.mu.Unlock()
	if running {
		<-done
	}
}

// Running reports whether a run is active or being started.
func (u *Uploader) Running() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running || u.starting
}

// Result returns the state of the current or last run.
func (u *Uploader) Result() Result {
	u.mu.Lock()
	defer u.mu.Unlock()
	r := u.last
	r.Files = append([]string(nil), r.Files...)
	r.Skipped = append([]string(nil), r.Skipped...)
	return r
}
