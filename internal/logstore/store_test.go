package logstore

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/record"
)

type fakeClock struct {
	now       uint32
	suspended bool
	offset    uint32
}

func (c *fakeClock) Now() uint32 { return c.now + c.offset }
func (c *fakeClock) Suspend()    { c.suspended = true }

func (c *fakeClock) Resume(us uint32) {
	c.suspended = false
	c.offset += us
}

type memPersister struct{ image []byte }

func (p *memPersister) SaveRegion(b []byte) error {
	p.image = b
	return nil
}

// newStore opens a cold store and discards the LOG_START record.
func newStore(t *testing.T, capacity int, opts Options) (*Store, *fakeClock) {
	t.Helper()
	region, err := NewRegion(capacity)
	if err != nil {
		t.Fatalf("region: %v", err)
	}
	clk := &fakeClock{}
	s, warm := Open(region, clk, opts)
	if warm {
		t.Fatalf("fresh region reported warm start")
	}
	buf := make([]record.Record, 1)
	if n := s.Pop(buf); n != 1 || buf[0].Event != events.LogStart {
		t.Fatalf("expected LOG_START, got %d %+v", n, buf[0])
	}
	return s, clk
}

func popAll(s *Store) []record.Record {
	buf := make([]record.Record, s.Capacity()+1)
	n := s.Pop(buf)
	return buf[:n]
}

func TestFIFOOrder(t *testing.T) {
	s, clk := newStore(t, 8, Options{})
	for i := 1; i <= 3; i++ {
		clk.now = uint32(i * 100)
		s.Log(events.User0, int32(i))
	}
	if s.Count() != 3 {
		t.Fatalf("count=%d", s.Count())
	}
	got := popAll(s)
	if len(got) != 3 {
		t.Fatalf("popped %d", len(got))
	}
	for i, r := range got {
		if r.Parameter != int32(i+1) || r.Timestamp != uint32((i+1)*100) || r.Event != events.User0 {
			t.Fatalf("record %d: %+v", i, r)
		}
	}
	if s.Count() != 0 {
		t.Fatalf("count after pop=%d", s.Count())
	}
}

func TestOverwriteReportsLoss(t *testing.T) {
	s, _ := newStore(t, 4, Options{})
	for i := 1; i <= 5; i++ {
		s.Log(events.User1, int32(i))
	}
	if s.Count() != 4 {
		t.Fatalf("pending=%d want 4", s.Count())
	}
	if s.Overwritten() != 1 {
		t.Fatalf("overwritten=%d want 1", s.Overwritten())
	}
	got := popAll(s)
	if len(got) != 5 {
		t.Fatalf("popped %d want 5", len(got))
	}
	if got[0].Event != events.LogEntriesOverwritten || got[0].Parameter != 1 {
		t.Fatalf("first record %+v", got[0])
	}
	for i, want := range []int32{2, 3, 4, 5} {
		if got[i+1].Parameter != want {
			t.Fatalf("record %d param=%d want %d", i+1, got[i+1].Parameter, want)
		}
	}
	if s.Overwritten() != 0 {
		t.Fatalf("overwritten not reset")
	}
}

func TestPopRespectsLimitWithMarker(t *testing.T) {
	s, _ := newStore(t, 2, Options{})
	for i := 1; i <= 4; i++ {
		s.Log(events.User0, int32(i))
	}
	buf := make([]record.Record, 1)
	if n := s.Pop(buf); n != 1 || buf[0].Event != events.LogEntriesOverwritten || buf[0].Parameter != 2 {
		t.Fatalf("first pop %d %+v", n, buf[0])
	}
	if s.Count() != 2 {
		t.Fatalf("marker consumed data: pending=%d", s.Count())
	}
	if n := s.Pop(buf); n != 1 || buf[0].Parameter != 3 {
		t.Fatalf("second pop %d %+v", n, buf[0])
	}
}

func TestTimeWrapMarker(t *testing.T) {
	s, clk := newStore(t, 8, Options{})
	clk.now = 4000000000
	s.Log(events.User0, 1)
	clk.now = 10
	s.Log(events.User0, 2)
	clk.now = 20
	s.Log(events.User0, 3)

	got := popAll(s)
	if len(got) != 4 {
		t.Fatalf("got %d records: %+v", len(got), got)
	}
	if got[1].Event != events.LogTimeWrap || got[1].Timestamp != 10 || got[1].Parameter != 10 {
		t.Fatalf("wrap marker %+v", got[1])
	}
	if got[2].Parameter != 2 || got[3].Parameter != 3 {
		t.Fatalf("records after wrap %+v", got[2:])
	}
	wraps := 0
	for _, r := range got {
		if r.Event == events.LogTimeWrap {
			wraps++
		}
	}
	if wraps != 1 {
		t.Fatalf("wraps=%d", wraps)
	}
}

func TestSuspendResumeOffset(t *testing.T) {
	s, clk := newStore(t, 4, Options{})
	clk.now = 500
	s.Suspend()
	if !clk.suspended {
		t.Fatalf("clock not suspended")
	}
	s.Resume(1000)
	s.Log(events.User2, 0)
	got := popAll(s)
	if len(got) != 1 || got[0].Timestamp != 1500 {
		t.Fatalf("got %+v", got)
	}
}

func TestWarmStartKeepsRecords(t *testing.T) {
	region, _ := NewRegion(8)
	clk := &fakeClock{}
	s, _ := Open(region, clk, Options{})
	s.Log(events.User3, 99)

	image := append([]byte(nil), region.Bytes()...)
	again, err := WrapRegion(image, 8)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	s2, warm := Open(again, clk, Options{})
	if !warm {
		t.Fatalf("expected warm start")
	}
	got := popAll(s2)
	if len(got) != 3 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Event != events.LogStart || got[1].Parameter != 99 || got[2].Event != events.LogStartAgain {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestColdStartOnVersionMismatch(t *testing.T) {
	region, _ := NewRegion(4)
	clk := &fakeClock{}
	s, _ := Open(region, clk, Options{Version: 3})
	s.Log(events.User0, 1)

	s2, warm := Open(region, clk, Options{Version: 4})
	if warm {
		t.Fatalf("version change must reinitialise")
	}
	got := popAll(s2)
	if len(got) != 1 || got[0].Event != events.LogStart || got[0].Parameter != 4 {
		t.Fatalf("got %+v", got)
	}
}

func TestColdStartOnCorruptCursor(t *testing.T) {
	region, _ := NewRegion(4)
	clk := &fakeClock{}
	Open(region, clk, Options{})
	region.setWrite(17)
	if _, warm := Open(region, clk, Options{}); warm {
		t.Fatalf("out of range cursor accepted")
	}
}

func TestWrapRegionRejectsBadSize(t *testing.T) {
	if _, err := WrapRegion(make([]byte, 10), 4); err == nil {
		t.Fatalf("expected size error")
	}
	if _, err := NewRegion(0); err == nil {
		t.Fatalf("expected capacity error")
	}
}

func TestTryDrainBusy(t *testing.T) {
	s, _ := newStore(t, 4, Options{})
	s.Log(events.User0, 1)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.Locked(func([]record.Record) error {
			close(locked)
			<-release
			return nil
		})
		close(done)
	}()
	<-locked
	n, ok, err := s.TryDrain(func(record.Record) error { return nil })
	if ok || n != 0 || err != nil {
		t.Fatalf("drain while locked: n=%d ok=%v err=%v", n, ok, err)
	}
	close(release)
	<-done

	var got []record.Record
	n, ok, err = s.TryDrain(func(r record.Record) error {
		got = append(got, r)
		return nil
	})
	if !ok || err != nil || n != 1 || got[0].Parameter != 1 {
		t.Fatalf("drain: n=%d ok=%v err=%v got=%+v", n, ok, err, got)
	}
}

func TestTryDrainStopsOnError(t *testing.T) {
	s, _ := newStore(t, 4, Options{})
	s.Log(events.User0, 1)
	s.Log(events.User0, 2)
	boom := errors.New("disk full")
	n, ok, err := s.TryDrain(func(record.Record) error { return boom })
	if !ok || n != 0 || !errors.Is(err, boom) {
		t.Fatalf("n=%d ok=%v err=%v", n, ok, err)
	}
	if s.Count() != 1 {
		t.Fatalf("pending=%d", s.Count())
	}
}

func TestUnreadDoesNotConsume(t *testing.T) {
	s, _ := newStore(t, 4, Options{})
	s.Log(events.User0, 1)
	s.Log(events.User0, 2)
	if u := s.Unread(); len(u) != 2 || u[1].Parameter != 2 {
		t.Fatalf("unread %+v", u)
	}
	if s.Count() != 2 {
		t.Fatalf("unread consumed records")
	}
	h := s.Header()
	if h.Magic != Magic || h.Pending != 2 || h.Capacity != 4 {
		t.Fatalf("header %+v", h)
	}
}

func TestStrictConcurrentWriters(t *testing.T) {
	s, _ := newStore(t, 1000, Options{Strict: true})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Log(events.User0, int32(i))
			}
		}()
	}
	wg.Wait()
	if s.Count() != 400 {
		t.Fatalf("count=%d want 400", s.Count())
	}
}

func TestCheckpoint(t *testing.T) {
	p := &memPersister{}
	s, _ := newStore(t, 4, Options{Persister: p})
	s.Log(events.User0, 5)
	if err := s.Checkpoint(); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if len(p.image) != RegionSize(4) {
		t.Fatalf("image size %d", len(p.image))
	}
	r, _ := WrapRegion(p.image, 4)
	if r.header().Pending != 1 {
		t.Fatalf("persisted pending %d", r.header().Pending)
	}
}

func TestEchoWritesEachRecord(t *testing.T) {
	region, err := NewRegion(8)
	if err != nil {
		t.Fatalf("region: %v", err)
	}
	var out strings.Builder
	clk := &fakeClock{now: 1500}
	s, _ := Open(region, clk, Options{Echo: &out})
	s.Log(events.User0, 11)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "LOG_START") || !strings.HasPrefix(lines[1], " 1.500: ") ||
		!strings.HasSuffix(lines[1], "11 (0xb)") {
		t.Fatalf("echo:\n%s", out.String())
	}
	if s.Count() != 2 {
		t.Fatalf("echo must not replace storage, count=%d", s.Count())
	}
}

func TestPrintOnlyLeavesRingEmpty(t *testing.T) {
	region, err := NewRegion(8)
	if err != nil {
		t.Fatalf("region: %v", err)
	}
	var out strings.Builder
	clk := &fakeClock{now: 500}
	s, _ := Open(region, clk, Options{Echo: &out, PrintOnly: true})
	s.Log(events.User0, 1)
	clk.now = 10
	s.LogX(events.User1, 2)

	if s.Count() != 0 || s.Overwritten() != 0 {
		t.Fatalf("count=%d overwritten=%d", s.Count(), s.Overwritten())
	}
	text := out.String()
	if strings.Count(text, "\n") != 4 || !strings.Contains(text, "LOG_TIME_WRAP") {
		t.Fatalf("echo:\n%s", text)
	}
}

func TestPrintOnlyNeedsEcho(t *testing.T) {
	s, _ := newStore(t, 8, Options{PrintOnly: true})
	s.Log(events.User0, 1)
	if s.Count() != 1 {
		t.Fatalf("count=%d", s.Count())
	}
}
