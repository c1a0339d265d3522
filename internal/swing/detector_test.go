package swing

import (
	"testing"

	"github.com/relabs-tech/racquet_stream/internal/ring"
	"github.com/relabs-tech/racquet_stream/internal/sample"
)

// feed writes a sample into history and runs it through the detector, the
// same order the acquisition loop uses.
func feed(d *Detector, h *ring.Buffer, seq uint32, tMS int64, accelMag float64) {
	s := sample.Sample{
		Seq:         seq,
		TimestampMS: tMS,
		Accel:       sample.Vec3{X: accelMag},
	}
	h.Write(s)
	d.Observe(&s)
}

func newStack(cfg Config) (*Detector, *ring.Buffer, *SnapshotStore) {
	h := ring.New(cfg.PreSamples + cfg.PostSamples)
	st := NewSnapshotStore(cfg.PreSamples + cfg.PostSamples)
	return NewDetector(cfg, h, st), h, st
}

func TestNoTriggerBelowThreshold(t *testing.T) {
	cfg := Config{AccelThreshold: 30, DebounceMS: 1000, PreSamples: 4, PostSamples: 6}
	d, h, st := newStack(cfg)

	for i := 0; i < 100; i++ {
		feed(d, h, uint32(i), int64(i)*5, 29)
	}
	if d.State() != Normal {
		t.Fatal("detector left Normal on sub-threshold input")
	}
	if st.Pending() {
		t.Fatal("snapshot published without a trigger")
	}
}

func TestCaptureCompleteness(t *testing.T) {
	cfg := Config{AccelThreshold: 30, DebounceMS: 1000, PreSamples: 4, PostSamples: 6}
	d, h, st := newStack(cfg)

	seq := uint32(0)
	tMS := int64(0)
	next := func(mag float64) {
		feed(d, h, seq, tMS, mag)
		seq++
		tMS += 5
	}

	for i := 0; i < 20; i++ {
		next(10)
	}
	triggerT := tMS
	next(35) // trigger
	if d.State() != Capturing {
		t.Fatal("detector did not enter Capturing on threshold crossing")
	}
	for i := 0; i < cfg.PostSamples; i++ {
		next(10)
	}

	dst := make([]sample.Sample, cfg.PreSamples+cfg.PostSamples)
	n, trig, ok := st.TakeCopy(dst)
	if !ok {
		t.Fatal("no snapshot published after post-trigger count reached")
	}
	if n != cfg.PreSamples+cfg.PostSamples {
		t.Fatalf("snapshot has %d samples, want %d", n, cfg.PreSamples+cfg.PostSamples)
	}
	if trig != triggerT {
		t.Fatalf("trigger_t = %d, want %d", trig, triggerT)
	}
	// Window must be contiguous, time-ordered, and contain the trigger time.
	for i := 1; i < n; i++ {
		if dst[i].Seq != dst[i-1].Seq+1 {
			t.Fatalf("window not contiguous at %d: seq %d then %d", i, dst[i-1].Seq, dst[i].Seq)
		}
	}
	if trig < dst[0].TimestampMS || trig > dst[n-1].TimestampMS {
		t.Fatalf("trigger_t=%d outside window [%d, %d]", trig, dst[0].TimestampMS, dst[n-1].TimestampMS)
	}
}

func TestDebounceInvariant(t *testing.T) {
	cfg := Config{AccelThreshold: 30, DebounceMS: 1000, PreSamples: 2, PostSamples: 2}
	d, h, st := newStack(cfg)

	var triggers []int64
	seq := uint32(0)
	// Every sample exceeds threshold; only debounce limits the trigger rate.
	for tMS := int64(0); tMS < 10000; tMS += 5 {
		wasNormal := d.State() == Normal
		feed(d, h, seq, tMS, 50)
		seq++
		if wasNormal && d.State() == Capturing {
			triggers = append(triggers, tMS)
		}
		st.Clear() // pretend instant delivery so only debounce gates
	}

	if len(triggers) < 2 {
		t.Fatalf("expected multiple triggers, got %d", len(triggers))
	}
	for i := 1; i < len(triggers); i++ {
		if gap := triggers[i] - triggers[i-1]; gap <= cfg.DebounceMS {
			t.Fatalf("triggers %d ms apart, debounce is %d ms", gap, cfg.DebounceMS)
		}
	}
}

func TestPendingSnapshotSuppressesTrigger(t *testing.T) {
	cfg := Config{AccelThreshold: 30, DebounceMS: 10, PreSamples: 2, PostSamples: 2}
	d, h, st := newStack(cfg)

	seq := uint32(0)
	tMS := int64(0)
	next := func(mag float64) {
		feed(d, h, seq, tMS, mag)
		seq++
		tMS += 100 // well past debounce every step
	}

	next(50)
	next(10)
	next(10) // finalizes
	if !st.Pending() {
		t.Fatal("first capture not published")
	}

	// Snapshot undelivered: a fresh spike must not re-trigger.
	next(50)
	if d.State() != Normal {
		t.Fatal("trigger accepted while snapshot pending")
	}

	st.Clear()
	next(50)
	if d.State() != Capturing {
		t.Fatal("trigger rejected after snapshot cleared")
	}
}

// Scenario from the field tuning notes: 400 Hz stream, pre=80/post=120,
// debounce 1000 ms, swing at t=1000 with a second spike inside the
// debounce window.
func TestSwingScenario(t *testing.T) {
	cfg := Config{AccelThreshold: 30, DebounceMS: 1000, PreSamples: 80, PostSamples: 120}
	d, h, st := newStack(cfg)

	seq := uint32(0)
	tMS := int64(0)

	next := func(tm int64, mag float64) {
		feed(d, h, seq, tm, mag)
		seq++
	}

	// Warm the history so a full pre window exists, then 50 sub-threshold
	// samples leading up to the swing.
	for i := 0; i < 150; i++ {
		next(tMS, 29)
		tMS += 2
	}
	for i := 0; i < 50; i++ {
		next(tMS, 29)
		tMS += 2
	}
	if st.Pending() {
		t.Fatal("triggered on sub-threshold input")
	}

	next(1000, 35) // the swing
	if d.State() != Capturing {
		t.Fatal("swing at t=1000 not triggered")
	}

	// Post-trigger fill; includes a spike at t=1500 that must be ignored
	// (capturing, and inside debounce regardless).
	tm := int64(1005)
	for i := 0; i < cfg.PostSamples; i++ {
		mag := 10.0
		if tm == 1500 {
			mag = 40
		}
		next(tm, mag)
		tm += 5
	}

	dst := make([]sample.Sample, 200)
	n, trig, ok := st.TakeCopy(dst)
	if !ok {
		t.Fatal("snapshot not finalized")
	}
	if n != 200 {
		t.Fatalf("snapshot has %d samples, want 200", n)
	}
	if trig != 1000 {
		t.Fatalf("trigger_t = %d, want 1000", trig)
	}

	// Deliver it, then confirm a spike still inside the debounce window is
	// rejected while one after t=2000 is accepted.
	st.Clear()
	next(1900, 40)
	if d.State() != Normal {
		t.Fatal("re-trigger accepted at t=1900, inside 1000 ms debounce")
	}
	next(2100, 40)
	if d.State() != Capturing {
		t.Fatal("trigger rejected at t=2100, past the debounce window")
	}
}

func TestCaptureSummaryReported(t *testing.T) {
	cfg := Config{AccelThreshold: 30, DebounceMS: 1000, PreSamples: 4, PostSamples: 6}
	d, h, _ := newStack(cfg)

	var got []Summary
	d.OnCapture(func(sum Summary) { got = append(got, sum) })

	seq := uint32(0)
	tMS := int64(0)
	next := func(mag float64) {
		feed(d, h, seq, tMS, mag)
		seq++
		tMS += 5
	}

	for i := 0; i < 10; i++ {
		next(10)
	}
	triggerT := tMS
	next(42.5) // trigger
	if len(got) != 0 {
		t.Fatal("summary reported before the capture finalized")
	}
	for i := 0; i < cfg.PostSamples; i++ {
		next(10)
	}

	if len(got) != 1 {
		t.Fatalf("got %d summaries, want 1", len(got))
	}
	sum := got[0]
	if sum.TriggerMS != triggerT {
		t.Fatalf("summary trigger_t = %d, want %d", sum.TriggerMS, triggerT)
	}
	if sum.TriggerMag != 42.5 {
		t.Fatalf("summary trigger magnitude = %g, want 42.5", sum.TriggerMag)
	}
	if sum.Samples != cfg.PreSamples+cfg.PostSamples {
		t.Fatalf("summary sample count = %d, want %d", sum.Samples, cfg.PreSamples+cfg.PostSamples)
	}
}
