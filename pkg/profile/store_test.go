package profile

import (
	"path/filepath"
	"testing"

	"github.com/Savani-Raj/minivm-plus/pkg/bytecode"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleProfile() *Profile {
	p := New(DefaultThresholds())
	p.Observe("main", "x", bytecode.KindFloat)
	for i := 0; i < 150; i++ {
		p.Observe("main", "x", bytecode.KindInt)
		p.Observe("main", "i", bytecode.KindInt)
	}
	for i := 0; i < 2000; i++ {
		p.EnterBlock("main", "body")
	}
	p.EnterBlock("main", "exit")
	for i := 0; i < 9; i++ {
		p.Branch("main:cond", true)
	}
	p.Branch("main:cond", false)
	for i := 0; i < 500; i++ {
		p.Call("double")
	}
	return p
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	original := sampleProfile()
	if err := s.Save("run1", original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load("run1", DefaultThresholds())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Type histogram including first-observed order.
	kind, count, ok := loaded.DominantType("main", "x")
	if !ok || kind != bytecode.KindInt || count != 150 {
		t.Errorf("x dominant = %s (%d), want int (150)", kind, count)
	}
	if tp := loaded.Types[VarKey{"main", "x"}]; len(tp.Order) != 2 || tp.Order[0] != bytecode.KindFloat {
		t.Errorf("x observation order = %v, want float first", tp.Order)
	}
	if k, mono := loaded.Monomorphic("main", "i"); !mono || k != bytecode.KindInt {
		t.Errorf("i = %s, %v; want int, true", k, mono)
	}

	if got := loaded.BlockCount("main", "body"); got != 2000 {
		t.Errorf("body count = %d, want 2000", got)
	}
	if got := loaded.TakenRatio("main:cond"); got != 0.9 {
		t.Errorf("cond ratio = %v, want 0.9", got)
	}
	if got := loaded.CallCount("double"); got != 500 {
		t.Errorf("double calls = %d, want 500", got)
	}
	if !loaded.Hot("double") {
		t.Error("double not hot after load")
	}
}

func TestStoreSaveReplacesRun(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save("run1", sampleProfile()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	smaller := New(DefaultThresholds())
	smaller.Call("double")
	if err := s.Save("run1", smaller); err != nil {
		t.Fatalf("Save (replace): %v", err)
	}

	loaded, err := s.Load("run1", DefaultThresholds())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.CallCount("double"); got != 1 {
		t.Errorf("double calls = %d after replace, want 1", got)
	}
	if len(loaded.Blocks) != 0 {
		t.Errorf("stale block rows survived replace: %v", loaded.Blocks)
	}
}

func TestStoreLoadUnknownRunIsEmpty(t *testing.T) {
	s := openTestStore(t)
	loaded, err := s.Load("nope", DefaultThresholds())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Types)+len(loaded.Blocks)+len(loaded.Branches)+len(loaded.Calls) != 0 {
		t.Error("unknown run label yielded data")
	}
}

func TestStoreRuns(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save("a", sampleProfile()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save("b", sampleProfile()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0] != "a" || runs[1] != "b" {
		t.Errorf("Runs = %v", runs)
	}
}
