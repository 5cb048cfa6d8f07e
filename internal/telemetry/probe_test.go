package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeCard(t *testing.T, root string, idx int, util, total, used string) {
	t.Helper()
	dev := filepath.Join(root, "card"+string(rune('0'+idx)), "device")
	if err := os.MkdirAll(dev, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, val := range map[string]string{
		"gpu_busy_percent":    util,
		"mem_info_vram_total": total,
		"mem_info_vram_used":  used,
	} {
		if val == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dev, name), []byte(val+"\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestSysfsProbeReadsCards(t *testing.T) {
	root := t.TempDir()
	writeCard(t, root, 0, "37.5", "8589934592", "1073741824")
	writeCard(t, root, 1, "12", "4294967296", "0")

	accs := SysfsProbe{Root: root}.Accelerators(context.Background())
	if len(accs) != 2 {
		t.Fatalf("got %d accelerators", len(accs))
	}
	if accs[0].Utilization != 37.5 || accs[0].MemoryTotal != 8589934592 || accs[0].MemoryUsed != 1073741824 {
		t.Fatalf("card0 = %+v", accs[0])
	}
	if accs[1].ID != 1 || accs[1].Utilization != 12 {
		t.Fatalf("card1 = %+v", accs[1])
	}
}

func TestSysfsProbeDegradesToEmpty(t *testing.T) {
	if accs := (SysfsProbe{Root: t.TempDir()}).Accelerators(context.Background()); len(accs) != 0 {
		t.Fatalf("expected empty list, got %+v", accs)
	}
	// card present but no busy-percent counter: skipped, not faulted
	root := t.TempDir()
	writeCard(t, root, 0, "", "1024", "512")
	if accs := (SysfsProbe{Root: root}).Accelerators(context.Background()); len(accs) != 0 {
		t.Fatalf("expected skip without utilization counter, got %+v", accs)
	}
}

func TestSysfsProbeIgnoresGarbage(t *testing.T) {
	root := t.TempDir()
	writeCard(t, root, 0, "not-a-number", "1024", "512")
	if accs := (SysfsProbe{Root: root}).Accelerators(context.Background()); len(accs) != 0 {
		t.Fatalf("expected empty list, got %+v", accs)
	}
}
