//go:build linux

package limits

import (
	"os"
	"os/exec"
	"strconv"
	"testing"
)

const childEnv = "PLANNERBENCH_LIMITS_CHILD"

// The limit is installed in a re-executed child so the test binary itself
// keeps its address space.
func TestProcessLimitAddressSpace(t *testing.T) {
	if os.Getenv(childEnv) == "1" {
		const limit = 8 << 30
		if err := (Process{}).LimitAddressSpace(limit); err != nil {
			t.Fatalf("LimitAddressSpace: %v", err)
		}
		got, err := AddressSpace()
		if err != nil {
			t.Fatalf("AddressSpace: %v", err)
		}
		if got > limit {
			t.Fatalf("limit not applied: %d", got)
		}
		os.Stdout.WriteString("limit=" + strconv.FormatUint(got, 10) + "\n")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestProcessLimitAddressSpace$")
	cmd.Env = append(os.Environ(), childEnv+"=1")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("child failed: %v\n%s", err, out)
	}
}

func TestZeroLimitIsUnlimited(t *testing.T) {
	if err := (Process{}).LimitAddressSpace(0); err != nil {
		t.Errorf("expected zero limit to be a no-op, got %v", err)
	}
	if err := (Noop{}).LimitAddressSpace(1); err != nil {
		t.Errorf("Noop returned %v", err)
	}
}
