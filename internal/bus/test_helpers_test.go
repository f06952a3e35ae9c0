package bus

import (
	"gones/internal/cartridge"
	"testing"
)

func TestSetFrameBufferForTesting(t *testing.T) {
	b := New()
	cart := cartridge.NewMockCartridge()
	if err := b.LoadCartridge(cart); err != nil {
		t.Fatalf("LoadCartridge failed: %v", err)
	}
	b.Reset()

	var injected [256 * 240]uint32
	injected[42] = 0xCAFEBA
	b.SetFrameBufferForTesting(injected)

	if got := b.PPU.GetFrameBuffer(); got != injected {
		t.Error("SetFrameBufferForTesting did not propagate to the PPU")
	}
}

func TestStepWithError(t *testing.T) {
	b := New()
	romData := make([]uint8, 0x8000)
	romData[0x0000] = 0xEA // NOP
	romData[0x7FFC] = 0x00
	romData[0x7FFD] = 0x80

	cart := cartridge.NewMockCartridge()
	cart.LoadPRG(romData)
	if err := b.LoadCartridge(cart); err != nil {
		t.Fatalf("LoadCartridge failed: %v", err)
	}
	b.Reset()

	initialCycles := b.GetCycleCount()
	if err := b.StepWithError(); err != nil {
		t.Fatalf("StepWithError returned error: %v", err)
	}
	if b.GetCycleCount() <= initialCycles {
		t.Error("StepWithError did not advance the CPU cycle count")
	}
}
