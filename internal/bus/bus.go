// Package bus implements the system bus connecting CPU, PPU, APU, cartridge
// and input, and hosts the two scheduling cadences described by the
// emulation design: batched (default) and interleaved.
package bus

import (
	"github.com/golang/glog"

	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/emuerr"
	"gones/internal/input"
	"gones/internal/memory"
	"gones/internal/ppu"
)

// TimingMode selects the CPU/PPU/APU interleaving cadence.
type TimingMode uint8

const (
	// TimingBatched runs one CPU instruction then 3n PPU ticks then n APU
	// ticks, where n is the instruction's cycle count. Default mode.
	TimingBatched TimingMode = iota
	// TimingInterleaved ticks PPU, a CPU cycle slice, PPU, PPU for every
	// CPU cycle, trading throughput for tighter NMI/sprite-0 latency.
	TimingInterleaved
)

// Bus connects all NES components together.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Memory
	Input  *input.InputState

	totalCycles uint64
	cpuCycles   uint64
	ppuCycles   uint64
	frameCount  uint64

	dmaSuspendCycles uint64
	dmaInProgress    bool

	cyclesPerFrame uint64
	oddFrame       bool

	timingMode TimingMode

	executionLog   []BusExecutionEvent
	loggingEnabled bool
}

// New creates a new system bus with all components wired together.
func New() *Bus {
	bus := &Bus{
		PPU:   ppu.New(),
		APU:   apu.New(),
		Input: input.NewInputState(),

		cyclesPerFrame: 89342,
	}

	bus.Memory = memory.New(bus.PPU, bus.APU, nil)
	bus.Memory.SetInputSystem(bus.Input)
	bus.CPU = cpu.New(bus.Memory)

	bus.wireCallbacks()
	bus.Reset()

	return bus
}

func (b *Bus) wireCallbacks() {
	// The PPU reports NMI line level changes; the CPU's own edge detector
	// (SetNMI) decides whether a 0->1 transition actually fires.
	b.PPU.SetNMICallback(b.CPU.SetNMI)
	b.PPU.SetFrameCompleteCallback(b.handleFrameComplete)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)
}

// SetTimingMode selects the scheduling cadence (§6's Configuration record).
func (b *Bus) SetTimingMode(mode TimingMode) { b.timingMode = mode }

// Reset resets all components to their initial state.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.totalCycles = 0
	b.cpuCycles = 0
	b.ppuCycles = 0
	b.frameCount = 0
	b.dmaSuspendCycles = 0
	b.dmaInProgress = false
	b.oddFrame = false

	b.PPU.SetFrameCount(0)

	b.executionLog = make([]BusExecutionEvent, 0)
	b.loggingEnabled = false
}

// handleFrameComplete is called by the PPU when a frame naturally completes.
func (b *Bus) handleFrameComplete() {
	b.frameCount = b.PPU.GetFrameCount()
}

// Step executes one scheduling quantum in the currently selected timing
// mode and returns the number of CPU cycles it consumed.
func (b *Bus) Step() uint64 {
	if b.timingMode == TimingInterleaved {
		return b.stepInterleaved()
	}
	return b.stepBatched()
}

// stepBatched implements the default cadence: one CPU instruction (or one
// cycle of DMA stall), then 3n PPU ticks, then n APU ticks.
func (b *Bus) stepBatched() uint64 {
	preFrameCount := b.frameCount
	prePC := b.CPU.PC
	var preOpcode uint8
	if b.Memory != nil {
		preOpcode = b.Memory.Read(prePC)
	}

	var cpuCycles uint64
	if b.dmaSuspendCycles > 0 {
		cpuCycles = 1
		b.dmaSuspendCycles--
		if b.dmaSuspendCycles == 0 {
			b.dmaInProgress = false
		}
	} else {
		cpuCycles = b.CPU.Step()
	}

	for i := uint64(0); i < cpuCycles*3; i++ {
		b.PPU.Step()
		b.ppuCycles++
	}
	for i := uint64(0); i < cpuCycles; i++ {
		b.APU.Step()
	}

	b.cpuCycles += cpuCycles
	b.totalCycles += cpuCycles

	if b.loggingEnabled {
		b.logEvent(prePC, preOpcode, preFrameCount)
	}
	return cpuCycles
}

// stepInterleaved runs PPU, a CPU cycle slice, PPU, PPU for every CPU
// cycle, giving tighter NMI and sprite-0-hit latency at lower throughput.
func (b *Bus) stepInterleaved() uint64 {
	preFrameCount := b.frameCount
	prePC := b.CPU.PC
	var preOpcode uint8
	if b.Memory != nil {
		preOpcode = b.Memory.Read(prePC)
	}

	b.PPU.Step()
	b.ppuCycles++

	var cpuCycles uint64
	if b.dmaSuspendCycles > 0 {
		cpuCycles = 1
		b.dmaSuspendCycles--
		if b.dmaSuspendCycles == 0 {
			b.dmaInProgress = false
		}
	} else {
		cpuCycles = b.CPU.Step()
	}
	b.APU.Step()

	for i := uint64(0); i < 2; i++ {
		b.PPU.Step()
		b.ppuCycles++
	}
	for i := uint64(1); i < cpuCycles; i++ {
		for j := 0; j < 3; j++ {
			b.PPU.Step()
			b.ppuCycles++
		}
		b.APU.Step()
	}

	b.cpuCycles += cpuCycles
	b.totalCycles += cpuCycles

	if b.loggingEnabled {
		b.logEvent(prePC, preOpcode, preFrameCount)
	}
	return cpuCycles
}

func (b *Bus) logEvent(prePC uint16, preOpcode uint8, preFrameCount uint64) {
	event := BusExecutionEvent{
		StepNumber:    len(b.executionLog) + 1,
		CPUCycles:     b.cpuCycles,
		PPUCycles:     b.ppuCycles,
		FrameCount:    b.frameCount,
		DMAActive:     b.dmaInProgress,
		NMIProcessed:  b.frameCount > preFrameCount,
		PCValue:       prePC,
		InstructionOp: preOpcode,
	}
	b.executionLog = append(b.executionLog, event)
}

// TriggerOAMDMA initiates an OAM DMA transfer (§4.1): the CPU stalls for
// 513 cycles, or 514 if it starts on an odd CPU cycle.
func (b *Bus) TriggerOAMDMA(sourcePage uint8) {
	if b.dmaInProgress {
		return
	}

	dmaCycles := uint64(513)
	if b.cpuCycles%2 == 1 {
		dmaCycles = 514
	}

	b.dmaInProgress = true
	b.dmaSuspendCycles = dmaCycles

	sourceAddress := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		data := b.Memory.Read(sourceAddress + uint16(i))
		b.PPU.WriteOAM(uint8(i), data)
	}
}

// LoadCartridge loads a cartridge into the system, rebuilding the memory
// and CPU views and rewiring inter-component callbacks.
func (b *Bus) LoadCartridge(cart memory.CartridgeInterface) error {
	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	mirrorMode := memory.MirrorHorizontal
	cartImpl, ok := cart.(*cartridge.Cartridge)
	if !ok {
		glog.Warning("cartridge does not expose mirror mode, defaulting to horizontal")
	} else {
		switch cartImpl.GetMirrorMode() {
		case cartridge.MirrorHorizontal:
			mirrorMode = memory.MirrorHorizontal
		case cartridge.MirrorVertical:
			mirrorMode = memory.MirrorVertical
		case cartridge.MirrorSingleScreen0:
			mirrorMode = memory.MirrorSingleScreen0
		case cartridge.MirrorSingleScreen1:
			mirrorMode = memory.MirrorSingleScreen1
		case cartridge.MirrorFourScreen:
			mirrorMode = memory.MirrorFourScreen
		default:
			return &emuerr.RomUnsupportedError{MapperID: cartImpl.MapperID()}
		}
	}

	ppuMemory := memory.NewPPUMemory(cart, mirrorMode)
	b.PPU.SetMemory(ppuMemory)
	b.wireCallbacks()
	b.CPU.Reset()
	return nil
}

// Run runs the emulator for a specified number of frames.
func (b *Bus) Run(frames int) {
	targetFrames := b.frameCount + uint64(frames)
	for b.frameCount < targetFrames {
		b.Step()
	}
}

// RunCycles runs the emulator for a specified number of CPU cycles.
func (b *Bus) RunCycles(cycles uint64) {
	targetCycles := b.cpuCycles + cycles
	for b.cpuCycles < targetCycles {
		b.Step()
	}
}

// Frame executes one complete NTSC frame worth of CPU cycles.
func (b *Bus) Frame() {
	targetCycles := b.cpuCycles + 29781
	for b.cpuCycles < targetCycles {
		b.Step()
	}
}

// GetFrameRate returns the nominal NTSC frame rate.
func (b *Bus) GetFrameRate() float64 {
	cpuFrequency := 1789773.0
	cpuCyclesPerFrame := cpuFrequency / 60.098803
	return cpuFrequency / cpuCyclesPerFrame
}

// GetFrameBuffer returns the current PPU frame buffer.
func (b *Bus) GetFrameBuffer() []uint32 {
	frameBuffer := b.PPU.GetFrameBuffer()
	return frameBuffer[:]
}

// GetAudioSamples drains and returns pending audio samples from the APU's
// ring buffer.
func (b *Bus) GetAudioSamples() []float32 { return b.APU.GetSamples() }

// SetAudioSampleRate sets the target audio sample rate for the APU.
func (b *Bus) SetAudioSampleRate(rate int) { b.APU.SetSampleRate(rate) }

// GetCycleCount returns the current CPU cycle count.
func (b *Bus) GetCycleCount() uint64 { return b.cpuCycles }

// GetFrameCount returns the current frame count.
func (b *Bus) GetFrameCount() uint64 { return b.frameCount }

// IsDMAInProgress returns whether DMA is currently in progress.
func (b *Bus) IsDMAInProgress() bool { return b.dmaInProgress }

func (b *Bus) isRenderingEnabled() bool {
	mask := b.PPU.ReadRegister(0x2001)
	return (mask & 0x18) != 0
}

// SetControllerButton sets the state of a single controller button.
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
	glog.V(2).Infof("controller %d button %d pressed=%t", controller, uint8(button), pressed)
}

// SetControllerButtons sets all eight button states for a controller at once.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// EnableInputDebug enables debug logging for the input system.
func (b *Bus) EnableInputDebug(enable bool) { b.Input.EnableDebug(enable) }

// GetInputState returns the input state for direct access.
func (b *Bus) GetInputState() *input.InputState { return b.Input }

// GetExecutionLog returns the execution log recorded for testing.
func (b *Bus) GetExecutionLog() []BusExecutionEvent { return b.executionLog }

// EnableExecutionLogging enables execution logging for testing.
func (b *Bus) EnableExecutionLogging() { b.loggingEnabled = true }

// DisableExecutionLogging disables execution logging.
func (b *Bus) DisableExecutionLogging() { b.loggingEnabled = false }

// ClearExecutionLog clears the execution log.
func (b *Bus) ClearExecutionLog() { b.executionLog = make([]BusExecutionEvent, 0) }

// BusExecutionEvent represents a single execution step for testing.
type BusExecutionEvent struct {
	StepNumber    int
	CPUCycles     uint64
	PPUCycles     uint64
	FrameCount    uint64
	DMAActive     bool
	NMIProcessed  bool
	PCValue       uint16
	InstructionOp uint8
}

// GetCPUState returns the current CPU state for testing.
func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.cpuCycles,
		Flags: CPUFlags{
			N: b.CPU.N,
			V: b.CPU.V,
			B: b.CPU.B,
			D: b.CPU.D,
			I: b.CPU.I,
			Z: b.CPU.Z,
			C: b.CPU.C,
		},
	}
}

// CPUState represents a CPU state snapshot for testing.
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

// CPUFlags represents CPU status flags for testing.
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetPPUState returns the current PPU state for testing.
func (b *Bus) GetPPUState() PPUState {
	return PPUState{
		Scanline:    b.PPU.GetScanline(),
		Cycle:       b.PPU.GetCycle(),
		FrameCount:  b.frameCount,
		VBlankFlag:  b.PPU.IsVBlank(),
		RenderingOn: b.isRenderingEnabled(),
	}
}

// PPUState represents a PPU state snapshot for testing.
type PPUState struct {
	Scanline    int
	Cycle       int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}

// EnableCPUDebug enables or disables CPU debug logging and loop detection.
func (b *Bus) EnableCPUDebug(enable bool) {
	if b.CPU != nil {
		b.CPU.EnableDebugLogging(enable)
		b.CPU.EnableLoopDetection(enable)
	}
}

// SaveState serializes the whole-machine state (§4.6) as named sections:
// CPU, PPU, APU, BUS (a copy of the 2 KiB internal RAM) and, when the
// cartridge supports it, MAPPER. The bus's own timing counters are not saved.
func (b *Bus) SaveState() map[string][]byte {
	sections := map[string][]byte{
		"CPU": b.CPU.SaveState(),
		"PPU": b.PPU.SaveState(),
		"APU": b.APU.SaveState(),
		"BUS": b.Memory.SnapshotRAM(),
	}
	if saver, ok := b.Memory.Cartridge().(interface{ SaveState() []byte }); ok {
		sections["MAPPER"] = saver.SaveState()
	}
	return sections
}

// LoadState restores whole-machine state from the section map produced by
// SaveState, then runs the post-load normalization pass.
func (b *Bus) LoadState(sections map[string][]byte) {
	if data, ok := sections["CPU"]; ok {
		b.CPU.LoadState(data)
	}
	if data, ok := sections["PPU"]; ok {
		b.PPU.LoadState(data)
	}
	if data, ok := sections["APU"]; ok {
		b.APU.LoadState(data)
	}
	if data, ok := sections["BUS"]; ok {
		b.Memory.RestoreRAM(data)
	}
	if data, ok := sections["MAPPER"]; ok {
		if loader, ok := b.Memory.Cartridge().(interface{ LoadState([]byte) }); ok {
			loader.LoadState(data)
		}
	}
	b.frameCount = b.PPU.GetFrameCount()
}
