// Package input implements controller handling for the NES.
package input

import (
	"github.com/golang/glog"
)

// Button represents NES controller buttons
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Convenience constants for shorter names used by frontends
const (
	A      = ButtonA
	B      = ButtonB
	Select = ButtonSelect
	Start  = ButtonStart
	Up     = ButtonUp
	Down   = ButtonDown
	Left   = ButtonLeft
	Right  = ButtonRight
)

// Controller represents a NES controller: an 8-bit shift register fed by a
// live button snapshot, per §4.7.
type Controller struct {
	buttons uint8

	shiftRegister uint8
	strobe        bool

	buttonSnapshot uint8
	bitPosition    uint8

	debugEnabled bool
}

// New creates a new Controller instance.
func New() *Controller {
	return &Controller{}
}

// SetButton sets the state of a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
	glog.V(2).Infof("controller button %d pressed=%t buttons=0x%02X", uint8(button), pressed, c.buttons)
}

// SetButtons sets all eight button states at once, in NES bit order
// {A, B, Select, Start, Up, Down, Left, Right}.
func (c *Controller) SetButtons(buttons [8]bool) {
	c.buttons = 0
	bits := [8]Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}
	for i, pressed := range buttons {
		if pressed {
			c.buttons |= uint8(bits[i])
		}
	}
}

// IsPressed returns true if the button is currently pressed.
func (c *Controller) IsPressed(button Button) bool {
	return (c.buttons & uint8(button)) != 0
}

// Write handles writes to the controller strobe register ($4016). Holding
// bit 0 high continuously relatches the live button state; dropping it
// freezes the latch and resets the read index.
func (c *Controller) Write(value uint8) {
	strobe := (value & 1) != 0
	if strobe {
		c.buttonSnapshot = c.buttons
		c.shiftRegister = c.buttons
		c.bitPosition = 0
	} else if c.strobe {
		c.buttonSnapshot = c.buttons
		c.shiftRegister = c.buttonSnapshot
		c.bitPosition = 0
	}
	c.strobe = strobe
}

// Read returns the next bit of the shift register (§4.7): while strobe is
// held high it continuously returns bit 0 of the live state; otherwise it
// returns one bit per read for the first 8 reads, then returns 1.
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.bitPosition = 0
		return c.buttonSnapshot & 1
	}

	if c.bitPosition >= 8 {
		return 1
	}

	result := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitPosition++
	return result
}

// Reset resets the controller state.
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
	c.buttonSnapshot = 0
	c.bitPosition = 0
}

// EnableDebug enables verbose tracing for this controller.
func (c *Controller) EnableDebug(enable bool) { c.debugEnabled = enable }

// GetBitPosition returns the current bit position (for testing).
func (c *Controller) GetBitPosition() uint8 { return c.bitPosition }

// InputState represents the state of both controller ports.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates a new input state with two controllers.
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Reset resets both controllers.
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// EnableDebug enables verbose tracing for both controllers.
func (is *InputState) EnableDebug(enable bool) {
	is.Controller1.EnableDebug(enable)
	is.Controller2.EnableDebug(enable)
}

// SetButtons1 sets all button states for controller 1.
func (is *InputState) SetButtons1(buttons [8]bool) { is.Controller1.SetButtons(buttons) }

// SetButtons2 sets all button states for controller 2.
func (is *InputState) SetButtons2(buttons [8]bool) { is.Controller2.SetButtons(buttons) }

// Read reads from controller ports $4016/$4017. Both controllers share the
// same strobe signal; $4017's open-bus bit 6 is always set.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		result := is.Controller1.Read()
		if is.Controller1.debugEnabled {
			glog.V(2).Infof("$4016 read: 0x%02X", result)
		}
		return result
	case 0x4017:
		result := is.Controller2.Read() | 0x40
		if is.Controller2.debugEnabled {
			glog.V(2).Infof("$4017 read: 0x%02X", result)
		}
		return result
	default:
		return 0
	}
}

// Write writes to the shared controller strobe register at $4016.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}

// SaveState serializes both controllers' shift-register state.
func (is *InputState) SaveState() []byte {
	return []byte{
		is.Controller1.buttons, is.Controller1.shiftRegister, boolToByte(is.Controller1.strobe),
		is.Controller1.buttonSnapshot, is.Controller1.bitPosition,
		is.Controller2.buttons, is.Controller2.shiftRegister, boolToByte(is.Controller2.strobe),
		is.Controller2.buttonSnapshot, is.Controller2.bitPosition,
	}
}

// LoadState restores both controllers' shift-register state.
func (is *InputState) LoadState(data []byte) {
	if len(data) < 10 {
		return
	}
	is.Controller1.buttons, is.Controller1.shiftRegister = data[0], data[1]
	is.Controller1.strobe, is.Controller1.buttonSnapshot, is.Controller1.bitPosition = data[2] != 0, data[3], data[4]
	is.Controller2.buttons, is.Controller2.shiftRegister = data[5], data[6]
	is.Controller2.strobe, is.Controller2.buttonSnapshot, is.Controller2.bitPosition = data[7] != 0, data[8], data[9]
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
