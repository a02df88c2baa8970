package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/cpu"
)

func TestCriticalSection(t *testing.T) {
	defer cpu.Reset()

	cpu.EnableInterrupts()

	outer := Enter()
	assert.False(t, cpu.InterruptsEnabled())

	inner := Enter()
	assert.False(t, cpu.InterruptsEnabled())
	inner.Leave()
	assert.False(t, cpu.InterruptsEnabled(), "leaving a nested section must keep interrupts disabled")

	outer.Leave()
	assert.True(t, cpu.InterruptsEnabled())
}

func TestCriticalSectionWithInterruptsDisabled(t *testing.T) {
	defer func() {
		disableInterruptsFn = cpu.DisableInterrupts
		enableInterruptsFn = cpu.EnableInterrupts
		cpu.Reset()
	}()

	var disableCalls, enableCalls int
	disableInterruptsFn = func() { disableCalls++ }
	enableInterruptsFn = func() { enableCalls++ }

	cpu.DisableInterrupts()
	func() {
		defer Enter().Leave()
	}()

	assert.Zero(t, disableCalls)
	assert.Zero(t, enableCalls)
}
