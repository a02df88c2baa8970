package kmain

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
)

// PoolConfig describes a range of physical frames.
type PoolConfig struct {
	StartFrame uint32 `json:"start_frame"`
	Frames     uint32 `json:"frames"`
}

// WindowConfig describes a window of virtual memory in bytes.
type WindowConfig struct {
	Base uint64 `json:"base"`
	Size uint64 `json:"size"`
}

// Config describes the memory layout of the machine.
type Config struct {
	// MemorySize is the amount of physical memory in bytes.
	MemorySize uint64 `json:"memory_size"`

	KernelPool  PoolConfig `json:"kernel_pool"`
	ProcessPool PoolConfig `json:"process_pool"`

	// MemoryHole is carved out of the process pool at boot.
	MemoryHole PoolConfig `json:"memory_hole"`

	// SharedSize bytes are identity mapped by every page table.
	SharedSize uint64 `json:"shared_size"`

	CodePool WindowConfig `json:"code_pool"`
	HeapPool WindowConfig `json:"heap_pool"`

	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the standard layout: a 32 MB machine with the
// kernel pool at [2 MB, 4 MB), the process pool at [4 MB, 32 MB) with a 1 MB
// hole at 15 MB, the first 4 MB shared, and code and heap pools of 256 MB at
// 512 MB and 1 GB.
func DefaultConfig() Config {
	return Config{
		MemorySize:  uint64(32 * mem.Mb),
		KernelPool:  PoolConfig{StartFrame: framesIn(2 * mem.Mb), Frames: framesIn(2 * mem.Mb)},
		ProcessPool: PoolConfig{StartFrame: framesIn(4 * mem.Mb), Frames: framesIn(28 * mem.Mb)},
		MemoryHole:  PoolConfig{StartFrame: framesIn(15 * mem.Mb), Frames: framesIn(1 * mem.Mb)},
		SharedSize:  uint64(4 * mem.Mb),
		CodePool:    WindowConfig{Base: uint64(512 * mem.Mb), Size: uint64(256 * mem.Mb)},
		HeapPool:    WindowConfig{Base: uint64(1 * mem.Gb), Size: uint64(256 * mem.Mb)},
		LogLevel:    "INFO",
	}
}

// LoadConfig reads a JSON configuration file. Fields missing from the file
// keep their default values.
func LoadConfig(filePath string) (Config, error) {
	cfg := DefaultConfig()

	configFile, err := os.Open(filePath)
	if err != nil {
		return cfg, err
	}
	defer configFile.Close()

	if err := json.NewDecoder(configFile).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config %s: %w", filePath, err)
	}

	return cfg, nil
}

func framesIn(size mem.Size) uint32 {
	return size.Pages()
}
