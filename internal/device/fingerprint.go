package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime"

	"github.com/denisbrodbeck/machineid"
	"github.com/jaypipes/ghw"
)

const appID = "secfile"

// Fingerprinter reports host information used for credential provenance and
// for sizing the worker pool.
type Fingerprinter struct {
	machineID func(appID string) (string, error)
	cpu       func() (*ghw.CPUInfo, error)
	memory    func() (*ghw.MemoryInfo, error)
}

// New creates a new Fingerprinter
func New() *Fingerprinter {
	return &Fingerprinter{
		machineID: machineid.ProtectedID,
		cpu:       func() (*ghw.CPUInfo, error) { return ghw.CPU() },
		memory:    func() (*ghw.MemoryInfo, error) { return ghw.Memory() },
	}
}

// IssuerID returns an app-scoped hash of the machine id. The raw machine id
// never leaves the host. Empty when the id cannot be read.
func (f *Fingerprinter) IssuerID() string {
	id, err := f.machineID(appID)
	if err != nil || id == "" {
		return ""
	}
	return generateHash(id)[:16]
}

// Resources describes what the host can spend on a run.
type Resources struct {
	Threads     int
	TotalMemory int64
	Platform    string
}

// GetResources collects CPU and memory information, falling back to the Go
// runtime when hardware inventory is unavailable.
func (f *Fingerprinter) GetResources() (Resources, error) {
	res := Resources{
		Threads:  runtime.NumCPU(),
		Platform: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	var firstErr error
	cpu, err := f.cpu()
	if err != nil {
		firstErr = fmt.Errorf("failed to get CPU info: %w", err)
	} else if cpu.TotalThreads > 0 {
		res.Threads = int(cpu.TotalThreads)
	}

	memory, err := f.memory()
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to get memory info: %w", err)
		}
	} else {
		res.TotalMemory = memory.TotalPhysicalBytes
	}

	return res, firstErr
}

// Workers returns how many segments can be processed at once. Each worker
// holds a plaintext and a ciphertext copy of one chunk; together they may use
// at most an eighth of physical memory.
func (r Resources) Workers(chunkSize int) int {
	workers := max(r.Threads, 1)
	if r.TotalMemory > 0 && chunkSize > 0 {
		budget := r.TotalMemory / 8 / int64(2*chunkSize)
		workers = int(min(int64(workers), max(budget, 1)))
	}
	return workers
}

func generateHash(input string) string {
	hash := sha256.New()
	hash.Write([]byte(input))
	return hex.EncodeToString(hash.Sum(nil))
}
