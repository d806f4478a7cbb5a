package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// InstanceType identifies the kind of curios process.
type InstanceType string

// InstanceDevBackend is a running `curios dev-backend`.
const InstanceDevBackend InstanceType = "dev-backend"

// Instance represents a running curios process that other processes can
// discover (currently only the development backend).
type Instance struct {
	Type      InstanceType `json:"type"`
	PID       int          `json:"pid"`
	Port      int          `json:"port,omitempty"`
	Host      string       `json:"host,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// URL returns the base URL the instance listens on.
func (i Instance) URL() string {
	host := i.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, i.Port)
}

func instancesPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "instances.json"), nil
}

// RegisterInstance adds a new instance entry, cleaning stale entries first.
func RegisterInstance(inst Instance) error {
	path, err := instancesPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	instances, _ := readInstances(path)
	instances = append(cleanStale(instances), inst)
	return writeInstances(path, instances)
}

// UnregisterInstance removes an instance by PID.
func UnregisterInstance(pid int) error {
	path, err := instancesPath()
	if err != nil {
		return err
	}

	instances, _ := readInstances(path)
	kept := instances[:0]
	for _, inst := range instances {
		if inst.PID != pid {
			kept = append(kept, inst)
		}
	}
	return writeInstances(path, kept)
}

// ListInstances returns all live instances, dropping entries whose process
// has exited.
func ListInstances() ([]Instance, error) {
	path, err := instancesPath()
	if err != nil {
		return nil, err
	}

	instances, err := readInstances(path)
	if err != nil {
		return nil, err
	}

	live := cleanStale(instances)
	if len(live) != len(instances) {
		_ = writeInstances(path, live)
	}
	return live, nil
}

// FindInstance returns the most recently started live instance of type t.
func FindInstance(t InstanceType) *Instance {
	instances, err := ListInstances()
	if err != nil {
		return nil
	}
	var found *Instance
	for i := range instances {
		inst := instances[i]
		if inst.Type != t {
			continue
		}
		if found == nil || inst.StartedAt.After(found.StartedAt) {
			found = &inst
		}
	}
	return found
}

// FindInstanceByPort returns the instance using the given port, or nil.
func FindInstanceByPort(port int) *Instance {
	instances, err := ListInstances()
	if err != nil {
		return nil
	}
	for _, inst := range instances {
		if inst.Port == port {
			return &inst
		}
	}
	return nil
}

func readInstances(path string) ([]Instance, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var instances []Instance
	if err := json.Unmarshal(data, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

func writeInstances(path string, instances []Instance) error {
	data, err := json.MarshalIndent(instances, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func cleanStale(instances []Instance) []Instance {
	live := make([]Instance, 0, len(instances))
	for _, inst := range instances {
		if isProcessAlive(inst.PID) {
			live = append(live, inst)
		}
	}
	return live
}
