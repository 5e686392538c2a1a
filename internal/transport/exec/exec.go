// Package exec implements the subprocess action sink (spec.md §9):
// a single spawn(argv) primitive replacing the source's
// fork/execvp rule action, so a rule engine test can substitute a
// recorder instead of actually forking. Grounded on
// original_source/common/SensorsData.cpp's ActionRule::execute.
package exec

import (
	"os/exec"

	"github.com/akonshin-labs/rfgateway/internal/rules"
)

// Spawner runs an argv as a detached subprocess, mirroring
// ActionRule::execute's fork+execvp without waiting for the child.
type Spawner interface {
	Spawn(argv []string) error
}

// OSSpawner runs argv through os/exec.Command.
type OSSpawner struct{}

func (OSSpawner) Spawn(argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	return cmd.Start()
}

// Sink is a rules.Sink that splits the rendered message into an argv
// using rules.SplitArgv and spawns it, implementing an ActionRule.
type Sink struct {
	Spawner Spawner
}

// NewSink builds a Sink running commands via the real OS, matching the
// default teacher-style behavior; tests inject a recording Spawner
// instead of OSSpawner.
func NewSink() *Sink {
	return &Sink{Spawner: OSSpawner{}}
}

var _ rules.Sink = (*Sink)(nil)

func (s *Sink) Dispatch(message string) error {
	argv, err := rules.SplitArgv(message)
	if err != nil {
		return err
	}
	if len(argv) == 0 {
		return nil
	}
	return s.Spawner.Spawn(argv)
}
