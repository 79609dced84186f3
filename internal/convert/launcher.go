package convert

import (
	"context"
	"fmt"
	"log"
	"os/exec"
)

// ExecLauncher starts an external VR viewer process with the model path as
// its final argument. The viewer runs on its own, the launcher only reports
// whether it could be started.
type ExecLauncher struct {
	Command string
	Args    []string
}

// NewExecLauncher creates a launcher that runs the given command.
func NewExecLauncher(command string, args ...string) *ExecLauncher {
	return &ExecLauncher{Command: command, Args: args}
}

// Launch starts the viewer and detaches from it. The viewer deliberately
// does not inherit the caller's context: it must outlive the request that
// triggered it.
func (l *ExecLauncher) Launch(ctx context.Context, modelPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	args := append(append([]string{}, l.Args...), modelPath)
	cmd := exec.Command(l.Command, args...)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start vr viewer: %w", err)
	}

	// Reap the process so it does not linger as a zombie.
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("vr viewer exited: %v", err)
		}
	}()
	return nil
}
