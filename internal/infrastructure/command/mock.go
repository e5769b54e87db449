package command

import (
	"context"
	"io"
	"sync"
)

// MockRunner records commands and answers them with RunFunc.
type MockRunner struct {
	RunFunc func(ctx context.Context, cmd Command) ([]byte, error)

	mu       sync.Mutex
	Commands []Command
	Stdins   []string
}

func (m *MockRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	m.mu.Lock()
	m.Commands = append(m.Commands, cmd)
	if cmd.Stdin != nil {
		data, _ := io.ReadAll(cmd.Stdin)
		m.Stdins = append(m.Stdins, string(data))
	}
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, cmd)
	}
	return nil, nil
}

// Last returns the most recent command.
func (m *MockRunner) Last() Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return Command{}
	}
	return m.Commands[len(m.Commands)-1]
}

var _ Runner = (*MockRunner)(nil)
