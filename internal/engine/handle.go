package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// AgentHandle addresses a fella in the agent table. The generation changes
// every time a slot is reused, so a handle to a despawned fella never
// resolves to its successor.
type AgentHandle struct {
	Index      uint32 `json:"index"`
	Generation uint32 `json:"generation"`
}

// String renders the handle as "index.generation".
func (h AgentHandle) String() string {
	return fmt.Sprintf("%d.%d", h.Index, h.Generation)
}

// ParseHandle parses the String form.
func ParseHandle(s string) (AgentHandle, error) {
	idx, gen, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return AgentHandle{}, fmt.Errorf("malformed agent handle %q", s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return AgentHandle{}, fmt.Errorf("malformed agent handle %q: %w", s, err)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil {
		return AgentHandle{}, fmt.Errorf("malformed agent handle %q: %w", s, err)
	}
	return AgentHandle{Index: uint32(i), Generation: uint32(g)}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (h AgentHandle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *AgentHandle) UnmarshalText(b []byte) error {
	parsed, err := ParseHandle(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
