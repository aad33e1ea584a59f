package lexenv

// EnvID identifies an environment in the store arena.
type EnvID uint32

const (
	// NoEnvID marks the absence of an environment reference.
	NoEnvID EnvID = 0
)

// IsValid reports whether the env ID refers to an allocated environment.
func (id EnvID) IsValid() bool { return id != NoEnvID }
