package common

// Journal is implemented by state backends that can undo writes.
type Journal interface {
	Checkpoint() int
	RevertTo(checkpoint int)
}

// Atomic runs fn and reverts every journaled write it made when it fails.
// Backends that do not journal run fn unchanged.
func Atomic(state interface{}, fn func() error) error {
	j, ok := state.(Journal)
	if !ok {
		return fn()
	}
	checkpoint := j.Checkpoint()
	if err := fn(); err != nil {
		j.RevertTo(checkpoint)
		return err
	}
	return nil
}
