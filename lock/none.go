package lock

// None performs no locking. It still tracks whether Lock was called so
// HasLock keeps its meaning for callers that pair Lock and Unlock.
type None struct {
	path string
	held bool
}

// NewNone returns a no-op Locker.
func NewNone(path string) *None { return &None{path: path} }

func (n *None) Lock() error    { n.held = true; return nil }
func (n *None) Unlock() error  { n.held = false; return nil }
func (n *None) IsLocked() bool { return n.held }
func (n *None) HasLock() bool  { return n.held }
func (n *None) Kind() Kind     { return KindNone }
func (n *None) Path() string   { return n.path }

var _ Locker = (*None)(nil)
