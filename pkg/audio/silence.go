package audio

// Silence is a Resource that ends naturally as soon as it starts.
// It lets a turn complete through the normal ended path when nothing
// can be spoken.
type Silence struct{}

// Start reports natural completion asynchronously.
func (Silence) Start(done func(error)) error {
	go done(nil)
	return nil
}

// Stop is a no-op.
func (Silence) Stop() error { return nil }

// Release is a no-op.
func (Silence) Release() {}

var _ Resource = Silence{}
