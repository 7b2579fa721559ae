package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithShardCount sets the number of lock stripes.
func WithShardCount(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithScoreboard shares an existing scoreboard with the store.
func WithScoreboard(b *Scoreboard) Option {
	return func(s *MemoryStore) {
		if b != nil {
			s.board = b
		}
	}
}
