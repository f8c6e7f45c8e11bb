package activity

// Recorder is the write-only activity trail. Implementations must never
// fail the caller: recording is strictly best-effort.
type Recorder interface {
	Record(userID int64, category, message string)
}

// Nop discards every record. Used in tests and as a safe default.
type Nop struct{}

func (Nop) Record(int64, string, string) {}
