package envelope

// SetMaxEncodedLen lowers the decoder limit for a test and returns the restore func.
func SetMaxEncodedLen(n int) func() {
	prev := maxEncodedLen
	maxEncodedLen = n
	return func() { maxEncodedLen = prev }
}
