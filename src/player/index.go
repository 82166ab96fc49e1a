package player

// NextIndex returns the index after current in a playlist of length n,
// wrapping around at the end. With no selection, the first index is
// returned. It returns -1 if n is 0.
func NextIndex(current, n int) int {
	if n <= 0 {
		return -1
	}
	return ((current+1)%n + n) % n
}

// PreviousIndex returns the index before current in a playlist of length n,
// wrapping around at the start. It returns -1 if n is 0.
func PreviousIndex(current, n int) int {
	if n <= 0 {
		return -1
	}
	return ((current-1)%n + n) % n
}

// AdjustIndexAfterRemove returns the index of the selected track after the
// track at index removed was taken out of the playlist, leaving newLen
// tracks.
//
// If the selected track itself was removed, the track that took its place is
// selected, or the new last track if it was the last one.
func AdjustIndexAfterRemove(removed, current, newLen int) int {
	switch {
	case newLen <= 0:
		return -1
	case removed == current:
		return min(removed, newLen-1)
	case removed < current:
		return current - 1
	default:
		return current
	}
}
