package resolver

import "strings"

func isYouTubeVideoURL(input string) bool {
	return strings.Contains(input, "youtube.com/watch?v=") ||
		strings.Contains(input, "youtu.be/")
}

// isYouTubePlaylistURL matches dedicated playlist pages, not watch URLs
// that merely carry a list parameter.
func isYouTubePlaylistURL(input string) bool {
	return strings.Contains(input, "youtube.com/playlist?list=")
}

func isSpotifyURL(input string) bool {
	return strings.Contains(input, "open.spotify.com/") ||
		strings.HasPrefix(input, "spotify:")
}
