// package auth implements the Spotify OAuth token lifecycle: the
// authorization-code configuration and a per-user persistent token cache with
// scope validation and expiry-triggered refresh.
package auth

import (
	"strings"

	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// RequiredScope is the fixed permission set the service needs: read access to
// private playlists and write access to public and private ones. A cached
// token granting anything less is unusable.
const RequiredScope = "playlist-read-private playlist-modify-public playlist-modify-private"

// NewOAuthConfig builds the oauth2 configuration for the authorization-code
// flow against Spotify's accounts service.
func NewOAuthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(RequiredScope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}
}

// HasScope reports whether the space-delimited granted scope string covers
// every grant in the space-delimited required scope string.
func HasScope(granted, required string) bool {
	have := map[string]bool{}
	for _, grant := range strings.Fields(granted) {
		have[grant] = true
	}
	for _, grant := range strings.Fields(required) {
		if !have[grant] {
			return false
		}
	}
	return true
}
