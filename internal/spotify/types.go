package spotify

// Wire payloads of the Web API. Only the fields the cache stores are decoded.

type artistObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type albumObject struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Artists []artistObject `json:"artists"`
}

type trackObject struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Album albumObject `json:"album"`
}

// playlistItem.Track is nil for removed or local tracks
type playlistItem struct {
	Track *trackObject `json:"track"`
}

type playlistPage struct {
	Items []playlistItem `json:"items"`
	Total int            `json:"total"`
}

type albumPage struct {
	Items []albumObject `json:"items"`
	Total int           `json:"total"`
}

type simpleTrack struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type albumWithTracks struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tracks struct {
		Items []simpleTrack `json:"items"`
		Total int           `json:"total"`
	} `json:"tracks"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
