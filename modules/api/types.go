package api

// Envelope is the response shape shared by every endpoint: data carries the
// payload on success or {"error": ...} on failure.
type Envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// CountResult is the data payload for count-mode list requests.
type CountResult struct {
	Count int64 `json:"count"`
}
