package browser

import "context"

// A remote browser automation session.
//
// A session is owned by one worker for the duration of one test.
// Start must be called before any other method and Stop must be
// called exactly once afterwards, also when Start failed.
type Session interface {
	// Connect to the remote browser and open the application under test.
	Start(ctx context.Context) error

	// Disconnect and release the remote browser.
	Stop(ctx context.Context) error

	// Capture the current page as a base64 encoded PNG.
	CaptureScreenshot(ctx context.Context) (string, error)
}

// Creates a new, not yet started, session for one test.
type Provider func(opts Options) (Session, error)

// Parameters for a new session.
type Options struct {
	// Host of the remote automation server.
	Server string

	// Port of the remote automation server.
	Port int

	// Browser selector or job descriptor understood by the server.
	Browser string

	// URL of the application under test.
	Application string
}
