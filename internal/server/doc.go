// Package server runs the short-lived local HTTP listener that receives the
// OAuth redirect when `spotsync auth` authorizes the application.
//
// The listener is bound before the consent URL is shown, so the redirect can
// never race the server start. [OAuthHandler] accepts one callback, verifies
// its state and exchanges the code; [OAuthHandler.Wait] hands the token to the
// command, which stores it in the config file.
package server
