// Command gemini-live holds a real-time voice conversation with a Gemini
// Live model using the local microphone and speaker.
//
// Usage:
//
//	GOOGLE_API_KEY=... gemini-live [flags]
//	gemini-live version
//
// The API key may also be placed in a .env file in the working directory.
// Press Ctrl+C to end the conversation.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}
