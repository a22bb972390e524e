package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-gemini-live/pkg/transcript"
)

// handleStatus returns the session status snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status.Status())
}

// handleTranscripts returns recent transcript entries, oldest first.
// ?kind= filters by entry kind.
func (s *Server) handleTranscripts(c *fiber.Ctx) error {
	kind := transcript.Kind(c.Query("kind"))

	s.recentMu.RLock()
	out := make([]transcript.Entry, 0, len(s.recent))
	for _, e := range s.recent {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	s.recentMu.RUnlock()

	return c.JSON(fiber.Map{
		"entries":     out,
		"subscribers": s.feed.ClientCount(),
	})
}
