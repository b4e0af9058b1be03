package types

import "time"

// ChatSession is a server-identified conversation thread.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func CloneSessions(in []*ChatSession) []*ChatSession {
	if in == nil {
		return nil
	}
	out := make([]*ChatSession, 0, len(in))
	for _, session := range in {
		if session == nil {
			continue
		}
		copied := *session
		out = append(out, &copied)
	}
	return out
}
