package model

import (
	"context"
	"io"
)

// StubClient is a canned Client for tests and local demos: it returns a
// fixed response (or consults Responses in order, falling back to Default)
// regardless of the request.
type StubClient struct {
	// Default is returned for every request when Responses is empty or
	// exhausted.
	Default Response
	// Responses is drained one at a time, oldest first, before falling back
	// to Default.
	Responses []Response
}

var _ Client = (*StubClient)(nil)

func (s *StubClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(s.Responses) > 0 {
		resp := s.Responses[0]
		s.Responses = s.Responses[1:]
		return resp, nil
	}
	return s.Default, nil
}

func (s *StubClient) Stream(ctx context.Context, req Request) (Streamer, error) {
	resp, err := s.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return &stubStreamer{resp: resp}, nil
}

// stubStreamer replays a Response as a single terminal chunk.
type stubStreamer struct {
	resp Response
	sent bool
}

func (s *stubStreamer) Recv() (Chunk, error) {
	if s.sent {
		return Chunk{}, io.EOF
	}
	s.sent = true
	return Chunk{Text: s.resp.Text, Done: true, StopReason: s.resp.StopReason}, nil
}

func (s *stubStreamer) Close() error { return nil }
