// Package live orchestrates a listening session: it captures audio, fans it out
// to the speech-to-text and emotion streams, folds transcript fragments into
// utterances, gates them into the suggestion pipeline and, when the session
// ends, runs the summary and persistence steps before releasing anything.
//
// # State Machine
//
//	IDLE → STARTING → ACTIVE → STOPPING → IDLE
//
// At most one session exists per Orchestrator. Start on an active session is a
// no-op that returns its id; a session whose capture surface has gone away is
// shut down first. Any failure while starting returns to IDLE with a
// configuration error from package core.
//
// # Data Flow
//
//	Capture → Frames ─┬→ STT adapter ─────┐
//	                  └→ Emotion adapter ─┴→ Bus → loop → Segmenter → Gate → Suggester
//
// The loop goroutine is the session's only writer: the transcript log, the
// segmenter, the speaker tracker and the cooldown are touched one event at a
// time. Suggestions run on their own goroutines and report back to the loop; a
// result that arrives after shutdown began is dropped.
//
// # Shutdown
//
// Stop blocks until the shutdown protocol resolves: capture stops, the four
// shutdown settings are read in one batch, exactly one TeardownOutcome is
// decided, persistence is attempted independently, exactly one terminal
// presentation event is sent, and only then are the adapters closed. Surface
// loss, capture loss and Stop may race; the protocol runs once and every caller
// gets the same StopResult.
package live
