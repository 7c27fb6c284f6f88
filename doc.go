// Package realtime is a voice client for a retrieval augmented middle tier
// that relays the OpenAI Realtime API over a websocket.
//
// The [Client] streams microphone PCM16 upstream, dispatches the relayed
// server events to [Handlers] and lets the caller replace the system prompt
// mid conversation. Grounding sources reported by the middle tier arrive as
// extension.middle_tier_tool_response events.
//
// The agents package turns those events into view state. Audio devices live
// in tools and the terminal UI in tui; examples/cli wires them together.
package realtime
