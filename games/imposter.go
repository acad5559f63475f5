// Package games holds design notes for the games served by this module.
package games

// Imposter
//
// Players register or log in over HTTP, then connect a websocket and
// authenticate with the returned credential
// One player creates a room and shares its six-character code (or the QR
// endpoint) with the table; everyone else joins with the code
// The room admin picks a theme and difficulty and starts the game once at
// least three players are present
// Everyone except one randomly chosen imposter is shown the same secret word;
// the imposter is only told they are the imposter
// Players talk about the word out loud, each trying to prove they know it
// without giving it away to the imposter
// Anyone may vote to skip the discussion early; at half the table the round
// moves straight to voting, otherwise the countdown runs out
// Each player then votes for whoever they think the imposter is; most votes
// is voted out, and the imposter wins unless that was them
// Per-player win/imposter tallies accumulate in the stats store across games

// Implementation details:
// - One goroutine per room owns all room state; connections talk to it
//   through channels, so there is no lock on the game itself
// - The per-second countdown is a ticker owned by the room's hub and is
//   cancelled on every path that leaves the playing phase
// - Credentials are offline-verifiable JWTs so the websocket layer never
//   touches the user store
