// Package sketch implements the Sketch Duel game.
//
// Two players are shown the same reference image and have a fixed time to
// draw it. Drawings are scored against the reference by visual similarity
// and the closer drawing wins.
//
// How to play
// - The creator opens a session and shares its ID
// - A second player joins, and the session becomes ready
// - The creator starts the first round; the reference image is revealed
// - Each player submits a drawing before the timer runs out
// - The round ends as soon as both drawings are in, or when time is up
// - Missing drawings score 0; ties go to the creator
// - When both players ask to play again, a new round starts right away
//   with a different reference image
//
// Implementation details:
// - Each session is owned by a single goroutine; handlers, the round timer
//   and the scoring pass all talk to it over channels
// - Scoring happens off that goroutine, and only once per round
// - Idle sessions are reaped by the Store
package sketch
