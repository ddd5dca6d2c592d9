/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusReady    Status = "ready"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// transitions lists every legal status change.
var transitions = map[Status][]Status{
	StatusWaiting:  {StatusReady},
	StatusReady:    {StatusActive},
	StatusActive:   {StatusFinished},
	StatusFinished: {StatusReady},
}

// CanTransition reports whether a session may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
