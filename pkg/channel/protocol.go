// Package channel links coordinator processes to the shared watch manager.
//
// The manager owns the filesystem watch registrations of every coordinator
// on the machine. Coordinators connect over TCP on the loopback interface
// and exchange JSON messages, one per line:
//
//	-> {"type":"watch","id":1,"pid":4242,"paths":["/work/app/index.js"]}
//	<- {"type":"ack","id":1}
//	<- {"type":"advisory","task":"watch","pid":4242}
//	<- {"type":"change","kind":"change","path":"/work/app/index.js"}
//
// Acks only confirm that a request was accepted. Advisories tell every
// client which process watched or unwatched something. Change events go to
// the clients that registered the path, or to all clients when none of its
// owners is connected.
//
// Connect dials the manager and, when none is running, starts one inside
// the calling process. Concurrent callers race for the port; the loser
// dials the winner.
package channel

// Message types.
const (
	TypeWatch    = "watch"
	TypeUnwatch  = "unwatch"
	TypeStatus   = "status"
	TypeAck      = "ack"
	TypeChange   = "change"
	TypeAdvisory = "advisory"
)

// Message is the single wire message of the control channel.
type Message struct {
	Type  string   `json:"type"`
	ID    uint64   `json:"id,omitempty"`
	Task  string   `json:"task,omitempty"`
	PID   int      `json:"pid,omitempty"`
	Paths []string `json:"paths,omitempty"`
	Kind  string   `json:"kind,omitempty"`
	Path  string   `json:"path,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Change is a file change reported by the manager.
type Change struct {
	Kind string
	Path string
}

// Advisory tells that process PID ran task (watch or unwatch).
type Advisory struct {
	Task string
	PID  int
}

// Status describes a running manager.
type Status struct {
	Addr       string   `json:"addr"`
	PID        int      `json:"pid"`
	Clients    int      `json:"clients"`
	Registered []string `json:"registered"`
}
