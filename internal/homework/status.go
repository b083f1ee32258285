package homework

import "fmt"

// Status is the review state reported for a submission.
type Status string

const (
	StatusApproved  Status = "approved"
	StatusReviewing Status = "reviewing"
	StatusRejected  Status = "rejected"
)

var verdicts = map[Status]string{
	StatusApproved:  "The work has been reviewed: the reviewer liked everything. Hooray!",
	StatusReviewing: "The work has been taken up for review.",
	StatusRejected:  "The work has been reviewed: the reviewer has comments.",
}

// Valid reports whether s is one of the known review states.
func (s Status) Valid() bool {
	_, ok := verdicts[s]
	return ok
}

// Verdict returns the sentence announced for s, or "" for unknown states.
func (s Status) Verdict() string {
	return verdicts[s]
}

// Homework is the single record consumed per cycle.
type Homework struct {
	Name   string
	Status Status
	Fields map[string]any
}

// Format renders the status change announcement for h.
func Format(h Homework) string {
	return fmt.Sprintf("Changed review status for \"%s\". %s", h.Name, h.Status.Verdict())
}

// FailureMessage renders the chat alert sent when a cycle fails.
func FailureMessage(diagnostic string) string {
	return "Bot failure: " + diagnostic
}
