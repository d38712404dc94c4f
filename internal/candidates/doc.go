// Package candidates holds the records that flow through a screening run:
// raw resumes as submitted, parsed profiles returned by the parse worker,
// ranked candidates returned by the match worker, and interview slots returned
// by the schedule worker.
package candidates
