// Package scheduling implements the schedule stage. The ranked candidates
// go to the schedule worker in one call; the slots it proposes are checked
// against the ranked list, the score threshold, and the minimum spacing
// between interviews before they are stored.
//
// Schedule workers sit in front of language models and do not always return
// a clean list. The decoder accepts the list itself, an object carrying it
// under "schedules", or either of those encoded as a JSON string, optionally
// wrapped in a markdown code fence.
package scheduling
