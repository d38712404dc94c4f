// Package matching implements the match stage: the full set of parsed
// profiles goes to the match worker in one call, and the ranked candidates it
// returns are stored sorted by score, highest first. Any failure fails the
// stage; ranking a partial candidate set is never attempted.
package matching
