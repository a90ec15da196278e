// Package mail sends single emails through exactly one of two backends:
// the invoking user's connected mailbox (OAuth bearer send with
// refresh-token rotation) or a transactional API provider keyed by a
// static API key. The choice is made per send, based on whether the
// user has an active mailbox connection, so different users may resolve
// to different transports within the same campaign run.
package mail
