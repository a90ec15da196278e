// Package campaign implements campaign execution.
//
// The executor owns one campaign run end to end: it resolves the
// audience from segment filters, creates a send record per recipient,
// selects an A/B variant, personalizes content, instruments it with
// tracking, and dispatches through the mail transport adapter. It
// depends on repository interfaces defined in this package and should
// never import from handler code.
//
// Repository implementations live in repository/postgres/.
package campaign
