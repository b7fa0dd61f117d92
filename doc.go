// Package imapkit is a programmable IMAP4rev1 client library (RFC 3501,
// plus IDLE, ID, QUOTA, and UIDPLUS). It opens authenticated sessions,
// enumerates and manipulates folders, issues SEARCH/FETCH through a fluent
// query builder, and materialises RFC 822 messages into a typed object
// graph.
//
// The wire-level framing, tokenising, and command multiplexing live in
// internal/wire and are not exposed directly; callers interact with
// Client, Folder, and Query.
package imapkit
