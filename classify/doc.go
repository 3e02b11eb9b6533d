// Package classify assigns a complexity tier and target tool categories to a
// raw user query.
//
// Classification is deterministic and local: it matches ordered signal
// lists against the normalized query (lowercased, accents folded,
// punctuation collapsed). A complex signal always wins; a simple signal
// with no complex signal gives the fast path; anything else is medium.
// Signal lists are configuration, so extending a domain never changes code.
package classify
