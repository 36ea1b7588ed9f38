package core

// DocID is a dense, internal identifier for a document. It is strictly
// 32-bit, allowing for max 4 Billion documents per index. Used for all
// hot-path structures (forward entries, posting bitmaps).
type DocID uint32

// TagID is a dense, internal identifier for a tag. Same width and
// assignment rules as DocID, but the two id spaces are independent.
type TagID uint32

// InvalidDocID marks a failed document interning. It is never assigned
// to a real document.
const InvalidDocID = ^DocID(0)

// InvalidTagID marks a failed tag interning. It is never assigned to a
// real tag.
const InvalidTagID = ^TagID(0)
