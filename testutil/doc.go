// Package testutil provides testing utilities for taggo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating record corpora with realistic
// Zipfian tag popularity and for computing exact query results to
// verify the bitmap engine against.
//
// # Corpus Generation
//
//	rng := testutil.NewRNG(seed)
//	records := rng.Records(1000, 50, 5, 1.2)
//	data := testutil.Lines(records, '|')
//
// # Ground Truth
//
//	want := testutil.ExactQuery(records, []string{"tag-001"}, inverted.OpAnd)
package testutil
