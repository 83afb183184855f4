// Package testutil provides testing utilities for memtree.
//
// This package is intended for use in tests and benchmarks only.
// It provides deterministic key generators and a sorted reference
// model for oracle-style verification of ordered containers.
//
// # Key Generation
//
//	rng := testutil.NewRNG(seed)
//	keys := rng.UniqueKeys(1000)      // distinct random keys
//	keys = testutil.SequentialKeys(1000)
//
// # Reference Model
//
//	m := testutil.NewModel()
//	m.Insert(key)
//	m.Keys()  // sorted snapshot for comparison against an iterator
package testutil
