// Package registry holds the fixed set of recognition backends loaded at
// startup, keyed by language tag. Each backend carries its own
// mutual-exclusion guard so recognition calls against one instance never
// overlap while backends stay independent of each other. The registry
// also serves the static capability descriptor.
package registry
