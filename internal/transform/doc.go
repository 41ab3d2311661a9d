// Package transform holds the tabular worker invoked once per orchestration
// run. The worker fetches every `.csv` entry of an event through an
// objectstore.Gateway, decodes it into a typed Table, appends the derived
// columns, re-encodes it with an Encoder and writes it next to the source
// under a deterministic name. The first failing entry aborts the invocation.
package transform
