// Package loaddata sequences batch loads: it tracks the shared loading
// counter that drives toast transitions, keeps per-session bookkeeping for
// bus-triggered loads, and resolves primary image IDs for stages that settle
// asynchronously.
package loaddata
