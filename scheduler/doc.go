// Package scheduler fires post publish events at their scheduled time.
//
// A single goroutine owns a min-heap of Events ordered by trigger time and
// sleeps until the earliest one is due. Sleeps are capped at 60 seconds so
// that wall-clock steps (NTP corrections, DST, a suspended laptop) delay a
// publish by at most a minute. The heap is in-memory only: the pipeline
// rebuilds it from stored posts with LoadSchedules on start.
package scheduler
