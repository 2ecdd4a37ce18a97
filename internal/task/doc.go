// Package task runs document generation and matching score work in the
// background. Submitted tasks are persisted before they are queued, a fixed
// worker pool drains the queue, and Recover re-queues whatever a previous
// process left pending or processing.
package task
